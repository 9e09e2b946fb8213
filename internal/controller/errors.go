package controller

import "errors"

// Error taxonomy for the controller's lifecycle. Bus/transport ErrTimeout
// lives in internal/adapter (the layer that produces it); everything else
// that is specific to the controller's own lifecycle lives here.
var (
	// ErrInvalidConfiguration is returned by LoadModels for a model whose
	// bound interface has neither Create nor Step, and by gateway.Setup
	// when no instance was loaded. Stack and model-definition errors from
	// internal/config are plain errors, not this sentinel.
	ErrInvalidConfiguration = errors.New("controller: invalid configuration")

	// ErrLoadFailed covers every internal/loader failure (library-open
	// failure, missing required symbol, a definition with neither a dynlib
	// path nor a gateway marker) and a failing Create. Aborts LoadModels.
	ErrLoadFailed = errors.New("controller: model load failed")

	// ErrModelExit names a model-requested exit (a positive return value).
	// Step does not return it: a model function's return code is only
	// logged.
	ErrModelExit = errors.New("controller: model requested exit")

	// ErrCancelled is returned when Stop() was observed.
	ErrCancelled = errors.New("controller: cancelled")

	// ErrGatewayBehind is not a failure: it signals the gateway caller
	// must advance its own time and retry.
	ErrGatewayBehind = errors.New("controller: gateway behind simulation time")

	// ErrAlreadyInitialized is returned by Init when called twice without
	// an intervening Destroy.
	ErrAlreadyInitialized = errors.New("controller: already initialized")

	// ErrNotInitialized reports that no live controller exists. No
	// Controller method returns it.
	ErrNotInitialized = errors.New("controller: not initialized")

	// ErrAlreadyRegistered is returned by RegisterModelFunction on a
	// duplicate name within one instance.
	ErrAlreadyRegistered = errors.New("controller: model function already registered")
)
