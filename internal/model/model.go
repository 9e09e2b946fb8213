// Package model defines the loaded-model ABI: the descriptor passed across
// the plugin boundary and the function table a loader binds it to.
package model

type (
	// Desc is the descriptor handed to a loaded model's Create/Step/Destroy
	// functions. A model may return a different *Desc from Create than the
	// one it was given; controller.LoadModels rebinds to whatever non-nil
	// descriptor comes back.
	Desc struct {
		// Name is the model instance name, copied from ModelInstanceSpec.
		Name string
		// UID is the model instance UID, copied from ModelInstanceSpec.
		UID uint32
		// Private is reserved for the model implementation's own state. For
		// a gateway-backed instance the controller sets it to the
		// []GatewayChannel list before calling Create; otherwise the runtime
		// never reads or writes it.
		Private any
	}

	// CreateFunc is the optional model Create entry point. ctx is only
	// valid for the duration of this call; the model uses it to register
	// model functions and configure channels through this explicit setup
	// context rather than an ambient global controller lookup. Create may
	// return a rebound descriptor; returning nil keeps the original.
	CreateFunc func(ctx SetupContext, desc *Desc) (*Desc, error)

	// SetupContext is the callback surface a model's Create implementation
	// uses to register the model functions and channel bindings it
	// contributes. It is invalid once Create returns.
	SetupContext interface {
		// RegisterFunction adds fn to the owning instance's model-function
		// registry. Returns an error on a duplicate name.
		RegisterFunction(fn *Function) error
		// ConfigureChannel declares that functionName reads/writes
		// signalNames on channelName, creating the channel's signals in
		// the Signal Store if they don't already exist.
		ConfigureChannel(functionName, channelName string, signalNames []string) error
	}

	// StepFunc is the model Step entry point and the type of every
	// Function's StepHandler. It must update *modelTime to a value in
	// [modelTime, stopTime]. The controller logs a non-zero return from a
	// StepHandler and otherwise ignores it.
	StepFunc func(desc *Desc, modelTime *float64, stopTime float64) int

	// DestroyFunc is the optional model Destroy entry point, called during
	// shutdown.
	DestroyFunc func(desc *Desc)

	// VTable is the bound model interface produced by the loader. A load
	// fails only when Create and Step are both missing, so after a
	// successful load at least one of them is non-nil; Destroy may be nil.
	VTable struct {
		Create  CreateFunc
		Step    StepFunc
		Destroy DestroyFunc
	}

	// Function is one scheduling unit contributed by a model during Create,
	// via a SetupContext. A model may register several.
	Function struct {
		// Name identifies the function within its owning instance.
		Name string
		// Instance is the name of the owning model instance.
		Instance string
		// StepHandler is invoked once per tick with the instance's current
		// model_time and stop_time.
		StepHandler StepFunc
		// Channels maps channel name to the function's binding for that
		// channel, in registration order.
		Channels *ChannelOrder
	}

	// FunctionChannel is one channel binding as seen by a model function:
	// an ordered signal-name vector with parallel scalar/binary arrays.
	// Either array may be nil; when present its length equals len(Signals).
	FunctionChannel struct {
		// ChannelName is the bus channel this binding reads/writes.
		ChannelName string
		// Signals is the ordered signal-name vector for this binding.
		Signals []string
		// Scalar holds one float64 per signal, or nil if this channel
		// carries no scalar signals.
		Scalar []float64
		// Binary holds one BinarySignal per signal, or nil if this channel
		// carries no binary signals.
		Binary []BinarySignal
		// PrevScalar mirrors the value marshalAdapterToModel last delivered
		// into Scalar[i]. The marshaling engine only republishes Scalar[i]
		// onto the bus when it differs from PrevScalar[i], so a function
		// that only reads a channel (never touching Scalar itself) doesn't
		// keep re-publishing a stale value that clobbers a genuine writer's
		// update on the same shared channel.
		PrevScalar []float64
	}

	// GatewayChannel describes one channel the built-in gateway model
	// should configure for itself. The controller populates these onto a
	// gateway instance's Desc.Private before invoking Create, since the
	// gateway stub has no other way to learn the channel list declared in
	// the model definition without importing the config package (which
	// would create an import cycle).
	GatewayChannel struct {
		Name  string
		Alias string
	}

	// BinarySignal is a model-local binary payload with "transfer"
	// semantics: Size is reset to 0 once its bytes have been consumed by a
	// marshaling pass, while the underlying buffer's capacity is retained
	// for reuse.
	BinarySignal struct {
		Buf  []byte
		Size int
	}
)

// Append grows b.Buf as needed and appends p, leaving cap intact for reuse
// on subsequent calls even after Size is reset to 0.
func (b *BinarySignal) Append(p []byte) {
	need := b.Size + len(p)
	if cap(b.Buf) < need {
		grown := make([]byte, need)
		copy(grown, b.Buf[:b.Size])
		b.Buf = grown
	} else if len(b.Buf) < need {
		b.Buf = b.Buf[:cap(b.Buf)]
	}
	copy(b.Buf[b.Size:need], p)
	b.Size = need
}

// Bytes returns the currently valid portion of the buffer.
func (b *BinarySignal) Bytes() []byte {
	if b.Size == 0 {
		return nil
	}
	return b.Buf[:b.Size]
}

// Reset marks the buffer as consumed without releasing its capacity.
func (b *BinarySignal) Reset() { b.Size = 0 }
