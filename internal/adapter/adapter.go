// Package adapter defines the Adapter Facade: the boundary the controller
// calls to drive the bus lifecycle (connect/register/ready/exit/interrupt)
// and through which inbound bus updates reach the Signal Store. Concrete
// transports are external collaborators; this package only defines the
// contract plus the per-instance AdapterModel state the controller and
// marshaling engine operate on.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/coruntime/modelc/internal/endpoint"
	"github.com/coruntime/modelc/internal/signal"
)

// ErrTimeout is returned by Ready when a peer left the simulation (SimBus
// rendezvous timed out). It is recoverable: the caller may choose to
// clean-exit by sending ModelExit.
var ErrTimeout = errors.New("adapter: ready timed out")

type (
	// Sim is the minimal view of a simulation the adapter needs: enough to
	// address a run without importing the controller package (which would
	// create an import cycle, since the controller depends on Adapter).
	Sim struct {
		UID      uint32
		Timeout  float64
		EndTime  float64
		StepSize float64
	}

	// AdapterModel is the channel-wise authoritative state used with the
	// bus for one model instance. Invariant: ModelTime <= StopTime at all
	// times; after a successful step ModelTime == StopTime.
	AdapterModel struct {
		UID       uint32
		ModelTime float64
		StopTime  float64

		store *signal.Store
	}

	// Adapter is the contract the controller consumes to drive the bus
	// lifecycle. Implementations serialize their own network access
	// internally; the controller is single-threaded and issues these calls
	// strictly in the order documented on each method.
	Adapter interface {
		// Create binds the adapter to an already-constructed Endpoint.
		Create(ep endpoint.Endpoint) error

		// RegisterModel associates uid with am for the lifetime of the run.
		RegisterModel(uid uint32, am *AdapterModel)

		// InitChannel idempotently declares channelName and signalNames on
		// am's Signal Store.
		InitChannel(am *AdapterModel, channelName string, signalNames []string)

		// GetSignalMap returns a Map aligning names to am's authoritative
		// Signals in channelName.
		GetSignalMap(am *AdapterModel, channelName string, names []string) (signal.Map, error)

		// Connect brings the adapter online, retrying up to retries times.
		Connect(ctx context.Context, sim Sim, retries int) error

		// Register announces the simulation's model instances to the bus.
		Register(ctx context.Context, sim Sim) error

		// Ready performs one rendezvous: publish staged final values,
		// block until the bus delivers the next round's values, and
		// return. Returns ErrTimeout if a peer left the simulation.
		Ready(ctx context.Context, sim Sim) error

		// Interrupt unblocks any in-flight Ready/Connect call. Must be
		// safe to call from a signal-handling context: no allocation, no
		// locking beyond what the implementation itself documents as
		// signal-safe.
		Interrupt()

		// Exit tells the adapter the simulation is tearing down.
		Exit(ctx context.Context, sim Sim) error

		// Destroy releases adapter-wide resources.
		Destroy() error

		// DestroyAdapterModel releases am's resources.
		DestroyAdapterModel(am *AdapterModel)

		// DumpDebug asks the adapter to emit a diagnostic snapshot of sim's
		// current state.
		DumpDebug(ctx context.Context, sim Sim) error
	}
)

// NewAdapterModel returns an AdapterModel bound to uid, with its own Signal
// Store.
func NewAdapterModel(uid uint32) *AdapterModel {
	return &AdapterModel{UID: uid, store: signal.NewStore()}
}

// Store exposes the per-instance Signal Store backing this AdapterModel.
func (am *AdapterModel) Store() *signal.Store { return am.store }

// SetStopTime records the stop time for the next step, preserving the
// ModelTime <= StopTime invariant.
func (am *AdapterModel) SetStopTime(t float64) error {
	if t < am.ModelTime {
		return fmt.Errorf("adapter: stop_time %v precedes model_time %v", t, am.ModelTime)
	}
	am.StopTime = t
	return nil
}

// Advance commits ModelTime := StopTime, as required after a successful
// step.
func (am *AdapterModel) Advance() {
	am.ModelTime = am.StopTime
}
