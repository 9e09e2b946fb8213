// Package localbus is a reference, in-process Adapter implementation for
// local development and the test suite. It models the SimBus ready
// rendezvous as a synchronous fan-out: every registered instance publishes
// its staged final values, the bus copies them into every instance's
// visible value (including its own, since within a single process there is
// no "other side" to wait for), then Ready returns.
//
// It is grounded on goa-ai's runtime/agent/hooks.Bus: a thread-safe
// subscriber registry with synchronous, registration-ordered fan-out and
// fail-fast delivery.
package localbus

import (
	"context"
	"sync"

	"github.com/coruntime/modelc/internal/adapter"
	"github.com/coruntime/modelc/internal/endpoint"
	"github.com/coruntime/modelc/internal/signal"
)

type (
	// Bus is the shared rendezvous point all instances in one process
	// register with. Multiple Adapters may point at the same Bus to
	// simulate several hosts sharing one in-process SimBus. channels holds
	// the canonical, channel-name-keyed signal state; every member's own
	// AdapterModel.Store adopts the same *signal.Channel objects by
	// reference, so a value staged by one instance is already visible to
	// every other instance's SignalMap without any per-Ready copy.
	Bus struct {
		mu       sync.Mutex
		members  map[uint32]*adapter.AdapterModel
		channels *signal.Store
	}

	// Adapter implements adapter.Adapter against a shared in-process Bus.
	Adapter struct {
		bus         *Bus
		ep          endpoint.Endpoint
		interrupted chan struct{}
		once        sync.Once
	}
)

// NewBus returns an empty, ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{members: make(map[uint32]*adapter.AdapterModel), channels: signal.NewStore()}
}

// New returns an Adapter bound to bus.
func New(bus *Bus) *Adapter {
	return &Adapter{bus: bus, interrupted: make(chan struct{})}
}

func (a *Adapter) Create(ep endpoint.Endpoint) error {
	a.ep = ep
	return nil
}

func (a *Adapter) RegisterModel(uid uint32, am *adapter.AdapterModel) {
	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()
	a.bus.members[uid] = am
}

// InitChannel declares channelName/signalNames on the Bus's canonical
// channel store, then adopts the resulting *signal.Channel into am's own
// Store by reference, so am sees the same Signal objects every other
// member sharing channelName sees.
func (a *Adapter) InitChannel(am *adapter.AdapterModel, channelName string, signalNames []string) {
	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()
	ch := a.bus.channels.InitChannel(channelName, signalNames)
	am.Store().Adopt(channelName, ch)
}

func (a *Adapter) GetSignalMap(am *adapter.AdapterModel, channelName string, names []string) (signal.Map, error) {
	return am.Store().SignalMap(channelName, names)
}

func (a *Adapter) Connect(ctx context.Context, _ adapter.Sim, _ int) error {
	if a.ep != nil {
		return a.ep.Start(ctx)
	}
	return nil
}

func (a *Adapter) Register(context.Context, adapter.Sim) error { return nil }

// Ready publishes every channel's staged FinalVal to Val across the Bus's
// canonical channel store. Because every member's AdapterModel adopted
// these same Channel/Signal objects by reference (see InitChannel), this
// single pass is enough to fan a value out to every instance that declared
// the channel, itself included — a single-process bus has no concept of
// "peer". Binary payloads need no extra step here: they were already
// appended onto the shared Signal.Bin by marshalModelToAdapter.
func (a *Adapter) Ready(ctx context.Context, _ adapter.Sim) error {
	select {
	case <-a.interrupted:
		return adapter.ErrTimeout
	default:
	}

	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()

	for _, chName := range a.bus.channels.Channels() {
		ch := a.bus.channels.Channel(chName)
		for _, sig := range ch.Signals() {
			sig.Val = sig.FinalVal
		}
	}
	return nil
}

func (a *Adapter) Interrupt() {
	a.once.Do(func() { close(a.interrupted) })
}

func (a *Adapter) Exit(context.Context, adapter.Sim) error { return nil }

func (a *Adapter) Destroy() error { return nil }

func (a *Adapter) DestroyAdapterModel(am *adapter.AdapterModel) {
	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()
	delete(a.bus.members, am.UID)
}

func (a *Adapter) DumpDebug(context.Context, adapter.Sim) error { return nil }
