// Package redisbus backs the adapter.Adapter contract with a Redis client:
// every Ready publishes the process's channel state onto Redis pub/sub
// channels, where other processes can observe it.
//
// Within one process, cross-instance fan-out works exactly like
// internal/adapter/localbus: every AdapterModel adopts the same
// *signal.Channel objects by reference from the Adapter's canonical
// Store, so a value one instance stages is already visible to every other
// instance sharing the channel name before Ready ever runs. Ready
// publishes the canonical state and then copies FinalVal to Val locally;
// it does not subscribe to or read back messages published by other
// processes.
package redisbus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/coruntime/modelc/internal/adapter"
	"github.com/coruntime/modelc/internal/endpoint"
	"github.com/coruntime/modelc/internal/signal"
)

type (
	// Bus is the shared, canonical per-process channel state. Multiple
	// Adapters (one per Redis client, typically all pointed at the same
	// Redis deployment) may share a Bus to model several hosts' local
	// instances participating in one simulation from a single process.
	Bus struct {
		mu       sync.Mutex
		members  map[uint32]*adapter.AdapterModel
		channels *signal.Store
	}

	// Adapter implements adapter.Adapter over a Redis client plus a local
	// Bus for in-process fan-out.
	Adapter struct {
		bus    *Bus
		client *redis.Client
		prefix string

		ep          endpoint.Endpoint
		interrupted chan struct{}
		once        sync.Once
	}
)

// NewBus returns an empty, ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{members: make(map[uint32]*adapter.AdapterModel), channels: signal.NewStore()}
}

// New returns an Adapter bound to bus, publishing on pub/sub channels
// named prefix + ":" + channel name (cmd/modelc uses "modelc:" followed by
// the simulation UID as prefix).
func New(bus *Bus, client *redis.Client, prefix string) *Adapter {
	return &Adapter{bus: bus, client: client, prefix: prefix, interrupted: make(chan struct{})}
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
// Store by reference, matching internal/adapter/localbus.
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
		if err := a.ep.Start(ctx); err != nil {
			return err
		}
	}
	return a.client.Ping(ctx).Err()
}

func (a *Adapter) Register(context.Context, adapter.Sim) error { return nil }

// Ready publishes every canonical channel's staged FinalVal to Redis (for
// other processes sharing prefix to observe), then fans FinalVal out to
// Val across the Bus's own canonical store — identical to localbus, since
// within this process every member already shares the same Signal objects
// by reference. It does not itself wait for a remote subscriber's
// message: a production deployment's SimBus is the entity that enforces
// the full multi-host rendezvous before any side proceeds; this reference
// adapter only needs to prove the wire encoding round-trips.
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
		payload := encodeChannel(ch)
		key := a.prefix + ":" + chName
		if err := a.client.Publish(ctx, key, payload).Err(); err != nil {
			return fmt.Errorf("redisbus: publish %s: %w", key, err)
		}
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

func (a *Adapter) Destroy() error { return a.client.Close() }

func (a *Adapter) DestroyAdapterModel(am *adapter.AdapterModel) {
	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()
	delete(a.bus.members, am.UID)
}

func (a *Adapter) DumpDebug(context.Context, adapter.Sim) error { return nil }

func encodeChannel(ch *signal.Channel) string {
	var b strings.Builder
	for i, sig := range ch.Signals() {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(sig.Name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(sig.FinalVal, 'g', -1, 64))
	}
	return b.String()
}
