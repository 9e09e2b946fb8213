// Package controller implements the Controller / Step Driver: the run
// loop that orchestrates marshaling around each bus Ready rendezvous,
// invokes every instance's registered model functions, advances
// per-instance model time, and reacts to stop requests. It is the
// process-wide: a single live Controller exists at a time, created by
// Init and released by Destroy.
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coruntime/modelc/internal/adapter"
	"github.com/coruntime/modelc/internal/config"
	"github.com/coruntime/modelc/internal/loader"
	"github.com/coruntime/modelc/internal/model"
	"github.com/coruntime/modelc/internal/rundump"
	"github.com/coruntime/modelc/internal/telemetry"
)

type (
	// ControllerModel is the private, per-instance controller-side state:
	// the resolved vtable and the instance's model-function registry.
	ControllerModel struct {
		VTable    model.VTable
		Functions *model.FunctionOrder
	}

	// Instance is one hosted model: its configuration, controller-side
	// state, and adapter-side state.
	Instance struct {
		Spec    *config.ModelInstanceSpec
		Ctrl    *ControllerModel
		Adapter *adapter.AdapterModel
		desc    *model.Desc
	}

	// Controller owns the run loop for one simulation. Single-threaded:
	// one goroutine calls Step/Run; Stop may be called from any goroutine
	// (including a signal handler) and only ever touches stopRequest and
	// the adapter's Interrupt hook.
	Controller struct {
		adapter adapter.Adapter
		log     telemetry.Logger
		metrics telemetry.Metrics

		sim       *config.SimulationSpec
		instances []*Instance
		dump      rundump.Sink

		stopRequest atomic.Bool
	}
)

var (
	mu      sync.Mutex
	current *Controller
)

// Init creates the process-wide Controller bound to ad, which must already
// be constructed (endpoint acquisition, including its own retry loop, is
// the caller's responsibility via internal/endpoint). Calling Init twice
// without an intervening Destroy is a programming error and returns
// ErrAlreadyInitialized rather than panicking, since a hosting CLI may
// want to report it cleanly.
func Init(ad adapter.Adapter, log telemetry.Logger, metrics telemetry.Metrics) (*Controller, error) {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return nil, ErrAlreadyInitialized
	}
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	c := &Controller{adapter: ad, log: log, metrics: metrics}
	current = c
	return c, nil
}

// Current returns the process-wide Controller, or nil if none is
// initialized, for callers that hold no reference to it (e.g. a signal
// handler that only has access to package-level state).
func Current() *Controller {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Destroy releases adapter-wide resources and clears the process-wide
// Controller. Safe to call on an already-destroyed or never-initialized
// Controller.
func (c *Controller) Destroy() {
	mu.Lock()
	defer mu.Unlock()
	if current != c {
		return
	}
	if c.adapter != nil {
		if err := c.adapter.Destroy(); err != nil {
			c.log.Error(context.Background(), "adapter destroy failed", "error", err)
		}
	}
	current = nil
}

// RegisterModelFunction inserts fn into inst's model-function map keyed by
// name. Fails with ErrAlreadyRegistered on a duplicate name.
func (c *Controller) RegisterModelFunction(inst *Instance, fn *model.Function) error {
	if inst.Ctrl.Functions.Get(fn.Name) != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, fn.Name)
	}
	inst.Ctrl.Functions.Set(fn.Name, fn)
	return nil
}

// LoadModels assigns sim to the Controller, then for each instance: binds
// its AdapterModel into the adapter's per-UID registry, resolves the
// model's vtable via internal/loader, and calls Create. Any failure aborts
// the sequence without calling Create for subsequent instances.
func (c *Controller) LoadModels(sim *config.SimulationSpec) error {
	c.sim = sim

	for i, spec := range sim.Instances {
		am := adapter.NewAdapterModel(spec.UID)
		c.adapter.RegisterModel(spec.UID, am)

		inst := &Instance{
			Spec:    spec,
			Adapter: am,
			Ctrl:    &ControllerModel{Functions: model.NewFunctionOrder()},
		}

		vt, err := loader.Load(spec.Definition)
		if err != nil {
			return fmt.Errorf("%w: instance %d (%s): %v", ErrLoadFailed, i, spec.Name, err)
		}
		if vt.Create == nil && vt.Step == nil {
			return fmt.Errorf("%w: instance %d (%s): model interface incomplete", ErrInvalidConfiguration, i, spec.Name)
		}
		inst.Ctrl.VTable = vt

		desc := &model.Desc{Name: spec.Name, UID: spec.UID}
		if spec.Definition.Gateway {
			desc.Private = gatewayChannels(spec.Definition.Channels)
		}
		inst.desc = desc

		if vt.Create != nil {
			setup := &setupContext{inst: inst, controller: c}
			rebound, err := vt.Create(setup, desc)
			if err != nil {
				return fmt.Errorf("%w: instance %d (%s): create: %v", ErrLoadFailed, i, spec.Name, err)
			}
			if rebound != nil {
				inst.desc = rebound
			}
		}

		c.instances = append(c.instances, inst)
	}
	return nil
}

func gatewayChannels(specs []config.ChannelSpec) []model.GatewayChannel {
	out := make([]model.GatewayChannel, len(specs))
	for i, s := range specs {
		out[i] = model.GatewayChannel{Name: s.Name, Alias: s.Alias}
	}
	return out
}

// BusReady explicitly starts the endpoint (if it exposes one), connects to
// the bus, and registers. If a stop request arrives between Connect and
// Register, BusReady returns without registering.
func (c *Controller) BusReady(ctx context.Context) error {
	sim := c.adapterSim()
	if err := c.adapter.Connect(ctx, sim, 5); err != nil {
		return err
	}
	if c.stopRequest.Load() {
		return nil
	}
	return c.adapter.Register(ctx, sim)
}

// Step runs the canonical single tick:
//  1. If EndTime was already reached by a prior tick, return
//     errEndTimeReached without doing any bus work (this is what stops a
//     run exactly on an end_time that is an even multiple of step_size,
//     rather than overshooting by one more tick).
//  2. Marshal MODEL→ADAPTER.
//  3. adapter.Ready.
//  4. Marshal ADAPTER→MODEL.
//  5. Invoke every instance's registered model functions, then commit
//     ModelTime := StopTime. A model function's return code does not
//     affect the tick (see stepInstance).
//  6. Return errEndTimeReached if the tick just performed overshot
//     EndTime; nil otherwise.
func (c *Controller) Step(ctx context.Context) error {
	if c.sim.EndTime > 0 && len(c.instances) > 0 && c.instances[0].Adapter.ModelTime >= c.sim.EndTime {
		return errEndTimeReached
	}

	c.marshalModelToAdapter()

	sim := c.adapterSim()
	if err := c.adapter.Ready(ctx, sim); err != nil {
		return err
	}

	c.marshalAdapterToModel()

	var modelTime float64
	for _, inst := range c.instances {
		if err := inst.Adapter.SetStopTime(c.sim.StepSize + inst.Adapter.ModelTime); err != nil {
			return err
		}
		c.stepInstance(inst)
		inst.Adapter.Advance()
		modelTime = inst.Adapter.ModelTime
	}

	if c.sim.EndTime > 0 && modelTime > c.sim.EndTime {
		return errEndTimeReached
	}
	return nil
}

// errEndTimeReached is the "terminal, not an error" sentinel a tick
// returns once the run has caught up to EndTime. It is unexported: Run
// turns it into a nil return.
var errEndTimeReached = fmt.Errorf("controller: end time reached")

// stepInstance invokes every registered model function of inst with the
// instance's current (model_time, stop_time). An individual model
// function's non-zero return is logged and otherwise ignored: it neither
// aborts the tick nor ends the run. The returned value is the highest
// return code seen; Step does not act on it. The model's own VTable.Step
// is not invoked here. Function iteration order is registration
// order; order across functions within an instance must not be relied on
// by callers beyond that (map iteration is never used here).
func (c *Controller) stepInstance(inst *Instance) int {
	am := inst.Adapter
	modelTime := am.ModelTime
	stopTime := am.StopTime

	var rc int
	inst.Ctrl.Functions.Range(func(name string, mf *model.Function) bool {
		t := modelTime
		r := mf.StepHandler(inst.desc, &t, stopTime)
		if r != 0 {
			c.log.Error(context.Background(), "model function returned non-zero",
				"instance", inst.Spec.Name, "function", name, "rc", r)
		}
		if r > rc {
			rc = r
		}
		return true
	})
	return rc
}

// Run invokes BusReady then loops Step until it returns non-nil or a stop
// request is observed, exiting with ErrCancelled in the latter case.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.BusReady(ctx); err != nil {
		return err
	}
	for {
		if c.stopRequest.Load() {
			return ErrCancelled
		}
		err := c.Step(ctx)
		if err == nil {
			continue
		}
		if err == errEndTimeReached {
			return nil
		}
		// A Stop() call that interrupted an in-flight Ready surfaces as
		// whatever error the adapter reports for an aborted rendezvous
		// (e.g. ErrTimeout); report it uniformly as cancellation.
		if c.stopRequest.Load() {
			return ErrCancelled
		}
		return err
	}
}

// Stop sets the stop flag and asks the adapter to interrupt any in-flight
// blocking wait. Safe to call from any context, including a signal
// handler: it only flips an atomic bool and invokes the adapter's own
// signal-safe Interrupt hook.
func (c *Controller) Stop() {
	c.stopRequest.Store(true)
	if c.adapter != nil {
		c.adapter.Interrupt()
	}
}

// StopRequested reports whether Stop() has been called on this Controller.
func (c *Controller) StopRequested() bool { return c.stopRequest.Load() }

// SetDumpSink attaches the sink DumpDebug reports snapshots to, in
// addition to asking the adapter to emit its own diagnostic. A nil sink
// (the default) means DumpDebug only calls the adapter.
func (c *Controller) SetDumpSink(sink rundump.Sink) { c.dump = sink }

// DumpDebug asks the adapter to emit a diagnostic snapshot, and if a dump
// sink is attached, also persists a Signal Store snapshot of every
// instance's channels through it.
func (c *Controller) DumpDebug(ctx context.Context) error {
	if c.dump != nil && c.sim != nil {
		snap := rundump.Snapshot{
			SimUID:    c.sim.UID,
			Channels:  map[string]map[string]float64{},
			Timestamp: time.Now(),
		}
		for _, inst := range c.instances {
			snap.ModelTime = inst.Adapter.ModelTime
			for _, chName := range inst.Adapter.Store().Channels() {
				ch := inst.Adapter.Store().Channel(chName)
				vals := make(map[string]float64, len(ch.Signals()))
				for _, sig := range ch.Signals() {
					vals[sig.Name] = sig.Val
				}
				snap.Channels[inst.Spec.Name+"/"+chName] = vals
			}
		}
		if err := c.dump.Dump(ctx, snap); err != nil {
			c.log.Error(ctx, "debug dump failed", "error", err)
		}
	}
	if c.adapter == nil {
		return nil
	}
	return c.adapter.DumpDebug(ctx, c.adapterSim())
}

// Exit calls each instance's optional Destroy (logging but not aborting on
// failure), tells the adapter the run is over, and destroys the
// Controller.
func (c *Controller) Exit(ctx context.Context) {
	for _, inst := range c.instances {
		if inst.Ctrl.VTable.Destroy == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error(ctx, "model destroy panicked", "instance", inst.Spec.Name, "panic", r)
				}
			}()
			inst.Ctrl.VTable.Destroy(inst.desc)
		}()
	}
	if c.sim != nil {
		if err := c.adapter.Exit(ctx, c.adapterSim()); err != nil {
			c.log.Error(ctx, "adapter exit failed", "error", err)
		}
	}
	c.Destroy()
}

// Instances returns the loaded instances in load order. Used by the
// gateway facade and by tests.
func (c *Controller) Instances() []*Instance { return c.instances }

func (c *Controller) adapterSim() adapter.Sim {
	if c.sim == nil {
		return adapter.Sim{}
	}
	return adapter.Sim{UID: c.sim.UID, Timeout: c.sim.Timeout, EndTime: c.sim.EndTime, StepSize: c.sim.StepSize}
}
