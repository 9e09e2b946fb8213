// Package gateway implements the Gateway Facade: a thin wrapper letting
// a caller-owned event loop drive the simulation's time
// forward at its own pace rather than ceding the loop to Controller.Run.
// A gateway run performs BusReady exactly once, then the caller calls Sync
// repeatedly as its own clock advances.
package gateway

import (
	"context"

	"github.com/coruntime/modelc/internal/config"
	"github.com/coruntime/modelc/internal/controller"
)

// Gateway wraps a Controller already loaded with a single gateway-backed
// model instance and drives it on behalf of an external event loop.
type Gateway struct {
	ctrl *controller.Controller
	inst *controller.Instance
}

// Setup loads sim (which must declare exactly one gateway-backed model
// instance) onto ctrl and brings the bus online, returning a Gateway ready
// for repeated Sync calls.
func Setup(ctx context.Context, ctrl *controller.Controller, sim *config.SimulationSpec) (*Gateway, error) {
	if err := ctrl.LoadModels(sim); err != nil {
		return nil, err
	}
	if err := ctrl.BusReady(ctx); err != nil {
		return nil, err
	}
	instances := ctrl.Instances()
	if len(instances) == 0 {
		return nil, controller.ErrInvalidConfiguration
	}
	return &Gateway{ctrl: ctrl, inst: instances[0]}, nil
}

// Sync advances the simulation to catch up with modelTime: if modelTime
// is already behind the instance's committed model time, the caller
// itself has fallen behind and must advance its own time
// before retrying, so Sync returns ErrGatewayBehind without stepping.
// Otherwise it steps the controller, at step_size increments, for as long
// as the committed model time has not yet overtaken modelTime, and
// returns nil. A committed time within syncTolerance above modelTime
// counts as not yet overtaken, so the rounding error of summed step_size
// increments (0.1+0.1+0.1 is slightly above 0.3) does not cut the
// catch-up one step short.
func (g *Gateway) Sync(ctx context.Context, modelTime float64) error {
	if modelTime < g.inst.Adapter.ModelTime {
		return controller.ErrGatewayBehind
	}
	for g.inst.Adapter.ModelTime <= modelTime+syncTolerance {
		if g.ctrl.StopRequested() {
			return controller.ErrCancelled
		}
		if err := g.ctrl.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// syncTolerance absorbs floating-point drift in Sync's catch-up comparison.
const syncTolerance = 1e-9

// Exit tears down the underlying controller.
func (g *Gateway) Exit(ctx context.Context) {
	g.ctrl.Exit(ctx)
}
