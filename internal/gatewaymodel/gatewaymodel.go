// Package gatewaymodel implements the built-in pseudo-model the loader
// binds to when a model definition declares spec/runtime/gateway instead
// of a dynamic library. Its Step is a pure time pass-through; the real
// work of a gateway run happens between Gateway.Sync calls in the caller's
// own environment (internal/gateway).
package gatewaymodel

import "github.com/coruntime/modelc/internal/model"

// Create registers a single model function named for the instance, whose
// step handler is the no-op Step below, then configures one channel
// binding per channel the model definition declared (passed through
// desc.Private as []model.GatewayChannel by the controller). Priority goes
// to a channel's Alias over its Name, matching the original gateway's
// selector semantics for SignalGroup matching.
func Create(ctx model.SetupContext, desc *model.Desc) (*model.Desc, error) {
	fn := &model.Function{
		Name:        desc.Name,
		Instance:    desc.Name,
		StepHandler: Step,
		Channels:    model.NewChannelOrder(),
	}
	if err := ctx.RegisterFunction(fn); err != nil {
		return nil, err
	}

	channels, _ := desc.Private.([]model.GatewayChannel)
	for _, gc := range channels {
		name := gc.Name
		if gc.Alias != "" {
			name = gc.Alias
		}
		if err := ctx.ConfigureChannel(desc.Name, name, nil); err != nil {
			return nil, err
		}
	}
	return desc, nil
}

// Step advances modelTime directly to stopTime and always succeeds. This
// standardizes on the (modelTime *float64, stopTime float64) -> int
// signature for every step handler; no ModelDesc-taking variant is
// implemented.
func Step(_ *model.Desc, modelTime *float64, stopTime float64) int {
	*modelTime = stopTime
	return 0
}

// Destroy is a no-op.
func Destroy(*model.Desc) {}
