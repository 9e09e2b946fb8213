package controller

import (
	"fmt"

	"github.com/coruntime/modelc/internal/model"
)

// setupContext is the concrete model.SetupContext handed to a model's
// Create. It is only valid for the duration of that call, binding
// RegisterFunction/ConfigureChannel to one instance's controller and
// adapter state.
type setupContext struct {
	inst       *Instance
	controller *Controller
}

// RegisterFunction adds fn to the owning instance's model-function
// registry, failing on a duplicate name.
func (s *setupContext) RegisterFunction(fn *model.Function) error {
	if fn.Instance == "" {
		fn.Instance = s.inst.Spec.Name
	}
	return s.controller.RegisterModelFunction(s.inst, fn)
}

// ConfigureChannel declares signalNames on channelName in the instance's
// Signal Store (creating them if new), then binds a FunctionChannel for
// functionName recording the signal vector and parallel scalar/binary
// arrays the marshaling pass will fill each tick.
func (s *setupContext) ConfigureChannel(functionName, channelName string, signalNames []string) error {
	fn := s.inst.Ctrl.Functions.Get(functionName)
	if fn == nil {
		return fmt.Errorf("controller: configure channel %q: no such function %q", channelName, functionName)
	}

	s.controller.adapter.InitChannel(s.inst.Adapter, channelName, signalNames)

	fc := &model.FunctionChannel{
		ChannelName: channelName,
		Signals:     append([]string(nil), signalNames...),
		Scalar:      make([]float64, len(signalNames)),
		Binary:      make([]model.BinarySignal, len(signalNames)),
		PrevScalar:  make([]float64, len(signalNames)),
	}
	fn.Channels.Set(channelName, fc)
	return nil
}
