// Package loader resolves a model instance's definition to a bound
// model.VTable, either by opening a Go plugin or by binding to the
// built-in gateway stubs.
package loader

import (
	"errors"
	"fmt"
	"plugin"

	"github.com/coruntime/modelc/internal/config"
	"github.com/coruntime/modelc/internal/gatewaymodel"
	"github.com/coruntime/modelc/internal/model"
)

// ErrInvalidConfiguration is returned when a model exposes neither Create
// nor Step (a completely empty interface is a fatal load error), and when a
// definition has neither a dynlib path nor a gateway marker.
var ErrInvalidConfiguration = errors.New("loader: model interface incomplete (no Create and no Step)")

const (
	createSymbol  = "Create"
	stepSymbol    = "Step"
	destroySymbol = "Destroy"
)

// Load resolves def to a VTable. When def.FullPath is non-empty, it opens
// that path as a Go plugin with local symbol binding and looks up the
// three well-known symbols. When def.FullPath is empty and def declares a
// `spec/runtime/gateway` node, it binds to the internal gateway stubs.
func Load(def config.ModelDefinition) (model.VTable, error) {
	if def.FullPath != "" {
		return loadDynamic(def.FullPath)
	}
	if def.Gateway {
		return model.VTable{
			Create:  gatewaymodel.Create,
			Step:    gatewaymodel.Step,
			Destroy: gatewaymodel.Destroy,
		}, nil
	}
	return model.VTable{}, fmt.Errorf("loader: %w: no dynlib path and no gateway marker", ErrInvalidConfiguration)
}

func loadDynamic(path string) (model.VTable, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return model.VTable{}, fmt.Errorf("loader: plugin.Open(%s): %w", path, err)
	}

	var vt model.VTable

	if sym, err := p.Lookup(createSymbol); err == nil {
		fn, ok := sym.(func(model.SetupContext, *model.Desc) (*model.Desc, error))
		if !ok {
			return model.VTable{}, fmt.Errorf("loader: symbol %s has unexpected signature", createSymbol)
		}
		vt.Create = fn
	}

	stepSym, stepErr := p.Lookup(stepSymbol)
	var hasStep bool
	if stepErr == nil {
		fn, ok := stepSym.(func(*model.Desc, *float64, float64) int)
		if !ok {
			return model.VTable{}, fmt.Errorf("loader: symbol %s has unexpected signature", stepSymbol)
		}
		vt.Step = fn
		hasStep = true
	}

	if sym, err := p.Lookup(destroySymbol); err == nil {
		fn, ok := sym.(func(*model.Desc))
		if !ok {
			return model.VTable{}, fmt.Errorf("loader: symbol %s has unexpected signature", destroySymbol)
		}
		vt.Destroy = fn
	}

	if vt.Create == nil && !hasStep {
		return model.VTable{}, fmt.Errorf("loader: %w", ErrInvalidConfiguration)
	}
	return vt, nil
}
