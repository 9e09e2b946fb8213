// Package config parses the stack/model-definition YAML configuration
// surface into a populated SimulationSpec. Producing these documents from
// YAML is the only part of this package that is genuinely in scope: the
// wire transport and bus adapter that consume the resulting spec are
// external collaborators.
package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

type (
	// SimulationSpec is the root of one run.
	SimulationSpec struct {
		Transport string
		URI       string
		UID       uint32
		StepSize  float64
		EndTime   float64
		Timeout   float64
		Instances []*ModelInstanceSpec
	}

	// ModelInstanceSpec is one model being hosted.
	ModelInstanceSpec struct {
		Name       string
		UID        uint32
		Definition ModelDefinition
	}

	// ModelDefinition is the resolved model-definition descriptor: logical
	// name, directory path, library file, resolved absolute path, and the
	// channel/gateway declarations parsed from the model-definition
	// document.
	ModelDefinition struct {
		Name     string
		Path     string
		Library  string
		FullPath string
		Gateway  bool
		Channels []ChannelSpec
	}

	// ChannelSpec is one channel declaration from a model-definition
	// document: a bus channel name and an optional alias used to select a
	// differently-named SignalGroup.
	ChannelSpec struct {
		Name  string
		Alias string
	}

	// stackDoc is the on-disk shape of a stack document.
	stackDoc struct {
		Kind string `yaml:"kind"`
		Spec struct {
			Simulation struct {
				Transport string  `yaml:"transport"`
				URI       string  `yaml:"uri"`
				UID       uint32  `yaml:"uid"`
				StepSize  float64 `yaml:"step_size"`
				EndTime   float64 `yaml:"end_time"`
				Timeout   float64 `yaml:"timeout"`
			} `yaml:"simulation"`
			Models []struct {
				Name  string `yaml:"name"`
				UID   uint32 `yaml:"uid"`
				Model struct {
					Name string `yaml:"name"`
				} `yaml:"model"`
			} `yaml:"models"`
		} `yaml:"spec"`
	}

	// modelDoc is the on-disk shape of a model-definition document.
	modelDoc struct {
		Kind     string `yaml:"kind"`
		Metadata struct {
			Name        string `yaml:"name"`
			Annotations struct {
				Path string `yaml:"path"`
			} `yaml:"annotations"`
		} `yaml:"metadata"`
		Spec struct {
			Runtime struct {
				Dynlib []struct {
					OS   string `yaml:"os"`
					Arch string `yaml:"arch"`
					Path string `yaml:"path"`
				} `yaml:"dynlib"`
				Gateway *struct{} `yaml:"gateway"`
			} `yaml:"runtime"`
			Channels []struct {
				Name  string `yaml:"name"`
				Alias string `yaml:"alias"`
			} `yaml:"channels"`
		} `yaml:"spec"`
	}
)

// LoadStack parses one or more stack/model-definition YAML files into a
// SimulationSpec. Documents are matched by `kind`: "Stack" supplies the
// simulation and model-instance list; "Model" documents supply the
// per-model definitions referenced by name. Validation failures are
// reported as Configuration errors before any network action.
func LoadStack(paths ...string) (*SimulationSpec, error) {
	var stacks []stackDoc
	models := map[string]modelDoc{}

	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", p, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		for {
			var generic struct {
				Kind string `yaml:"kind"`
			}
			node := yaml.Node{}
			if err := dec.Decode(&node); err != nil {
				break
			}
			if err := node.Decode(&generic); err != nil {
				return nil, fmt.Errorf("config: %s: %w", p, err)
			}
			var raw any
			if err := node.Decode(&raw); err != nil {
				return nil, fmt.Errorf("config: %s: %w", p, err)
			}

			switch generic.Kind {
			case "Stack":
				if err := validateStack(raw); err != nil {
					return nil, fmt.Errorf("config: %s: %w", p, err)
				}
				var sd stackDoc
				if err := node.Decode(&sd); err != nil {
					return nil, fmt.Errorf("config: %s: decode stack: %w", p, err)
				}
				stacks = append(stacks, sd)
			case "Model":
				if err := validateModel(raw); err != nil {
					return nil, fmt.Errorf("config: %s: %w", p, err)
				}
				var md modelDoc
				if err := node.Decode(&md); err != nil {
					return nil, fmt.Errorf("config: %s: decode model: %w", p, err)
				}
				models[md.Metadata.Name] = md
			}
		}
	}

	if len(stacks) == 0 {
		return nil, fmt.Errorf("config: no Stack document found")
	}
	sd := stacks[0]
	if len(sd.Spec.Models) == 0 {
		return nil, fmt.Errorf("config: stack has an empty model-name list")
	}

	sim := &SimulationSpec{
		Transport: sd.Spec.Simulation.Transport,
		URI:       sd.Spec.Simulation.URI,
		UID:       sd.Spec.Simulation.UID,
		StepSize:  sd.Spec.Simulation.StepSize,
		EndTime:   sd.Spec.Simulation.EndTime,
		Timeout:   sd.Spec.Simulation.Timeout,
	}

	for i, m := range sd.Spec.Models {
		md, ok := models[m.Model.Name]
		if !ok {
			return nil, fmt.Errorf("config: instance %q references unknown model %q", m.Name, m.Model.Name)
		}
		def, err := resolveDefinition(md)
		if err != nil {
			return nil, fmt.Errorf("config: model %q: %w", m.Model.Name, err)
		}
		uid := m.UID
		if uid == 0 {
			uid = sim.UID + uint32(10000*i)
		}
		sim.Instances = append(sim.Instances, &ModelInstanceSpec{
			Name:       m.Name,
			UID:        uid,
			Definition: def,
		})
	}

	return sim, nil
}

func resolveDefinition(md modelDoc) (ModelDefinition, error) {
	def := ModelDefinition{
		Name: md.Metadata.Name,
		Path: md.Metadata.Annotations.Path,
	}
	for _, ch := range md.Spec.Channels {
		def.Channels = append(def.Channels, ChannelSpec{Name: ch.Name, Alias: ch.Alias})
	}
	if md.Spec.Runtime.Gateway != nil {
		def.Gateway = true
		return def, nil
	}

	var match *struct {
		OS   string `yaml:"os"`
		Arch string `yaml:"arch"`
		Path string `yaml:"path"`
	}
	for i := range md.Spec.Runtime.Dynlib {
		d := md.Spec.Runtime.Dynlib[i]
		if d.OS == runtime.GOOS && d.Arch == runtime.GOARCH {
			match = &d
			break
		}
	}
	if match == nil {
		return def, fmt.Errorf("no dynlib entry for os=%s arch=%s", runtime.GOOS, runtime.GOARCH)
	}
	if match.Path == "" {
		return def, fmt.Errorf("dynlib entry missing path")
	}
	def.Library = match.Path
	def.FullPath = def.Path + string(os.PathSeparator) + match.Path
	return def, nil
}
