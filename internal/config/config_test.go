package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coruntime/modelc/internal/config"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestLoadStackGatewayModel(t *testing.T) {
	dir := t.TempDir()
	stackPath := writeFile(t, dir, "stack.yaml", `
kind: Stack
spec:
  simulation:
    transport: local
    uri: ""
    uid: 42
    step_size: 0.1
    end_time: 1.0
  models:
    - name: gw_instance
      model:
        name: gateway_model
`)
	modelPath := writeFile(t, dir, "model.yaml", `
kind: Model
metadata:
  name: gateway_model
spec:
  runtime:
    gateway: {}
  channels:
    - name: sensors
      alias: sensors_v2
`)

	sim, err := config.LoadStack(stackPath, modelPath)
	require.NoError(t, err)
	require.Equal(t, uint32(42), sim.UID)
	require.Equal(t, 0.1, sim.StepSize)
	require.Len(t, sim.Instances, 1)

	inst := sim.Instances[0]
	require.Equal(t, "gw_instance", inst.Name)
	require.Equal(t, uint32(42), inst.UID, "uid defaults to sim.UID + 10000*index")
	require.True(t, inst.Definition.Gateway)
	require.Equal(t, []config.ChannelSpec{{Name: "sensors", Alias: "sensors_v2"}}, inst.Definition.Channels)
}

func TestLoadStackAssignsUIDByIndexWhenInstanceUIDIsZero(t *testing.T) {
	dir := t.TempDir()
	stackPath := writeFile(t, dir, "stack.yaml", `
kind: Stack
spec:
  simulation:
    uid: 5
  models:
    - name: first
      model: {name: m}
    - name: second
      model: {name: m}
`)
	modelPath := writeFile(t, dir, "model.yaml", `
kind: Model
metadata:
  name: m
spec:
  runtime:
    gateway: {}
`)

	sim, err := config.LoadStack(stackPath, modelPath)
	require.NoError(t, err)
	require.Equal(t, uint32(5), sim.Instances[0].UID)
	require.Equal(t, uint32(10005), sim.Instances[1].UID)
}

func TestLoadStackRejectsEmptyModelList(t *testing.T) {
	dir := t.TempDir()
	stackPath := writeFile(t, dir, "stack.yaml", `
kind: Stack
spec:
  simulation:
    uid: 1
  models: []
`)
	_, err := config.LoadStack(stackPath)
	require.Error(t, err)
}

func TestLoadStackRejectsUnknownModelReference(t *testing.T) {
	dir := t.TempDir()
	stackPath := writeFile(t, dir, "stack.yaml", `
kind: Stack
spec:
  simulation:
    uid: 1
  models:
    - name: a
      model: {name: missing}
`)
	_, err := config.LoadStack(stackPath)
	require.Error(t, err)
}

func TestLoadStackRejectsMissingModelName(t *testing.T) {
	dir := t.TempDir()
	stackPath := writeFile(t, dir, "stack.yaml", `
kind: Stack
spec:
  simulation:
    uid: 1
  models:
    - name: a
      model: {}
`)
	_, err := config.LoadStack(stackPath)
	require.Error(t, err, "schema validation should reject a model entry with no name")
}
