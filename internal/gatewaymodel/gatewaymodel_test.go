package gatewaymodel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coruntime/modelc/internal/gatewaymodel"
	"github.com/coruntime/modelc/internal/model"
)

type fakeSetup struct {
	registered []*model.Function
	configured []configuredChannel
}

type configuredChannel struct {
	function, channel string
	signals           []string
}

func (f *fakeSetup) RegisterFunction(fn *model.Function) error {
	f.registered = append(f.registered, fn)
	return nil
}

func (f *fakeSetup) ConfigureChannel(functionName, channelName string, signalNames []string) error {
	f.configured = append(f.configured, configuredChannel{functionName, channelName, signalNames})
	return nil
}

func TestCreateRegistersOneFunctionPerInstance(t *testing.T) {
	desc := &model.Desc{Name: "gw1", UID: 7}
	setup := &fakeSetup{}

	rebound, err := gatewaymodel.Create(setup, desc)
	require.NoError(t, err)
	require.Same(t, desc, rebound)
	require.Len(t, setup.registered, 1)
	require.Equal(t, "gw1", setup.registered[0].Name)
}

func TestCreatePrefersAliasOverName(t *testing.T) {
	desc := &model.Desc{
		Name: "gw1",
		Private: []model.GatewayChannel{
			{Name: "raw_channel", Alias: "friendly_name"},
			{Name: "plain_channel"},
		},
	}
	setup := &fakeSetup{}

	_, err := gatewaymodel.Create(setup, desc)
	require.NoError(t, err)
	require.Len(t, setup.configured, 2)
	require.Equal(t, "friendly_name", setup.configured[0].channel)
	require.Equal(t, "plain_channel", setup.configured[1].channel)
}

func TestStepAdvancesModelTimeToStopTime(t *testing.T) {
	modelTime := 0.0
	rc := gatewaymodel.Step(&model.Desc{}, &modelTime, 1.5)
	require.Zero(t, rc)
	require.Equal(t, 1.5, modelTime)
}

func TestDestroyIsNoopAndSafeOnNilDesc(t *testing.T) {
	require.NotPanics(t, func() { gatewaymodel.Destroy(nil) })
}
