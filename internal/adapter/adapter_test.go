package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coruntime/modelc/internal/adapter"
)

func TestSetStopTimeRejectsTimeBeforeModelTime(t *testing.T) {
	am := adapter.NewAdapterModel(1)
	am.ModelTime = 1.0
	require.Error(t, am.SetStopTime(0.5))
	require.Equal(t, 0.0, am.StopTime, "a rejected SetStopTime must not mutate StopTime")
}

func TestAdvanceCommitsStopTimeToModelTime(t *testing.T) {
	am := adapter.NewAdapterModel(1)
	require.NoError(t, am.SetStopTime(0.1))
	am.Advance()
	require.Equal(t, 0.1, am.ModelTime)
	require.Equal(t, am.StopTime, am.ModelTime)
}
