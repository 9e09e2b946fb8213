package localbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coruntime/modelc/internal/adapter"
	"github.com/coruntime/modelc/internal/adapter/localbus"
)

func TestReadyFansOutFinalValToVal(t *testing.T) {
	bus := localbus.NewBus()
	a := localbus.New(bus)

	producer := adapter.NewAdapterModel(1)
	consumer := adapter.NewAdapterModel(2)
	a.RegisterModel(1, producer)
	a.RegisterModel(2, consumer)

	a.InitChannel(producer, "shared", []string{"x"})
	a.InitChannel(consumer, "shared", []string{"x"})

	sm, err := a.GetSignalMap(producer, "shared", []string{"x"})
	require.NoError(t, err)
	sm[0].Signal.FinalVal = 3.5

	require.NoError(t, a.Ready(context.Background(), adapter.Sim{}))

	csm, err := a.GetSignalMap(consumer, "shared", []string{"x"})
	require.NoError(t, err)
	require.Equal(t, 3.5, csm[0].Signal.Val, "fan-out must reach every registered member, including other instances")
}

func TestReadyIncludesSelfFanOut(t *testing.T) {
	bus := localbus.NewBus()
	a := localbus.New(bus)

	am := adapter.NewAdapterModel(1)
	a.RegisterModel(1, am)
	a.InitChannel(am, "loop", []string{"v"})

	sm, err := a.GetSignalMap(am, "loop", []string{"v"})
	require.NoError(t, err)
	sm[0].Signal.FinalVal = 9

	require.NoError(t, a.Ready(context.Background(), adapter.Sim{}))
	require.Equal(t, 9.0, sm[0].Signal.Val)
}

func TestInterruptCausesReadyToReturnErrTimeout(t *testing.T) {
	bus := localbus.NewBus()
	a := localbus.New(bus)

	a.Interrupt()
	err := a.Ready(context.Background(), adapter.Sim{})
	require.ErrorIs(t, err, adapter.ErrTimeout)
}

func TestDestroyAdapterModelRemovesMember(t *testing.T) {
	bus := localbus.NewBus()
	a := localbus.New(bus)

	am := adapter.NewAdapterModel(1)
	a.RegisterModel(1, am)
	a.DestroyAdapterModel(am)

	// A Ready call must not fail after the member is gone.
	require.NoError(t, a.Ready(context.Background(), adapter.Sim{}))
}
