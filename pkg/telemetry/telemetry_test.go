package telemetry

import (
	"context"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, tel.MeterProvider)
	require.Nil(t, tel.Registry)
	require.NotNil(t, tel.Meter)
	require.NotNil(t, tel.Tracer)
	require.NoError(t, shutdown(context.Background()))
}

func TestNew_EnabledExportsToRegistry(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: true, ServiceName: "grid-test"})
	require.NoError(t, err)
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	counter, err := tel.Meter.Int64Counter("grid_test")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := tel.Registry.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "grid_test") && f.GetType() == dto.MetricType_COUNTER {
			found = true
			require.Equal(t, float64(3), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	require.True(t, found, "counter was not exported")
}

func TestNew_TwiceDoesNotCollide(t *testing.T) {
	for i := 0; i < 2; i++ {
		_, shutdown, err := New(Config{Enabled: true})
		require.NoError(t, err)
		require.NoError(t, shutdown(context.Background()))
	}
}
