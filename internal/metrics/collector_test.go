package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorReportsIncrementedCounters(t *testing.T) {
	c := New()
	c.IncDecodeError()
	c.IncDecodeError()
	c.IncReconciliationFired()
	c.SetActiveClients(3)

	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.Metric {
			switch {
			case m.Counter != nil:
				values[f.GetName()] = m.Counter.GetValue()
			case m.Gauge != nil:
				values[f.GetName()] = m.Gauge.GetValue()
			}
		}
	}

	require.Equal(t, float64(2), values["netcode_decode_errors_total"])
	require.Equal(t, float64(1), values["netcode_reconciliations_fired_total"])
	require.Equal(t, float64(3), values["netcode_active_clients"])
}

func TestCollectorExposesEightMetrics(t *testing.T) {
	c := New()
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	require.Equal(t, 8, count)
}
