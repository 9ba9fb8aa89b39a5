package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_RecordsGrainCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.GrainsRunning.Set(3)
	m.SupervisorStarts.WithLabelValues("ok").Inc()
	m.GrainStorageBytes.WithLabelValues("grain-1").Set(4096)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "sandstorm_grains_running" {
			found = true
			require.Equal(t, float64(3), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	require.True(t, found, "sandstorm_grains_running metric must be registered")
}
