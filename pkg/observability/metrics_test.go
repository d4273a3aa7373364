package observability_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/observability"
)

func gatherCounterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}

		for _, m := range fam.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}

			match := true

			for k, v := range labels {
				if got[k] != v {
					match = false

					break
				}
			}

			if match {
				if c := m.GetCounter(); c != nil {
					return c.GetValue(), true
				}

				return m.GetGauge().GetValue(), true
			}
		}
	}

	return 0, false
}

func TestREDMetricsRecordRequest(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rm := observability.NewREDMetrics(reg)

	rm.RecordRequest("index", "ok", 120*time.Millisecond)
	rm.RecordError("index", "transient")

	value, found := gatherCounterValue(t, reg, "codegraph_requests_total", map[string]string{"op": "index", "status": "ok"})
	require.True(t, found)
	assert.Equal(t, float64(1), value)

	value, found = gatherCounterValue(t, reg, "codegraph_errors_total", map[string]string{"op": "index", "category": "transient"})
	require.True(t, found)
	assert.Equal(t, float64(1), value)
}

func TestREDMetricsTrackInflight(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rm := observability.NewREDMetrics(reg)

	done := rm.TrackInflight("query")

	value, found := gatherCounterValue(t, reg, "codegraph_inflight_requests", map[string]string{"op": "query"})
	require.True(t, found)
	assert.Equal(t, float64(1), value)

	done()

	value, found = gatherCounterValue(t, reg, "codegraph_inflight_requests", map[string]string{"op": "query"})
	require.True(t, found)
	assert.Equal(t, float64(0), value)
}

func TestNewREDMetricsWithNilRegistererDoesNotPanic(t *testing.T) {
	t.Parallel()

	rm := observability.NewREDMetrics(nil)
	assert.NotPanics(t, func() { rm.RecordRequest("index", "ok", time.Millisecond) })
}
