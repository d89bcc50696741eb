package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Submitted("feature", "create")
	m.Submitted("feature", "update")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pending))

	m.Committed("feature", "create")
	m.RolledBack("feature", "update", "NETWORK")
	m.Rejected("feature", "update", "CYCLE")
	m.ObserveCall("create", 15*time.Millisecond)
	m.Rekeyed()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.committed.WithLabelValues("feature", "create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rolledBack.WithLabelValues("feature", "update", "NETWORK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("feature", "update", "CYCLE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rekeys))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "featureplus_sync_ops_submitted_total")
	assert.Contains(t, names, "featureplus_sync_pending_ops")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Submitted("feature", "create")
	m.Committed("feature", "create")
	m.RolledBack("feature", "create", "NETWORK")
	m.Rejected("feature", "create", "CYCLE")
	m.ObserveCall("create", time.Second)
	m.Rekeyed()
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "unrelated_total", Help: "x"})
	reg.MustRegister(other)
	other.Inc()

	m.Submitted("task", "patch")
	m.Committed("task", "patch")

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	out := buf.String()
	assert.Contains(t, out, "# TYPE featureplus_sync_ops_submitted_total counter")
	assert.Contains(t, out, `featureplus_sync_ops_committed_total{kind="task",op="patch"} 1`)
	assert.NotContains(t, out, "unrelated_total")
}
