package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMessage("dispatched")
		m.RecordHandler("named", "break")
		m.RecordDispatch(time.Millisecond)
		m.RecordReplyLine("sent")
		m.RecordCodeDBWrite("insert", "ok", 1)
		m.RecordHTTPRequest("cratesio", "200", time.Millisecond)
		m.RecordConnection("ok")
	})
}

func TestRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordMessage("dispatched")
	m.RecordMessage("dispatched")
	m.RecordMessage("dropped")
	m.RecordHandler("named", "break")
	m.RecordReplyLine("too_long")
	m.RecordCodeDBWrite("insert", "ok", 3)

	assert.Equal(t, 2.0, value(t, m.MessagesTotal.WithLabelValues("dispatched")))
	assert.Equal(t, 1.0, value(t, m.MessagesTotal.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, value(t, m.HandlerCallsTotal.WithLabelValues("named", "break")))
	assert.Equal(t, 1.0, value(t, m.ReplyLinesTotal.WithLabelValues("too_long")))
	assert.Equal(t, 3.0, value(t, m.CodeDBEntries))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_separateRegistries(t *testing.T) {
	// each registry gets its own collectors, so tests can build metrics repeatedly
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
