package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordScan(t *testing.T) {
	ScanCycles.Reset()

	before := getHistogramCount(t, ScanDuration)

	RecordScan(nil, 200*time.Millisecond)
	RecordScan(nil, 100*time.Millisecond)
	RecordScan(errors.New("db down"), 50*time.Millisecond)

	assert.Equal(t, 2.0, getCounterValue(t, ScanCycles, "ok"))
	assert.Equal(t, 1.0, getCounterValue(t, ScanCycles, "error"))
	assert.Equal(t, before+3, getHistogramCount(t, ScanDuration))
}

func TestUpdateIssueGauges(t *testing.T) {
	UpdateIssueGauges(map[string]int{
		"FAILED_TASK": 2,
		"ERROR_LOG":   5,
	})

	assert.Equal(t, 2.0, getGaugeValue(t, IssuesDetected, "FAILED_TASK"))
	assert.Equal(t, 5.0, getGaugeValue(t, IssuesDetected, "ERROR_LOG"))
}

func TestUpdateIssueGauges_Reset(t *testing.T) {
	UpdateIssueGauges(map[string]int{"STUCK_TASK": 3})
	UpdateIssueGauges(map[string]int{"ERROR_LOG": 1})

	count := testCollectorCount(IssuesDetected)
	assert.Equal(t, 1, count, "stale kinds should be cleared")
}

func TestRecordAlert(t *testing.T) {
	AlertsDispatched.Reset()
	AlertFailures.Reset()

	RecordAlert("database")
	RecordAlert("database")
	RecordAlertFailure("reports", "notify")

	assert.Equal(t, 2.0, getCounterValue(t, AlertsDispatched, "database"))
	assert.Equal(t, 1.0, getCounterValue(t, AlertFailures, "reports", "notify"))
}

func TestRecordReportEvent(t *testing.T) {
	ReportEvents.Reset()

	tests := []struct {
		name    string
		outcome string
		times   int
	}{
		{"attention", "attention", 2},
		{"informational", "informational", 1},
		{"failed", "failed", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range tt.times {
				RecordReportEvent(tt.outcome)
			}
			assert.Equal(t, float64(tt.times), getCounterValue(t, ReportEvents, tt.outcome))
		})
	}
}

func TestUpdateProjectTasks(t *testing.T) {
	UpdateProjectTasks(map[string]int{"completed": 4, "in_progress": 1})

	assert.Equal(t, 4.0, getGaugeValue(t, ProjectTasks, "completed"))
	assert.Equal(t, 1.0, getGaugeValue(t, ProjectTasks, "in_progress"))
}

func TestSimpleGauges(t *testing.T) {
	UpdateAgentsNeedingAttention(3)
	UpdateAgentsActive(2)

	assert.Equal(t, 3.0, getPlainGaugeValue(t, AgentsNeedingAttention))
	assert.Equal(t, 2.0, getPlainGaugeValue(t, AgentsActive))
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/api/status", "200", 250*time.Millisecond)

	assert.Equal(t, 1.0, getCounterValue(t, HTTPRequestsTotal, "GET", "/api/status", "200"))

	metric := &dto.Metric{}
	observer, err := HTTPRequestDuration.GetMetricWithLabelValues("GET", "/api/status")
	require.NoError(t, err)
	require.NoError(t, observer.(prometheus.Histogram).Write(metric))
	assert.Equal(t, 0.25, metric.Histogram.GetSampleSum())
}

func getCounterValue(t *testing.T, counter *prometheus.CounterVec, labels ...string) float64 {
	metric := &dto.Metric{}
	c, err := counter.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	require.NoError(t, c.Write(metric))
	return metric.Counter.GetValue()
}

func getGaugeValue(t *testing.T, gauge *prometheus.GaugeVec, labels ...string) float64 {
	metric := &dto.Metric{}
	g, err := gauge.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	require.NoError(t, g.Write(metric))
	return metric.Gauge.GetValue()
}

func getPlainGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.Gauge.GetValue()
}

func getHistogramCount(t *testing.T, histogram prometheus.Histogram) uint64 {
	metric := &dto.Metric{}
	require.NoError(t, histogram.Write(metric))
	return metric.Histogram.GetSampleCount()
}

func testCollectorCount(c prometheus.Collector) int {
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	n := 0
	for range ch {
		n++
	}

	return n
}
