// Package metrics provides Prometheus metrics for the pipeline monitor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexwatch_scan_cycles_total",
			Help: "Total number of database scan cycles by result",
		},
		[]string{"result"},
	)
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nexwatch_scan_duration_seconds",
			Help:    "Duration of a database scan cycle in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	IssuesDetected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexwatch_issues",
			Help: "Issues found by the latest successful scan, by kind",
		},
		[]string{"kind"},
	)
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexwatch_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"source"},
	)
	AlertFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexwatch_alert_failures_total",
			Help: "Total number of failed alert deliveries by stage",
		},
		[]string{"source", "stage"},
	)
	ReportEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexwatch_report_events_total",
			Help: "Total number of report files processed by outcome",
		},
		[]string{"outcome"},
	)
	AgentsNeedingAttention = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexwatch_agents_needing_attention",
			Help: "Agents whose latest report needs operator attention",
		},
	)
	ProjectTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexwatch_project_tasks",
			Help: "Tasks of the monitored project by status",
		},
		[]string{"status"},
	)
	AgentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexwatch_agents_active",
			Help: "Agents with a heartbeat inside the active window",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordScan(err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	ScanCycles.WithLabelValues(result).Inc()
	ScanDuration.Observe(duration.Seconds())
}

func UpdateIssueGauges(byKind map[string]int) {
	IssuesDetected.Reset()
	for kind, count := range byKind {
		IssuesDetected.WithLabelValues(kind).Set(float64(count))
	}
}

func RecordAlert(source string) {
	AlertsDispatched.WithLabelValues(source).Inc()
}

func RecordAlertFailure(source, stage string) {
	AlertFailures.WithLabelValues(source, stage).Inc()
}

func RecordReportEvent(outcome string) {
	ReportEvents.WithLabelValues(outcome).Inc()
}

func UpdateAgentsNeedingAttention(count int) {
	AgentsNeedingAttention.Set(float64(count))
}

func UpdateProjectTasks(byStatus map[string]int) {
	ProjectTasks.Reset()
	for status, count := range byStatus {
		ProjectTasks.WithLabelValues(status).Set(float64(count))
	}
}

func UpdateAgentsActive(count int) {
	AgentsActive.Set(float64(count))
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
