package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// HTTP surface
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"route", "method", "code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devbox_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ActiveRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devbox_active_requests",
		Help: "Current in-flight requests",
	})

	SocketConnectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "devbox_socket_connection_duration_seconds",
		Help:    "Lifetime of websocket connections",
		Buckets: []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 12 * 3600},
	})

	// sessions
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devbox_active_sessions",
		Help: "Admitted websocket sessions",
	})

	SlowConsumerClosures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devbox_slow_consumer_closures_total",
		Help: "Sessions closed because their send buffer filled up",
	})

	AdmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_admissions_total",
		Help: "Connection attempts by outcome",
	}, []string{"result"})

	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_mutations_total",
		Help: "File mutations by operation and outcome",
	}, []string{"op", "result"})

	QuotaRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_quota_rejected_total",
		Help: "Operations refused by the quota gate",
	}, []string{"op"})

	// workspace instances
	LoadedWorkspaces = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devbox_loaded_workspaces",
		Help: "Workspace mirrors resident in memory",
	})

	WorkspaceLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "devbox_workspace_load_duration_seconds",
		Help:    "Time to load and materialise a workspace",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	TeardownsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_teardowns_total",
		Help: "Teardown timer outcomes",
	}, []string{"outcome"})

	PresenceTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_presence_transitions_total",
		Help: "Presence state transitions",
	}, []string{"from", "to"})

	// terminals
	LiveTerminals = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devbox_live_terminals",
		Help: "Running terminal processes",
	})

	TerminalExitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_terminal_exits_total",
		Help: "Terminal process exits by reason",
	}, []string{"reason"})

	// persistence
	PersistTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_persist_total",
		Help: "Persistent store writes by kind and status",
	}, []string{"kind", "status"})

	PersistRetryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devbox_persist_retry_total",
		Help: "Persistent store write retries",
	}, []string{"kind"})

	PersistQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devbox_persist_queue_depth",
		Help: "Store writes waiting to be applied",
	})

	PersistDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devbox_persist_duration_seconds",
		Help:    "Persistent store write latency",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"kind"})
)

func RegisterAll(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, ActiveRequests, SocketConnectionDuration,
		ActiveSessions, SlowConsumerClosures, AdmissionsTotal, MutationsTotal, QuotaRejectedTotal,
		LoadedWorkspaces, WorkspaceLoadDuration, TeardownsTotal, PresenceTransitions,
		LiveTerminals, TerminalExitsTotal,
		PersistTotal, PersistRetryTotal, PersistQueueDepth, PersistDuration,
	)
}
