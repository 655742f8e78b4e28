package metrics

import (
	"strconv"
	"sync"
	"time"

	"rcmos/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	runsSubmittedCounter   *prometheus.CounterVec
	runTransitionsCounter  *prometheus.CounterVec
	instancePhaseCounter   *prometheus.CounterVec
	signalsCounter         *prometheus.CounterVec
	eventsPublishedCounter *prometheus.CounterVec
	activityRetriesCounter prometheus.Counter
	advanceDurationMetric  prometheus.Histogram
	timersSweptCounter     prometheus.Counter
	httpRequestsCounter    *prometheus.CounterVec
	httpDurationMetric     *prometheus.HistogramVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		runsSubmittedCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runs_submitted_total",
				Help: "Run submissions by result (created or deduplicated).",
			},
			[]string{"result"},
		)

		runTransitionsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "run_transitions_total",
				Help: "Run status transitions by target status.",
			},
			[]string{"status"},
		)

		instancePhaseCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "instance_phase_total",
				Help: "Orchestrator instance phase changes by target phase.",
			},
			[]string{"phase"},
		)

		signalsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_total",
				Help: "MFA code signals by result.",
			},
			[]string{"result"},
		)

		eventsPublishedCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Lifecycle events published by type.",
			},
			[]string{"type"},
		)

		activityRetriesCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "activity_retries_total",
				Help: "Retried orchestrator activity attempts.",
			},
		)

		advanceDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "instance_advance_duration_seconds",
				Help:    "Duration of one orchestrator advance task in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		timersSweptCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timers_swept_total",
				Help: "Expired code deadlines handed back to the task queue.",
			},
		)

		prometheus.MustRegister(
			runsSubmittedCounter,
			runTransitionsCounter,
			instancePhaseCounter,
			signalsCounter,
			eventsPublishedCounter,
			activityRetriesCounter,
			advanceDurationMetric,
			timersSweptCounter,
		)

		httpRequestsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		)
		httpDurationMetric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
		prometheus.MustRegister(httpRequestsCounter, httpDurationMetric)

		for _, status := range []domain.RunStatus{
			domain.RunStatusQueued,
			domain.RunStatusRunning,
			domain.RunStatusSucceeded,
			domain.RunStatusFailed,
		} {
			runTransitionsCounter.WithLabelValues(string(status))
		}

		for _, phase := range []domain.InstancePhase{
			domain.PhasePending,
			domain.PhaseAwaitingCode,
			domain.PhaseExecuting,
			domain.PhaseCompleted,
			domain.PhaseFailed,
		} {
			instancePhaseCounter.WithLabelValues(string(phase))
		}
	})
}

func IncRunSubmitted(result string) {
	Init()
	runsSubmittedCounter.WithLabelValues(result).Inc()
}

func IncRunTransition(status domain.RunStatus) {
	Init()
	runTransitionsCounter.WithLabelValues(string(status)).Inc()
}

func IncInstancePhase(phase domain.InstancePhase) {
	Init()
	instancePhaseCounter.WithLabelValues(string(phase)).Inc()
}

func IncSignal(result string) {
	Init()
	signalsCounter.WithLabelValues(result).Inc()
}

func IncEventPublished(eventType domain.EventType) {
	Init()
	eventsPublishedCounter.WithLabelValues(string(eventType)).Inc()
}

func IncActivityRetries() {
	Init()
	activityRetriesCounter.Inc()
}

func ObserveAdvanceDuration(d time.Duration) {
	Init()
	advanceDurationMetric.Observe(d.Seconds())
}

func AddTimersSwept(n int) {
	Init()
	timersSweptCounter.Add(float64(n))
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	if route == "" {
		route = "unmatched"
	}
	httpRequestsCounter.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDurationMetric.WithLabelValues(method, route).Observe(d.Seconds())
}
