package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	DoctorForms = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetclinic_doctor_form_submissions_total",
			Help: "Doctor form submissions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	SearchQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetclinic_search_queries_total",
			Help: "Service searches by backend that answered",
		},
		[]string{"backend"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetclinic_cache_lookups_total",
			Help: "Page cache lookups by result",
		},
		[]string{"result"},
	)

	AdminActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetclinic_admin_actions_total",
			Help: "Admin writes by model and action",
		},
		[]string{"model", "action"},
	)

	RemindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetclinic_reminders_total",
			Help: "Appointment reminders by delivery status",
		},
		[]string{"status"},
	)

	EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetclinic_events_consumed_total",
			Help: "Kafka events processed by type",
		},
		[]string{"event"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			DoctorForms,
			SearchQueries,
			CacheLookups,
			AdminActions,
			RemindersSent,
			EventsConsumed,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
