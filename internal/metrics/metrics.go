package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ussd"

// Metrics holds the service counters on a private registry
type Metrics struct {
	Registry           *prometheus.Registry
	Requests           *prometheus.CounterVec // by top-level menu
	Registrations      *prometheus.CounterVec // by user type
	ListingsCreated    prometheus.Counter
	PickupsScheduled   prometheus.Counter
	SMSSent            *prometheus.CounterVec // by result
	InfrastructureErrs prometheus.Counter
}

// New creates and registers all counters
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "USSD requests by top-level menu option.",
		}, []string{"menu"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Completed registrations by user type.",
		}, []string{"user_type"}),
		ListingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_created_total",
			Help:      "Waste listings created.",
		}),
		PickupsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pickups_scheduled_total",
			Help:      "Listings moved from available to scheduled.",
		}),
		SMSSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_sent_total",
			Help:      "Outbound SMS attempts by result.",
		}, []string{"result"}),
		InfrastructureErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "infrastructure_errors_total",
			Help:      "Requests answered with the service-unavailable screen.",
		}),
	}

	m.Registry.MustRegister(
		m.Requests,
		m.Registrations,
		m.ListingsCreated,
		m.PickupsScheduled,
		m.SMSSent,
		m.InfrastructureErrs,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
