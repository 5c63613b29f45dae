package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	XPEntriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_xp_entries_total",
		Help: "The total number of XP entries processed by the ledger",
	}, []string{"outcome"})

	SoftCapEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "world_state_soft_cap_events_total",
		Help: "The total number of soft cap events emitted",
	})

	FatigueResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "world_state_fatigue_resets_total",
		Help: "The total number of fatigue resets",
	})

	PopulationAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_population_alerts_total",
		Help: "Population alerts raised by diff computations",
	}, []string{"kind"})

	ControlShifts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_control_shifts_total",
		Help: "Control shift evaluations by result",
	}, []string{"result"})

	OrderValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_order_validations_total",
		Help: "Order validations by overall status",
	}, []string{"status"})

	ValidationCategoryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "world_state_validation_category_duration_seconds",
		Help:    "Duration of individual order validation categories",
		Buckets: prometheus.DefBuckets,
	}, []string{"category", "status"})

	ImpactsRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_impacts_total",
		Help: "World impacts registered by aggregated level",
	}, []string{"level"})

	PlanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_plan_transitions_total",
		Help: "Mitigation plan state transitions",
	}, []string{"to"})

	MaintenanceRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_maintenance_rejections_total",
		Help: "Writes refused because of an active maintenance command",
	}, []string{"engine"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_state_events_published_total",
		Help: "Domain events delivered to sinks",
	}, []string{"sink", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "world_state_http_request_duration_seconds",
		Help:    "Duration of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	CatalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Duration of catalog service requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total number of catalog service requests",
	}, []string{"endpoint", "status"})

	DiscordMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discord_messages_sent_total",
		Help: "Total number of Discord messages sent",
	}, []string{"channel_type", "status"})
)
