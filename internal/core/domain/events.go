package domain

import "time"

type EventKind string

const (
	EventSoftCapReached        EventKind = "progression.soft_cap_reached"
	EventFatigueReset          EventKind = "progression.fatigue_reset"
	EventPopulationAlert       EventKind = "population.alert"
	EventSnapshotRecorded      EventKind = "population.snapshot_recorded"
	EventControlShiftCommitted EventKind = "control.shift_committed"
	EventControlShiftActivated EventKind = "control.shift_activated"
	EventOrderValidated        EventKind = "orders.validated"
	EventImpactRegistered      EventKind = "impact.registered"
	EventPlanTransition        EventKind = "crisis.plan_transition"
	EventActionFailed          EventKind = "crisis.action_failed"
	EventMaintenanceChanged    EventKind = "maintenance.changed"
)

// Event is an auditable record emitted after a committed mutation.
// Payload is one of the engine result types and is serialised as-is by sinks.
type Event struct {
	AuditID     ID        `json:"auditId"`
	Kind        EventKind `json:"kind"`
	AggregateID string    `json:"aggregateId"`
	OccurredAt  time.Time `json:"occurredAt"`
	TraceID     string    `json:"traceId,omitempty"`
	Payload     any       `json:"payload"`
}

func NewEvent(kind EventKind, aggregateID string, at time.Time, payload any) Event {
	return Event{
		AuditID:     NewID(),
		Kind:        kind,
		AggregateID: aggregateID,
		OccurredAt:  at.UTC(),
		Payload:     payload,
	}
}
