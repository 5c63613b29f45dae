package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Axis string

const (
	AxisEconomic      Axis = "economic"
	AxisSocial        Axis = "social"
	AxisPolitical     Axis = "political"
	AxisSecurity      Axis = "security"
	AxisEnvironmental Axis = "environmental"
	AxisCultural      Axis = "cultural"
)

var Axes = []Axis{AxisEconomic, AxisSocial, AxisPolitical, AxisSecurity, AxisEnvironmental, AxisCultural}

func (a Axis) Valid() bool {
	switch a {
	case AxisEconomic, AxisSocial, AxisPolitical, AxisSecurity, AxisEnvironmental, AxisCultural:
		return true
	}
	return false
}

const MinImpactAxes = 4

type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// ImpactMagnitude holds per-axis values in [0,1] and the composite (max axis).
type ImpactMagnitude struct {
	Axes      map[Axis]decimal.Decimal `json:"axes"`
	Composite decimal.Decimal          `json:"composite"`
}

type Trigger struct {
	ImpactID    ID                       `json:"impactId"`
	Source      string                   `json:"source"`
	Description string                   `json:"description"`
	Metrics     map[Axis]decimal.Decimal `json:"metrics"`
	RecordedAt  time.Time                `json:"recordedAt"`
}

type ImpactResult struct {
	ImpactID        ID                    `json:"impactId"`
	Source          string                `json:"source"`
	Magnitude       ImpactMagnitude       `json:"magnitude"`
	AggregatedLevel Level                 `json:"aggregatedLevel"`
	Consequences    []string              `json:"consequences"`
	Plan            *CrisisMitigationPlan `json:"plan,omitempty"`
}

type PlanState string

const (
	PlanDraft      PlanState = "draft"
	PlanInProgress PlanState = "in_progress"
	PlanCompleted  PlanState = "completed"
	PlanCancelled  PlanState = "cancelled"
)

func (s PlanState) Terminal() bool {
	return s == PlanCompleted || s == PlanCancelled
}

type ActionState string

const (
	ActionPending   ActionState = "pending"
	ActionScheduled ActionState = "scheduled"
	ActionExecuting ActionState = "executing"
	ActionCompleted ActionState = "completed"
	ActionFailed    ActionState = "failed"
)

type MitigationAction struct {
	ActionID      ID          `json:"actionId"`
	Description   string      `json:"description"`
	Owner         string      `json:"owner,omitempty"`
	State         ActionState `json:"state"`
	ScheduledFor  *time.Time  `json:"scheduledFor,omitempty"`
	FailureReason string      `json:"failureReason,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type CrisisMitigationPlan struct {
	PlanID         ID                 `json:"planId"`
	Source         string             `json:"source"`
	Level          Level              `json:"level"`
	State          PlanState          `json:"state"`
	Actions        []MitigationAction `json:"actions"`
	NeedsAttention bool               `json:"needsAttention"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	Version        int64              `json:"version"`
}

func (p *CrisisMitigationPlan) Action(id ID) (*MitigationAction, bool) {
	for i := range p.Actions {
		if p.Actions[i].ActionID == id {
			return &p.Actions[i], true
		}
	}
	return nil, false
}

// RefreshAttention recomputes NeedsAttention from the failed actions.
func (p *CrisisMitigationPlan) RefreshAttention() {
	p.NeedsAttention = false
	for _, a := range p.Actions {
		if a.State == ActionFailed {
			p.NeedsAttention = true
			return
		}
	}
}

type PlanTransition struct {
	PlanID ID        `json:"planId"`
	Source string    `json:"source"`
	From   PlanState `json:"from"`
	To     PlanState `json:"to"`
}

type ActionFailure struct {
	PlanID ID               `json:"planId"`
	Source string           `json:"source"`
	Action MitigationAction `json:"action"`
}
