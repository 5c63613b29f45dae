package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingShift is a committed shift waiting for its scheduled activation time.
type PendingShift struct {
	ShiftID         ID              `json:"shiftId"`
	ClaimantFaction string          `json:"claimantFaction"`
	ResultingScore  decimal.Decimal `json:"resultingScore"`
	ScheduledAt     time.Time       `json:"scheduledAt"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	AuditID         ID              `json:"auditId"`
}

type RegionControl struct {
	RegionID     ID              `json:"regionId"`
	CurrentOwner string          `json:"currentOwner"`
	ControlScore decimal.Decimal `json:"controlScore"`
	LastShiftAt  *time.Time      `json:"lastShiftAt,omitempty"`
	Version      int64           `json:"version"`
	Pending      *PendingShift   `json:"pending,omitempty"`
}

type ControlEvidence struct {
	ClaimantFaction string           `json:"claimantFaction"`
	SupplyIndex     decimal.Decimal  `json:"supplyIndex"`
	RaidVictories   int              `json:"raidVictories"`
	ReputationShift decimal.Decimal  `json:"reputationShift"`
	ScheduledAt     *time.Time       `json:"scheduledAt,omitempty"`
	ApprovedBy      string           `json:"approvedBy,omitempty"`
	CapMin          *decimal.Decimal `json:"capMin,omitempty"`
	CapMax          *decimal.Decimal `json:"capMax,omitempty"`
	TimelineEntryID string           `json:"timelineEntryId,omitempty"`
}

type ShiftState string

const (
	ShiftCommitted ShiftState = "committed"
	ShiftScheduled ShiftState = "scheduled"
	ShiftActivated ShiftState = "activated"
)

// ControlShiftEvent is an append-only history record of a region ownership change.
type ControlShiftEvent struct {
	EventID         ID              `json:"eventId"`
	RegionID        ID              `json:"regionId"`
	TimelineEntryID string          `json:"timelineEntryId,omitempty"`
	AuditID         ID              `json:"auditId"`
	PreviousOwner   string          `json:"previousOwner"`
	NewOwner        string          `json:"newOwner"`
	PreviousScore   decimal.Decimal `json:"previousScore"`
	ResultingScore  decimal.Decimal `json:"resultingScore"`
	EvidenceScore   decimal.Decimal `json:"evidenceScore"`
	State           ShiftState      `json:"state"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	EffectiveAt     time.Time       `json:"effectiveAt"`
	RecordedAt      time.Time       `json:"recordedAt"`
}

type ControlShiftResponse struct {
	RegionID      ID                 `json:"regionId"`
	Shifted       bool               `json:"shifted"`
	Reason        string             `json:"reason,omitempty"`
	CurrentOwner  string             `json:"currentOwner"`
	ControlScore  decimal.Decimal    `json:"controlScore"`
	EvidenceScore decimal.Decimal    `json:"evidenceScore"`
	Magnitude     decimal.Decimal    `json:"magnitude"`
	Version       int64              `json:"version"`
	Event         *ControlShiftEvent `json:"event,omitempty"`
}

// NoChange reasons.
const (
	ReasonSameOwner      = "claimant already controls the region"
	ReasonBelowThreshold = "evidence score does not cross the ownership threshold"
)
