package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const MaxBatchEntries = 50

type SkillProgress struct {
	CharacterID        ID              `json:"characterId"`
	SkillID            string          `json:"skillId"`
	XPTotal            decimal.Decimal `json:"xpTotal"`
	DayTotal           decimal.Decimal `json:"dayTotal"`
	FatigueScore       decimal.Decimal `json:"fatigueScore"`
	LastActionAt       time.Time       `json:"lastActionAt"`
	Day                string          `json:"day"`
	SoftCapNotifiedDay string          `json:"-"`
}

type XPEntry struct {
	EntryID            string          `json:"entryId,omitempty"`
	SkillID            string          `json:"skillId"`
	XPGained           decimal.Decimal `json:"xpGained"`
	ActivityMultiplier decimal.Decimal `json:"activityMultiplier"`
	FatigueScore       decimal.Decimal `json:"fatigueScore"`
	OccurredAt         *time.Time      `json:"occurredAt,omitempty"`
}

type XPBatch struct {
	CharacterID ID        `json:"characterId"`
	TraceID     string    `json:"traceId,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	Entries     []XPEntry `json:"entries"`
}

type WarningCode string

const (
	WarningUnknownSkill   WarningCode = "UNKNOWN_SKILL"
	WarningDuplicateEntry WarningCode = "DUPLICATE_ENTRY"
	WarningStaleDay       WarningCode = "STALE_DAY"
	WarningSoftCapReached WarningCode = "SOFT_CAP_REACHED"
	WarningDiminished     WarningCode = "DIMINISHED_RETURNS"
	WarningDayCeiling     WarningCode = "DAY_CEILING_REACHED"
	WarningZeroMultiplier WarningCode = "ZERO_MULTIPLIER"
)

type BatchWarning struct {
	EntryIndex int         `json:"entryIndex"`
	SkillID    string      `json:"skillId"`
	Code       WarningCode `json:"code"`
	Message    string      `json:"message"`
}

type SoftCapEvent struct {
	CharacterID     ID              `json:"characterId"`
	SkillID         string          `json:"skillId"`
	Day             string          `json:"day"`
	DayTotal        decimal.Decimal `json:"dayTotal"`
	SoftCap         decimal.Decimal `json:"softCap"`
	FatigueModifier decimal.Decimal `json:"fatigueModifier"`
	Recommendations []string        `json:"recommendations"`
}

type BatchResult struct {
	CharacterID      ID              `json:"characterId"`
	TraceID          string          `json:"traceId,omitempty"`
	EntriesProcessed int             `json:"entriesProcessed"`
	Warnings         []BatchWarning  `json:"warnings"`
	UpdatedSkills    []SkillProgress `json:"updatedSkills"`
	SoftCapEvents    []SoftCapEvent  `json:"softCapEvents"`
}

type FatigueReset struct {
	CharacterID  ID     `json:"characterId"`
	SkillID      string `json:"skillId"`
	ConsumableID string `json:"consumableId,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestedBy  string `json:"requestedBy"`
	Notes        string `json:"notes,omitempty"`
}

type FatigueResetAck struct {
	CharacterID ID        `json:"characterId"`
	SkillID     string    `json:"skillId"`
	ResetAt     time.Time `json:"resetAt"`
	AuditID     ID        `json:"auditId"`
}
