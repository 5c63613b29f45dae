package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SkillDefinition is read-only reference data from the skill catalog.
type SkillDefinition struct {
	SkillID string          `json:"skillId" yaml:"skill_id"`
	Name    string          `json:"name" yaml:"name"`
	SoftCap decimal.Decimal `json:"softCap" yaml:"-"`
}

type ZoneDefinition struct {
	ZoneID    string `json:"zoneId"`
	RegionID  ID     `json:"regionId"`
	MaxRating int    `json:"maxRating"`
}

type TemplateDefinition struct {
	TemplateCode    string   `json:"templateCode"`
	AllowedFactions []string `json:"allowedFactions"`
	Rating          int      `json:"rating"`
	Banned          bool     `json:"banned"`
	MinBudget       int64    `json:"minBudget"`
	MaxBudget       int64    `json:"maxBudget"`
	MaxObjectives   int      `json:"maxObjectives"`
}

type SanctionSeverity string

const (
	SanctionBlock SanctionSeverity = "block"
	SanctionWarn  SanctionSeverity = "warn"
)

func (s SanctionSeverity) Valid() bool {
	switch s {
	case SanctionBlock, SanctionWarn:
		return true
	}
	return false
}

// Sanction restricts a submitter, a zone, or both. An empty field matches any value.
type Sanction struct {
	SanctionID  ID               `json:"sanctionId"`
	SubmitterID string           `json:"submitterId,omitempty"`
	ZoneID      string           `json:"zoneId,omitempty"`
	Severity    SanctionSeverity `json:"severity"`
	Reason      string           `json:"reason"`
	StartsAt    time.Time        `json:"startsAt"`
	EndsAt      *time.Time       `json:"endsAt,omitempty"`
}

func (s Sanction) ActiveAt(t time.Time) bool {
	if t.Before(s.StartsAt) {
		return false
	}
	return s.EndsAt == nil || t.Before(*s.EndsAt)
}

func (s Sanction) Matches(submitterID, zoneID string) bool {
	if s.SubmitterID != "" && s.SubmitterID != submitterID {
		return false
	}
	if s.ZoneID != "" && s.ZoneID != zoneID {
		return false
	}
	return s.SubmitterID != "" || s.ZoneID != ""
}
