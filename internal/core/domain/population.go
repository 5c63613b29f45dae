package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DistrictState struct {
	NPCCount           int              `json:"npcCount"`
	Capacity           int              `json:"capacity"`
	ControllingFaction Optional[string] `json:"controllingFaction,omitzero"`
}

type PopulationSnapshot struct {
	CityID    string                   `json:"cityId"`
	Timestamp time.Time                `json:"timestamp"`
	Districts map[string]DistrictState `json:"districts"`
}

type DistrictChange struct {
	DistrictID     string         `json:"districtId"`
	Old            *DistrictState `json:"old,omitempty"`
	New            *DistrictState `json:"new,omitempty"`
	NPCDelta       int            `json:"npcDelta"`
	CapacityDelta  int            `json:"capacityDelta"`
	Created        bool           `json:"created,omitempty"`
	Removed        bool           `json:"removed,omitempty"`
	FactionChanged bool           `json:"factionChanged,omitempty"`
}

type AlertKind string

const (
	AlertRatioExceeded    AlertKind = "RATIO_EXCEEDED"
	AlertOvercrowdingRisk AlertKind = "OVERCROWDING_RISK"
	AlertFactionChanged   AlertKind = "FACTION_CHANGED"
)

type PopulationAlert struct {
	CityID     string          `json:"cityId"`
	DistrictID string          `json:"districtId"`
	Kind       AlertKind       `json:"kind"`
	Ratio      decimal.Decimal `json:"ratio,omitzero"`
	Message    string          `json:"message"`
}

type WorldEventCategory string

const (
	CategoryWorld    WorldEventCategory = "world"
	CategorySocial   WorldEventCategory = "social"
	CategoryEconomic WorldEventCategory = "economic"
	CategoryGameplay WorldEventCategory = "gameplay"
)

func (c WorldEventCategory) Valid() bool {
	switch c {
	case CategoryWorld, CategorySocial, CategoryEconomic, CategoryGameplay:
		return true
	}
	return false
}

type WorldEvent struct {
	EventID         ID                 `json:"eventId"`
	CityID          string             `json:"cityId"`
	Category        WorldEventCategory `json:"category"`
	Title           string             `json:"title"`
	StartsAt        time.Time          `json:"startsAt"`
	DurationMinutes int                `json:"durationMinutes"`
}

func (e WorldEvent) EndsAt() time.Time {
	return e.StartsAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the event window intersects [from, to].
func (e WorldEvent) Overlaps(from, to time.Time) bool {
	return !e.StartsAt.After(to) && !e.EndsAt().Before(from)
}

type EventImpact struct {
	EventID         ID                 `json:"eventId"`
	Category        WorldEventCategory `json:"category"`
	Title           string             `json:"title"`
	StartsAt        time.Time          `json:"startsAt"`
	DurationMinutes int                `json:"durationMinutes"`
}

type PopulationDiff struct {
	CityID          string            `json:"cityId"`
	BaselineTs      time.Time         `json:"baselineTimestamp"`
	CurrentTs       time.Time         `json:"currentTimestamp"`
	NPCDelta        int               `json:"npcDelta"`
	CapacityDelta   int               `json:"capacityDelta"`
	DistrictChanges []DistrictChange  `json:"districtChanges"`
	Alerts          []PopulationAlert `json:"alerts"`
	EventImpacts    []EventImpact     `json:"eventImpacts"`
}
