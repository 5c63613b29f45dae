package population

import (
	"fmt"
	"sort"
	"time"

	"world-state-engine/internal/core/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Diff compares two snapshots of one city. Events are not consulted here.
func Diff(baseline, current domain.PopulationSnapshot, alertRatio decimal.Decimal) domain.PopulationDiff {
	ids := make(map[string]struct{}, len(baseline.Districts)+len(current.Districts))
	for id := range baseline.Districts {
		ids[id] = struct{}{}
	}
	for id := range current.Districts {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	diff := domain.PopulationDiff{
		CityID:          current.CityID,
		BaselineTs:      baseline.Timestamp,
		CurrentTs:       current.Timestamp,
		DistrictChanges: make([]domain.DistrictChange, 0, len(sorted)),
		Alerts:          []domain.PopulationAlert{},
		EventImpacts:    []domain.EventImpact{},
	}

	for _, id := range sorted {
		change := compareDistrict(id, baseline.Districts, current.Districts)
		diff.NPCDelta += change.NPCDelta
		diff.CapacityDelta += change.CapacityDelta
		diff.DistrictChanges = append(diff.DistrictChanges, change)
		diff.Alerts = append(diff.Alerts, districtAlerts(current.CityID, change, alertRatio)...)
	}

	return diff
}

func compareDistrict(id string, before, after map[string]domain.DistrictState) domain.DistrictChange {
	change := domain.DistrictChange{DistrictID: id}

	var oldNPC, oldCap, newNPC, newCap int
	if old, ok := before[id]; ok {
		change.Old = &old
		oldNPC, oldCap = old.NPCCount, old.Capacity
	}
	if cur, ok := after[id]; ok {
		change.New = &cur
		newNPC, newCap = cur.NPCCount, cur.Capacity
	}

	change.NPCDelta = newNPC - oldNPC
	change.CapacityDelta = newCap - oldCap
	change.Created = change.Old == nil
	change.Removed = change.New == nil

	if change.Old != nil && change.New != nil {
		oldFaction, oldOK := change.Old.ControllingFaction.Get()
		newFaction, newOK := change.New.ControllingFaction.Get()
		// Casers are stateful, so each comparison gets its own.
		fold := cases.Fold()
		change.FactionChanged = oldOK && newOK && fold.String(oldFaction) != fold.String(newFaction)
	}

	return change
}

func districtAlerts(cityID string, change domain.DistrictChange, alertRatio decimal.Decimal) []domain.PopulationAlert {
	var alerts []domain.PopulationAlert
	if change.Old == nil {
		return alerts
	}
	old := change.Old

	// A removed district counts as zero NPCs against its old capacity.
	if old.Capacity > 0 {
		delta := change.NPCDelta
		if delta < 0 {
			delta = -delta
		}
		ratio := decimal.NewFromInt(int64(delta)).Div(decimal.NewFromInt(int64(old.Capacity)))
		if ratio.GreaterThan(alertRatio) {
			alerts = append(alerts, domain.PopulationAlert{
				CityID:     cityID,
				DistrictID: change.DistrictID,
				Kind:       domain.AlertRatioExceeded,
				Ratio:      ratio.Round(4),
				Message:    fmt.Sprintf("population changed by %d against capacity %d", change.NPCDelta, old.Capacity),
			})
		}
	}

	cur := change.New
	if cur == nil {
		return alerts
	}

	if cur.Capacity < old.Capacity && cur.NPCCount >= old.Capacity {
		alerts = append(alerts, domain.PopulationAlert{
			CityID:     cityID,
			DistrictID: change.DistrictID,
			Kind:       domain.AlertOvercrowdingRisk,
			Message:    fmt.Sprintf("capacity shrank to %d while %d NPCs remain", cur.Capacity, cur.NPCCount),
		})
	}

	if change.FactionChanged {
		oldFaction, _ := old.ControllingFaction.Get()
		newFaction, _ := cur.ControllingFaction.Get()
		alerts = append(alerts, domain.PopulationAlert{
			CityID:     cityID,
			DistrictID: change.DistrictID,
			Kind:       domain.AlertFactionChanged,
			Message:    fmt.Sprintf("control moved from %s to %s", oldFaction, newFaction),
		})
	}

	return alerts
}

func eventImpacts(events []domain.WorldEvent, from, to time.Time) []domain.EventImpact {
	impacts := make([]domain.EventImpact, 0, len(events))
	for _, e := range events {
		if !e.Overlaps(from, to) {
			continue
		}
		impacts = append(impacts, domain.EventImpact{
			EventID:         e.EventID,
			Category:        e.Category,
			Title:           e.Title,
			StartsAt:        e.StartsAt,
			DurationMinutes: e.DurationMinutes,
		})
	}
	sort.SliceStable(impacts, func(i, j int) bool { return impacts[i].StartsAt.Before(impacts[j].StartsAt) })
	return impacts
}
