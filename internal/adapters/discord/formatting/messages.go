package formatting

import (
	"fmt"
	"strings"

	"world-state-engine/internal/core/domain"
)

const DcLongTimeFormat = "2006-01-02 15:04 MST"

const (
	MsgAdminRequired      = "You need Administrator permissions to use this command."
	MsgReasonRequired     = "Reason is required."
	MsgCommandIDRequired  = "Command id is required."
	MsgCharacterRequired  = "Character id and skill id are required."
	MsgRegionRequired     = "Region id is required."
	MsgInvalidID          = "That is not a valid id."
	MsgNoOpenMaintenance  = "No maintenance commands are open."
	MsgCommandUnavailable = "That operation is not available right now."
)

func MsgPopulationAlert(a domain.PopulationAlert) string {
	return fmt.Sprintf(":warning: **%s** %s/%s: %s", a.Kind, a.CityID, a.DistrictID, a.Message)
}

func MsgPlanTransition(t domain.PlanTransition) string {
	return fmt.Sprintf(":rotating_light: Crisis plan for **%s** moved %s → %s (`%s`)", t.Source, orNew(string(t.From)), t.To, t.PlanID)
}

func orNew(s string) string {
	if s == "" {
		return "new"
	}
	return s
}

func MsgActionFailed(f domain.ActionFailure) string {
	return fmt.Sprintf(":x: Mitigation action `%s` for **%s** failed: %s", f.Action.ActionID, f.Source, f.Action.FailureReason)
}

func MsgImpact(r domain.ImpactResult) string {
	return fmt.Sprintf(":ocean: Impact from **%s** at %s level (composite %s)", r.Source, r.AggregatedLevel, r.Magnitude.Composite.StringFixed(2))
}

func MsgControlShift(e domain.ControlShiftEvent) string {
	switch e.State {
	case domain.ShiftScheduled:
		return fmt.Sprintf(":crossed_swords: Region `%s` will pass from **%s** to **%s** at %s", e.RegionID, e.PreviousOwner, e.NewOwner, e.EffectiveAt.Format(DcLongTimeFormat))
	default:
		return fmt.Sprintf(":crossed_swords: Region `%s` passed from **%s** to **%s** (score %s)", e.RegionID, e.PreviousOwner, e.NewOwner, e.ResultingScore.StringFixed(2))
	}
}

func MsgMaintenance(c domain.MaintenanceCommand) string {
	scope := scopeList(c.Scope)
	switch c.Status {
	case domain.MaintenanceAccepted:
		return fmt.Sprintf(":calendar: Maintenance `%s` on %s scheduled for %s: %s", c.CommandID, scope, c.StartAt.Format(DcLongTimeFormat), c.Reason)
	case domain.MaintenanceInProgress:
		msg := fmt.Sprintf(":construction: Maintenance `%s` started on %s: %s", c.CommandID, scope, c.Reason)
		if c.ExpectedResumeAt != nil {
			msg += fmt.Sprintf(" (expected back %s)", c.ExpectedResumeAt.Format(DcLongTimeFormat))
		}
		return msg
	case domain.MaintenanceRejected:
		return fmt.Sprintf(":no_entry: Maintenance request on %s rejected: %s", scope, c.RejectionReason)
	default:
		return fmt.Sprintf(":white_check_mark: Maintenance `%s` on %s completed", c.CommandID, scope)
	}
}

func MsgMaintenanceList(cmds []domain.MaintenanceCommand) string {
	var b strings.Builder
	b.WriteString("Open maintenance commands:\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "- `%s` %s on %s: %s\n", c.CommandID, c.Status, scopeList(c.Scope), c.Reason)
	}
	return b.String()
}

func MsgFatigueReset(ack domain.FatigueResetAck) string {
	return fmt.Sprintf("Fatigue for `%s` / %s reset at %s.", ack.CharacterID, ack.SkillID, ack.ResetAt.Format(DcLongTimeFormat))
}

func MsgRegionStatus(r domain.RegionControl) string {
	msg := fmt.Sprintf("Region `%s` is held by **%s** (score %s, version %d)", r.RegionID, r.CurrentOwner, r.ControlScore.StringFixed(2), r.Version)
	if r.LastShiftAt != nil {
		msg += fmt.Sprintf(", last shift %s", r.LastShiftAt.Format(DcLongTimeFormat))
	}
	if r.Pending != nil {
		msg += fmt.Sprintf(". Pending shift to **%s** at %s", r.Pending.ClaimantFaction, r.Pending.ScheduledAt.Format(DcLongTimeFormat))
	}
	return msg + "."
}

func MsgError(err error) string {
	code := domain.CodeOf(err)
	if code == "" {
		return MsgCommandUnavailable
	}
	return fmt.Sprintf("`%s`: %s", code, err.Error())
}

func scopeList(s domain.Scope) string {
	if len(s) == len(domain.Engines) {
		return "all engines"
	}
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}
