package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/services/crisis"
)

func (a *API) applyXPBatch(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var batch domain.XPBatch
	if err := a.schemas.decode(w, r, "xp_batch", &batch); err != nil {
		writeError(w, r, err)
		return
	}
	batch.CharacterID = characterID

	res, err := a.svc.Progression.ApplyBatch(r.Context(), batch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) resetFatigue(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.FatigueReset
	if err := a.schemas.decode(w, r, "fatigue_reset", &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.CharacterID = characterID
	req.SkillID = r.PathValue("skillId")

	ack, err := a.svc.Progression.ResetFatigue(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (a *API) recordSnapshot(w http.ResponseWriter, r *http.Request) {
	var snapshot domain.PopulationSnapshot
	if err := a.schemas.decode(w, r, "snapshot", &snapshot); err != nil {
		writeError(w, r, err)
		return
	}
	snapshot.CityID = r.PathValue("cityId")

	if err := a.svc.Population.RecordSnapshot(r.Context(), snapshot); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func (a *API) populationDiff(w http.ResponseWriter, r *http.Request) {
	baseline, err := queryTime(r, "baseline")
	if err != nil {
		writeError(w, r, err)
		return
	}
	current, err := queryTime(r, "current")
	if err != nil {
		writeError(w, r, err)
		return
	}

	diff, err := a.svc.Population.ComputePopulationDiff(r.Context(), r.PathValue("cityId"), baseline, current)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, domain.Invalid(fmt.Errorf("%s is required", name))
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.Invalid(fmt.Errorf("%s: %w", name, err))
	}
	return t, nil
}

func (a *API) recordWorldEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.WorldEvent
	if err := a.schemas.decode(w, r, "world_event", &event); err != nil {
		writeError(w, r, err)
		return
	}

	stored, err := a.svc.Population.RecordWorldEvent(r.Context(), event)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) getRegion(w http.ResponseWriter, r *http.Request) {
	regionID, err := pathID(r, "regionId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	region, err := a.svc.Control.Region(r.Context(), regionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (a *API) evaluateControlShift(w http.ResponseWriter, r *http.Request) {
	regionID, err := pathID(r, "regionId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var ev domain.ControlEvidence
	if err := a.schemas.decode(w, r, "control_shift", &ev); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := a.svc.Control.EvaluateControlShift(r.Context(), regionID, ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) listControlHistory(w http.ResponseWriter, r *http.Request) {
	regionID, err := pathID(r, "regionId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := a.svc.Control.ListControlHistory(r.Context(), regionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regionId": regionID, "events": history})
}

func (a *API) validateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var order domain.Order
	if err := a.schemas.decode(w, r, "order", &order); err != nil {
		writeError(w, r, err)
		return
	}
	order.OrderID = orderID

	checklist, err := a.svc.Orders.ValidateOrder(r.Context(), order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checklist)
}

func (a *API) registerSanction(w http.ResponseWriter, r *http.Request) {
	var sanction domain.Sanction
	if err := a.schemas.decode(w, r, "sanction", &sanction); err != nil {
		writeError(w, r, err)
		return
	}
	stored, err := a.svc.Orders.RegisterSanction(r.Context(), sanction)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) registerWorldImpact(w http.ResponseWriter, r *http.Request) {
	var req crisis.ImpactRequest
	if err := a.schemas.decode(w, r, "world_impact", &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.svc.Crisis.RegisterWorldImpact(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) getPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := a.svc.Crisis.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) addAction(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Description string `json:"description"`
		Owner       string `json:"owner"`
	}
	if err := a.schemas.decode(w, r, "plan_action", &body); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := a.svc.Crisis.AddAction(r.Context(), planID, body.Description, body.Owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (a *API) transitionAction(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	actionID, err := pathID(r, "actionId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	op, ok := crisis.ParseActionOp(r.PathValue("op"))
	if !ok {
		writeError(w, r, domain.WithMetadata(domain.CodeInvalidRequest, "unknown action operation", map[string]string{"op": r.PathValue("op")}))
		return
	}

	var update crisis.ActionUpdate
	if r.ContentLength != 0 {
		if err := a.schemas.decode(w, r, "action_update", &update); err != nil {
			writeError(w, r, err)
			return
		}
	}

	plan, err := a.svc.Crisis.TransitionAction(r.Context(), planID, actionID, op, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) cancelPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := a.svc.Crisis.CancelPlan(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) issueMaintenance(w http.ResponseWriter, r *http.Request) {
	var req domain.MaintenanceRequest
	if err := a.schemas.decode(w, r, "maintenance", &req); err != nil {
		writeError(w, r, err)
		return
	}
	cmd, err := a.svc.Maintenance.IssueMaintenanceCommand(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if cmd.Status == domain.MaintenanceRejected {
		status = http.StatusConflict
	}
	writeJSON(w, status, cmd)
}

func (a *API) listMaintenance(w http.ResponseWriter, r *http.Request) {
	cmds, err := a.svc.Maintenance.ListOpen(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cmds == nil {
		cmds = []domain.MaintenanceCommand{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": cmds})
}

func (a *API) completeMaintenance(w http.ResponseWriter, r *http.Request) {
	commandID, err := pathID(r, "commandId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cmd, err := a.svc.Maintenance.CompleteMaintenance(r.Context(), commandID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}
