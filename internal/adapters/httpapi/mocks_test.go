package httpapi

import (
	"context"
	"time"

	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/services/crisis"
)

type mockProgression struct {
	applyFunc func(ctx context.Context, batch domain.XPBatch) (*domain.BatchResult, error)
	resetFunc func(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error)
}

func (m *mockProgression) ApplyBatch(ctx context.Context, batch domain.XPBatch) (*domain.BatchResult, error) {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, batch)
	}
	return &domain.BatchResult{CharacterID: batch.CharacterID, EntriesProcessed: len(batch.Entries)}, nil
}

func (m *mockProgression) ResetFatigue(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error) {
	if m.resetFunc != nil {
		return m.resetFunc(ctx, req)
	}
	return &domain.FatigueResetAck{CharacterID: req.CharacterID, SkillID: req.SkillID}, nil
}

type mockPopulation struct {
	recordFunc func(ctx context.Context, s domain.PopulationSnapshot) error
	diffFunc   func(ctx context.Context, cityID string, b, c time.Time) (*domain.PopulationDiff, error)
}

func (m *mockPopulation) RecordSnapshot(ctx context.Context, s domain.PopulationSnapshot) error {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, s)
	}
	return nil
}

func (m *mockPopulation) RecordWorldEvent(ctx context.Context, e domain.WorldEvent) (*domain.WorldEvent, error) {
	e.EventID = domain.NewID()
	return &e, nil
}

func (m *mockPopulation) ComputePopulationDiff(ctx context.Context, cityID string, b, c time.Time) (*domain.PopulationDiff, error) {
	if m.diffFunc != nil {
		return m.diffFunc(ctx, cityID, b, c)
	}
	return &domain.PopulationDiff{CityID: cityID}, nil
}

type mockControl struct {
	evaluateFunc func(ctx context.Context, id domain.ID, ev domain.ControlEvidence) (*domain.ControlShiftResponse, error)
	historyFunc  func(ctx context.Context, id domain.ID) ([]domain.ControlShiftEvent, error)
}

func (m *mockControl) EvaluateControlShift(ctx context.Context, id domain.ID, ev domain.ControlEvidence) (*domain.ControlShiftResponse, error) {
	if m.evaluateFunc != nil {
		return m.evaluateFunc(ctx, id, ev)
	}
	return &domain.ControlShiftResponse{RegionID: id}, nil
}

func (m *mockControl) ListControlHistory(ctx context.Context, id domain.ID) ([]domain.ControlShiftEvent, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, id)
	}
	return []domain.ControlShiftEvent{}, nil
}

func (m *mockControl) Region(ctx context.Context, id domain.ID) (*domain.RegionControl, error) {
	return nil, domain.ErrRegionNotFound
}

type mockOrders struct {
	validateFunc func(ctx context.Context, o domain.Order) (*domain.ValidationChecklist, error)
}

func (m *mockOrders) ValidateOrder(ctx context.Context, o domain.Order) (*domain.ValidationChecklist, error) {
	if m.validateFunc != nil {
		return m.validateFunc(ctx, o)
	}
	return &domain.ValidationChecklist{OrderID: o.OrderID}, nil
}

func (m *mockOrders) RegisterSanction(ctx context.Context, s domain.Sanction) (*domain.Sanction, error) {
	s.SanctionID = domain.NewID()
	return &s, nil
}

type mockCrisis struct {
	registerFunc   func(ctx context.Context, req crisis.ImpactRequest) (*domain.ImpactResult, error)
	transitionFunc func(ctx context.Context, planID, actionID domain.ID, op crisis.ActionOp, u crisis.ActionUpdate) (*domain.CrisisMitigationPlan, error)
}

func (m *mockCrisis) RegisterWorldImpact(ctx context.Context, req crisis.ImpactRequest) (*domain.ImpactResult, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return &domain.ImpactResult{Source: req.Source}, nil
}

func (m *mockCrisis) GetPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error) {
	return nil, domain.ErrPlanNotFound
}

func (m *mockCrisis) AddAction(ctx context.Context, planID domain.ID, description, owner string) (*domain.CrisisMitigationPlan, error) {
	return &domain.CrisisMitigationPlan{PlanID: planID, Actions: []domain.MitigationAction{{Description: description, Owner: owner}}}, nil
}

func (m *mockCrisis) TransitionAction(ctx context.Context, planID, actionID domain.ID, op crisis.ActionOp, u crisis.ActionUpdate) (*domain.CrisisMitigationPlan, error) {
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, planID, actionID, op, u)
	}
	return &domain.CrisisMitigationPlan{PlanID: planID}, nil
}

func (m *mockCrisis) CancelPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error) {
	return nil, domain.ErrInvalidTransition
}

type mockMaintenance struct {
	issueFunc func(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error)
}

func (m *mockMaintenance) IssueMaintenanceCommand(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error) {
	if m.issueFunc != nil {
		return m.issueFunc(ctx, req)
	}
	return &domain.MaintenanceCommand{CommandID: domain.NewID(), Status: domain.MaintenanceInProgress}, nil
}

func (m *mockMaintenance) CompleteMaintenance(ctx context.Context, id domain.ID) (*domain.MaintenanceCommand, error) {
	return nil, domain.ErrCommandNotFound
}

func (m *mockMaintenance) ListOpen(ctx context.Context) ([]domain.MaintenanceCommand, error) {
	return nil, nil
}
