package crisis

import (
	"context"
	"errors"
	"testing"
	"time"

	"world-state-engine/internal/core/domain"
)

func openCrisis(t *testing.T, c *Coordinator) *domain.CrisisMitigationPlan {
	t.Helper()
	result, err := c.RegisterWorldImpact(context.Background(), impact("plague", 0.9, 0.4, 0.2, 0.1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Plan == nil {
		t.Fatal("expected plan")
	}
	return result.Plan
}

func TestCoordinator_PlanLifecycle(t *testing.T) {
	ctx := context.Background()
	c, sink, _ := newTestCoordinator(nil)
	plan := openCrisis(t, c)
	a1, a2 := plan.Actions[0].ActionID, plan.Actions[1].ActionID

	step := func(action domain.ID, op ActionOp, update ActionUpdate) *domain.CrisisMitigationPlan {
		t.Helper()
		p, err := c.TransitionAction(ctx, plan.PlanID, action, op, update)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", op, err)
		}
		return p
	}

	at := t0.Add(time.Hour)
	p := step(a1, OpSchedule, ActionUpdate{ScheduledFor: &at, Owner: "ops"})
	if p.State != domain.PlanInProgress {
		t.Fatalf("expected in_progress after first schedule, got %s", p.State)
	}
	if a, _ := p.Action(a1); a.Owner != "ops" || a.ScheduledFor == nil {
		t.Errorf("expected owner and schedule recorded, got %+v", a)
	}

	step(a1, OpStart, ActionUpdate{})
	p = step(a1, OpFail, ActionUpdate{Reason: "no volunteers"})
	if !p.NeedsAttention {
		t.Error("expected plan to need attention after a failure")
	}
	if len(sink.ofKind(domain.EventActionFailed)) != 1 {
		t.Error("expected action failed event")
	}

	p = step(a1, OpReassign, ActionUpdate{Owner: "guard"})
	if p.NeedsAttention {
		t.Error("expected attention cleared after reassign")
	}
	if a, _ := p.Action(a1); a.State != domain.ActionPending || a.FailureReason != "" || a.Owner != "guard" {
		t.Errorf("unexpected reassigned action: %+v", a)
	}

	for _, id := range []domain.ID{a1, a2} {
		step(id, OpSchedule, ActionUpdate{})
		step(id, OpStart, ActionUpdate{})
	}
	p = step(a1, OpComplete, ActionUpdate{})
	if p.State != domain.PlanInProgress {
		t.Errorf("expected plan still in progress, got %s", p.State)
	}
	p = step(a2, OpComplete, ActionUpdate{})
	if p.State != domain.PlanCompleted {
		t.Errorf("expected completed plan, got %s", p.State)
	}

	_, err := c.TransitionAction(ctx, plan.PlanID, a1, OpReassign, ActionUpdate{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected invalid transition on closed plan, got %v", err)
	}

	stored, err := c.GetPlan(ctx, plan.PlanID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.State != domain.PlanCompleted {
		t.Errorf("expected stored plan completed, got %s", stored.State)
	}
}

func TestCoordinator_TransitionAction_Errors(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(nil)
	plan := openCrisis(t, c)
	action := plan.Actions[0].ActionID

	tests := []struct {
		name   string
		planID domain.ID
		action domain.ID
		op     ActionOp
		update ActionUpdate
		want   error
	}{
		{"start before schedule", plan.PlanID, action, OpStart, ActionUpdate{}, domain.ErrInvalidTransition},
		{"complete pending", plan.PlanID, action, OpComplete, ActionUpdate{}, domain.ErrInvalidTransition},
		{"reassign pending", plan.PlanID, action, OpReassign, ActionUpdate{}, domain.ErrInvalidTransition},
		{"fail without reason", plan.PlanID, action, OpFail, ActionUpdate{}, domain.ErrInvalidRequest},
		{"unknown action", plan.PlanID, domain.NewID(), OpSchedule, ActionUpdate{}, domain.ErrActionNotFound},
		{"unknown plan", domain.NewID(), action, OpSchedule, ActionUpdate{}, domain.ErrPlanNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.TransitionAction(ctx, tt.planID, tt.action, tt.op, tt.update)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCoordinator_CancelPlan(t *testing.T) {
	ctx := context.Background()
	c, sink, _ := newTestCoordinator(nil)
	plan := openCrisis(t, c)

	if _, err := c.CancelPlan(ctx, plan.PlanID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected draft plan cancel to be refused, got %v", err)
	}

	p, err := c.AddAction(ctx, plan.PlanID, "Evacuate district", "militia")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Actions) != 3 {
		t.Fatalf("expected three actions, got %d", len(p.Actions))
	}
	if _, err := c.TransitionAction(ctx, plan.PlanID, p.Actions[2].ActionID, OpSchedule, ActionUpdate{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err = c.CancelPlan(ctx, plan.PlanID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State != domain.PlanCancelled {
		t.Errorf("expected cancelled, got %s", p.State)
	}
	transitions := sink.ofKind(domain.EventPlanTransition)
	last := transitions[len(transitions)-1].Payload.(domain.PlanTransition)
	if last.From != domain.PlanInProgress || last.To != domain.PlanCancelled {
		t.Errorf("unexpected last transition: %+v", last)
	}

	if _, err := c.AddAction(ctx, plan.PlanID, "Too late", ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected closed plan to refuse actions, got %v", err)
	}

	next, err := c.RegisterWorldImpact(ctx, impact("plague", 0.9, 0.1, 0.1, 0.1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Plan == nil || next.Plan.PlanID == plan.PlanID {
		t.Error("expected a new plan once the previous one is closed")
	}
}
