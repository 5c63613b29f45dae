package crisis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/core/domain"
)

// ActionOp names an operator step on a mitigation action.
type ActionOp string

const (
	OpSchedule ActionOp = "schedule"
	OpStart    ActionOp = "start"
	OpComplete ActionOp = "complete"
	OpFail     ActionOp = "fail"
	OpReassign ActionOp = "reassign"
)

func ParseActionOp(s string) (ActionOp, bool) {
	switch op := ActionOp(strings.ToLower(strings.TrimSpace(s))); op {
	case OpSchedule, OpStart, OpComplete, OpFail, OpReassign:
		return op, true
	}
	return "", false
}

// actionTarget returns the state op moves an action to from the given state.
func actionTarget(from domain.ActionState, op ActionOp) (domain.ActionState, bool) {
	switch op {
	case OpSchedule:
		return domain.ActionScheduled, from == domain.ActionPending
	case OpStart:
		return domain.ActionExecuting, from == domain.ActionScheduled
	case OpComplete:
		return domain.ActionCompleted, from == domain.ActionExecuting
	case OpFail:
		return domain.ActionFailed, from == domain.ActionExecuting
	case OpReassign:
		return domain.ActionPending, from == domain.ActionFailed
	}
	return from, false
}

// isPlanTransitionAllowed enforces the plan lifecycle.
func isPlanTransitionAllowed(from, to domain.PlanState) bool {
	switch from {
	case domain.PlanDraft:
		return to == domain.PlanInProgress
	case domain.PlanInProgress:
		return to == domain.PlanCompleted || to == domain.PlanCancelled
	default:
		return false
	}
}

type ActionUpdate struct {
	Owner        string     `json:"owner,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

func (c *Coordinator) GetPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error) {
	return c.store.GetPlan(ctx, planID)
}

// AddAction appends a pending action to an open plan.
func (c *Coordinator) AddAction(ctx context.Context, planID domain.ID, description, owner string) (*domain.CrisisMitigationPlan, error) {
	if strings.TrimSpace(description) == "" {
		return nil, domain.Invalid(fmt.Errorf("description is required"))
	}
	return c.mutate(ctx, planID, func(plan *domain.CrisisMitigationPlan, now time.Time) error {
		if plan.State.Terminal() {
			return domain.WithMetadata(domain.CodeInvalidTransition, "plan is closed", map[string]string{
				"plan_id": plan.PlanID.String(),
				"state":   string(plan.State),
			})
		}
		plan.Actions = append(plan.Actions, domain.MitigationAction{
			ActionID:    domain.NewID(),
			Description: strings.TrimSpace(description),
			Owner:       owner,
			State:       domain.ActionPending,
			UpdatedAt:   now,
		})
		return nil
	})
}

// TransitionAction applies op to one action and moves the plan along with it:
// the first scheduled action starts the plan, the last completed one finishes it.
func (c *Coordinator) TransitionAction(ctx context.Context, planID, actionID domain.ID, op ActionOp, update ActionUpdate) (*domain.CrisisMitigationPlan, error) {
	if op == OpFail && strings.TrimSpace(update.Reason) == "" {
		return nil, domain.Invalid(fmt.Errorf("reason is required when failing an action"))
	}

	var failed *domain.MitigationAction
	plan, err := c.mutate(ctx, planID, func(plan *domain.CrisisMitigationPlan, now time.Time) error {
		if plan.State.Terminal() {
			return domain.WithMetadata(domain.CodeInvalidTransition, "plan is closed", map[string]string{
				"plan_id": plan.PlanID.String(),
				"state":   string(plan.State),
			})
		}
		action, ok := plan.Action(actionID)
		if !ok {
			return domain.WithMetadata(domain.CodeActionNotFound, "mitigation action not found", map[string]string{
				"plan_id":   planID.String(),
				"action_id": actionID.String(),
			})
		}
		to, ok := actionTarget(action.State, op)
		if !ok {
			return domain.WithMetadata(domain.CodeInvalidTransition, fmt.Sprintf("cannot %s an action that is %s", op, action.State), map[string]string{
				"action_id": actionID.String(),
				"from":      string(action.State),
				"op":        string(op),
			})
		}

		action.State = to
		action.UpdatedAt = now
		switch op {
		case OpSchedule:
			if update.ScheduledFor != nil {
				at := update.ScheduledFor.UTC()
				action.ScheduledFor = &at
			}
			if update.Owner != "" {
				action.Owner = update.Owner
			}
			advancePlan(plan, domain.PlanInProgress)
		case OpFail:
			action.FailureReason = update.Reason
			copied := *action
			failed = &copied
		case OpReassign:
			action.FailureReason = ""
			action.ScheduledFor = nil
			if update.Owner != "" {
				action.Owner = update.Owner
			}
		case OpComplete:
			if allCompleted(plan.Actions) {
				advancePlan(plan, domain.PlanCompleted)
			}
		}
		plan.RefreshAttention()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if failed != nil {
		slog.Warn("Mitigation action failed", "plan_id", plan.PlanID, "action_id", failed.ActionID, "reason", failed.FailureReason)
		c.emit(ctx, domain.EventActionFailed, plan.Source, domain.NewID(), domain.ActionFailure{
			PlanID: plan.PlanID,
			Source: plan.Source,
			Action: *failed,
		})
	}
	return plan, nil
}

// CancelPlan stops an in-progress plan.
func (c *Coordinator) CancelPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error) {
	return c.mutate(ctx, planID, func(plan *domain.CrisisMitigationPlan, now time.Time) error {
		if !advancePlan(plan, domain.PlanCancelled) {
			return domain.WithMetadata(domain.CodeInvalidTransition, fmt.Sprintf("cannot cancel a %s plan", plan.State), map[string]string{
				"plan_id": plan.PlanID.String(),
				"state":   string(plan.State),
			})
		}
		return nil
	})
}

func advancePlan(plan *domain.CrisisMitigationPlan, to domain.PlanState) bool {
	if !isPlanTransitionAllowed(plan.State, to) {
		return false
	}
	plan.State = to
	return true
}

func (c *Coordinator) mutate(ctx context.Context, planID domain.ID, fn func(plan *domain.CrisisMitigationPlan, now time.Time) error) (*domain.CrisisMitigationPlan, error) {
	if err := c.gate.Check(ctx, domain.EngineImpact); err != nil {
		return nil, err
	}

	plan, err := c.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	from := plan.State
	now := c.clock.Now()

	if err := fn(plan, now); err != nil {
		return nil, err
	}
	plan.UpdatedAt = now
	plan.Version++

	if err := c.store.UpdatePlan(ctx, *plan); err != nil {
		return nil, err
	}

	if plan.State != from {
		metrics.PlanTransitions.WithLabelValues(string(plan.State)).Inc()
		c.emit(ctx, domain.EventPlanTransition, plan.Source, domain.NewID(), domain.PlanTransition{
			PlanID: plan.PlanID, Source: plan.Source, From: from, To: plan.State,
		})
		slog.Info("Crisis plan transitioned", "plan_id", plan.PlanID, "from", from, "to", plan.State)
	}
	return plan, nil
}

func allCompleted(actions []domain.MitigationAction) bool {
	if len(actions) == 0 {
		return false
	}
	for _, a := range actions {
		if a.State != domain.ActionCompleted {
			return false
		}
	}
	return true
}
