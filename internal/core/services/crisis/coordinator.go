package crisis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/config"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"
	"world-state-engine/internal/platform/keyedmutex"

	"github.com/shopspring/decimal"
)

type Store interface {
	ports.TriggerRepository
	ports.PlanRepository
}

type Dependencies struct {
	Policy config.ImpactPolicy
	Store  Store
	Events ports.EventSink
	Gate   ports.Gate
	Clock  ports.Clock
}

type Coordinator struct {
	store  Store
	events ports.EventSink
	gate   ports.Gate
	clock  ports.Clock

	window         time.Duration
	medium         decimal.Decimal
	high           decimal.Decimal
	critical       decimal.Decimal
	crisis         decimal.Decimal
	defaultActions []string

	// sources keeps two triggers for one source from opening two plans.
	sources *keyedmutex.Map[string]
}

func NewCoordinator(deps Dependencies) *Coordinator {
	c := &Coordinator{
		store:          deps.Store,
		events:         deps.Events,
		gate:           deps.Gate,
		clock:          deps.Clock,
		window:         deps.Policy.RollingWindow,
		medium:         decimal.NewFromFloat(deps.Policy.MediumThreshold),
		high:           decimal.NewFromFloat(deps.Policy.HighThreshold),
		critical:       decimal.NewFromFloat(deps.Policy.CriticalThreshold),
		crisis:         decimal.NewFromFloat(deps.Policy.CrisisThreshold),
		defaultActions: deps.Policy.DefaultActions,
		sources:        keyedmutex.New[string](),
	}
	if c.gate == nil {
		c.gate = ports.OpenGate{}
	}
	if c.clock == nil {
		c.clock = ports.SystemClock{}
	}
	return c
}

type ImpactRequest struct {
	Source      string                          `json:"source"`
	Description string                          `json:"description"`
	Metrics     map[domain.Axis]decimal.Decimal `json:"metrics"`
}

// RegisterWorldImpact records a trigger, aggregates the rolling magnitude of its
// source and opens a draft plan when the composite reaches the crisis threshold.
func (c *Coordinator) RegisterWorldImpact(ctx context.Context, req ImpactRequest) (*domain.ImpactResult, error) {
	if err := validateImpact(req); err != nil {
		return nil, err
	}
	if err := c.gate.Check(ctx, domain.EngineImpact); err != nil {
		return nil, err
	}

	source := strings.TrimSpace(req.Source)
	unlock := c.sources.Lock(source)
	defer unlock()

	now := c.clock.Now()
	trigger := domain.Trigger{
		ImpactID:    domain.NewID(),
		Source:      source,
		Description: req.Description,
		Metrics:     req.Metrics,
		RecordedAt:  now,
	}
	if err := c.store.InsertTrigger(ctx, trigger); err != nil {
		return nil, fmt.Errorf("insert trigger: %w", err)
	}

	triggers, err := c.store.ListTriggers(ctx, source, now.Add(-c.window))
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}

	magnitude := Aggregate(triggers)
	result := &domain.ImpactResult{
		ImpactID:        trigger.ImpactID,
		Source:          source,
		Magnitude:       magnitude,
		AggregatedLevel: c.Level(magnitude.Composite),
		Consequences:    c.consequences(magnitude),
	}

	if magnitude.Composite.GreaterThanOrEqual(c.crisis) {
		plan, err := c.openPlan(ctx, source, result.AggregatedLevel, now)
		if err != nil {
			return nil, err
		}
		result.Plan = plan
	}

	metrics.ImpactsRegistered.WithLabelValues(string(result.AggregatedLevel)).Inc()
	c.emit(ctx, domain.EventImpactRegistered, source, trigger.ImpactID, result)

	slog.Info("World impact registered",
		"source", source,
		"impact_id", trigger.ImpactID,
		"level", result.AggregatedLevel,
		"composite", magnitude.Composite.String())
	return result, nil
}

// Aggregate sums triggers per axis, capping each axis at 1. Composite is the max axis.
func Aggregate(triggers []domain.Trigger) domain.ImpactMagnitude {
	one := decimal.NewFromInt(1)
	axes := make(map[domain.Axis]decimal.Decimal)
	for _, t := range triggers {
		for axis, v := range t.Metrics {
			axes[axis] = decimal.Min(one, axes[axis].Add(v))
		}
	}
	composite := decimal.Zero
	for _, v := range axes {
		composite = decimal.Max(composite, v)
	}
	return domain.ImpactMagnitude{Axes: axes, Composite: composite}
}

func (c *Coordinator) Level(composite decimal.Decimal) domain.Level {
	switch {
	case composite.GreaterThanOrEqual(c.critical):
		return domain.LevelCritical
	case composite.GreaterThanOrEqual(c.high):
		return domain.LevelHigh
	case composite.GreaterThanOrEqual(c.medium):
		return domain.LevelMedium
	}
	return domain.LevelLow
}

func (c *Coordinator) consequences(m domain.ImpactMagnitude) []string {
	out := []string{}
	for _, axis := range domain.Axes {
		v, ok := m.Axes[axis]
		if !ok {
			continue
		}
		if level := c.Level(v); level != domain.LevelLow {
			out = append(out, fmt.Sprintf("%s pressure %s (%s)", axis, level, v.StringFixed(2)))
		}
	}
	return out
}

func (c *Coordinator) openPlan(ctx context.Context, source string, level domain.Level, now time.Time) (*domain.CrisisMitigationPlan, error) {
	existing, err := c.store.FindOpenPlan(ctx, source)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrPlanNotFound) {
		return nil, fmt.Errorf("find open plan: %w", err)
	}

	plan := domain.CrisisMitigationPlan{
		PlanID:    domain.NewID(),
		Source:    source,
		Level:     level,
		State:     domain.PlanDraft,
		Actions:   []domain.MitigationAction{},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	for _, description := range c.defaultActions {
		plan.Actions = append(plan.Actions, domain.MitigationAction{
			ActionID:    domain.NewID(),
			Description: description,
			State:       domain.ActionPending,
			UpdatedAt:   now,
		})
	}
	if err := c.store.CreatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	metrics.PlanTransitions.WithLabelValues(string(domain.PlanDraft)).Inc()
	c.emit(ctx, domain.EventPlanTransition, source, domain.NewID(), domain.PlanTransition{
		PlanID: plan.PlanID, Source: source, To: domain.PlanDraft,
	})
	slog.Warn("Crisis plan opened", "source", source, "plan_id", plan.PlanID, "level", level)
	return &plan, nil
}

func validateImpact(req ImpactRequest) error {
	var errs []error
	if strings.TrimSpace(req.Source) == "" {
		errs = append(errs, fmt.Errorf("source is required"))
	}
	if len(req.Metrics) < domain.MinImpactAxes {
		errs = append(errs, fmt.Errorf("at least %d axes are required, got %d", domain.MinImpactAxes, len(req.Metrics)))
	}
	one := decimal.NewFromInt(1)
	for axis, v := range req.Metrics {
		if !axis.Valid() {
			errs = append(errs, fmt.Errorf("unknown axis %q", axis))
			continue
		}
		if v.IsNegative() || v.GreaterThan(one) {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %s", axis, v))
		}
	}
	if len(errs) > 0 {
		return domain.Invalid(errs...)
	}
	return nil
}

func (c *Coordinator) emit(ctx context.Context, kind domain.EventKind, aggregate string, auditID domain.ID, payload any) {
	if c.events == nil {
		return
	}
	event := domain.NewEvent(kind, aggregate, c.clock.Now(), payload)
	event.AuditID = auditID
	if err := c.events.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish event", "kind", kind, "aggregate_id", aggregate, "error", err)
	}
}
