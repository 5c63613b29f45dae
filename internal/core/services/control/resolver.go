package control

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

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
)

var tracer = otel.Tracer("world-state-engine/control")

type Dependencies struct {
	Policy config.ControlPolicy
	Store  ports.RegionRepository
	Events ports.EventSink
	Gate   ports.Gate
	Clock  ports.Clock
}

type Resolver struct {
	store  ports.RegionRepository
	events ports.EventSink
	gate   ports.Gate
	clock  ports.Clock

	supplyWeight     decimal.Decimal
	raidWeight       decimal.Decimal
	reputationWeight decimal.Decimal
	threshold        decimal.Decimal
	approval         decimal.Decimal
	capMin           *decimal.Decimal
	capMax           *decimal.Decimal
}

func NewResolver(deps Dependencies) *Resolver {
	r := &Resolver{
		store:            deps.Store,
		events:           deps.Events,
		gate:             deps.Gate,
		clock:            deps.Clock,
		supplyWeight:     decimal.NewFromFloat(deps.Policy.SupplyWeight),
		raidWeight:       decimal.NewFromFloat(deps.Policy.RaidWeight),
		reputationWeight: decimal.NewFromFloat(deps.Policy.ReputationWeight),
		threshold:        decimal.NewFromFloat(deps.Policy.OwnershipThreshold),
		approval:         decimal.NewFromFloat(deps.Policy.ApprovalThreshold),
		capMin:           floatPtr(deps.Policy.CapMin),
		capMax:           floatPtr(deps.Policy.CapMax),
	}
	if r.gate == nil {
		r.gate = ports.OpenGate{}
	}
	if r.clock == nil {
		r.clock = ports.SystemClock{}
	}
	return r
}

func floatPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

// Score is w1*supply + w2*raids - w3*|min(0, reputation)|.
func (r *Resolver) Score(ev domain.ControlEvidence) decimal.Decimal {
	penalty := decimal.Min(decimal.Zero, ev.ReputationShift).Abs()
	return r.supplyWeight.Mul(ev.SupplyIndex).
		Add(r.raidWeight.Mul(decimal.NewFromInt(int64(ev.RaidVictories)))).
		Sub(r.reputationWeight.Mul(penalty))
}

// clamp applies evidence caps, falling back to policy caps per bound.
func (r *Resolver) clamp(score decimal.Decimal, ev domain.ControlEvidence) decimal.Decimal {
	lo, hi := r.capMin, r.capMax
	if ev.CapMin != nil {
		lo = ev.CapMin
	}
	if ev.CapMax != nil {
		hi = ev.CapMax
	}
	if lo != nil && score.LessThan(*lo) {
		score = *lo
	}
	if hi != nil && score.GreaterThan(*hi) {
		score = *hi
	}
	return score
}

// EvaluateControlShift scores the evidence and, when it crosses the ownership
// threshold, commits the new owner with a compare-and-swap on the region version.
// Losing the race returns CONTROL_CONFLICT; there is no retry.
func (r *Resolver) EvaluateControlShift(ctx context.Context, regionID domain.ID, ev domain.ControlEvidence) (resp *domain.ControlShiftResponse, err error) {
	ctx, span := tracer.Start(ctx, "control.EvaluateControlShift", trace.WithAttributes(
		attribute.String("region.id", regionID.String()),
		attribute.String("claimant", ev.ClaimantFaction),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.ControlShifts.WithLabelValues(resultLabel(err)).Inc()
		}
		span.End()
	}()

	if err := validateEvidence(regionID, ev); err != nil {
		return nil, err
	}
	if err := r.gate.Check(ctx, domain.EngineControl); err != nil {
		return nil, err
	}

	region, err := r.store.GetRegion(ctx, regionID)
	if err != nil {
		return nil, regionErr(err, regionID)
	}

	score := r.Score(ev)
	magnitude := score.Sub(region.ControlScore)
	span.SetAttributes(attribute.String("score", score.String()), attribute.String("magnitude", magnitude.String()))

	resp = &domain.ControlShiftResponse{
		RegionID:      region.RegionID,
		CurrentOwner:  region.CurrentOwner,
		ControlScore:  region.ControlScore,
		EvidenceScore: score,
		Magnitude:     magnitude,
		Version:       region.Version,
	}

	fold := cases.Fold()
	switch {
	case fold.String(strings.TrimSpace(ev.ClaimantFaction)) == fold.String(region.CurrentOwner):
		resp.Reason = domain.ReasonSameOwner
		metrics.ControlShifts.WithLabelValues("no_change").Inc()
		return resp, nil
	case magnitude.LessThan(r.threshold):
		resp.Reason = domain.ReasonBelowThreshold
		metrics.ControlShifts.WithLabelValues("no_change").Inc()
		return resp, nil
	}

	if region.Pending != nil {
		return nil, domain.WithMetadata(domain.CodeControlConflict, "region has a pending scheduled shift", map[string]string{
			"region_id":    regionID.String(),
			"scheduled_at": region.Pending.ScheduledAt.Format(time.RFC3339),
		})
	}
	if magnitude.GreaterThanOrEqual(r.approval) && strings.TrimSpace(ev.ApprovedBy) == "" {
		return nil, domain.WithMetadata(domain.CodeApprovalRequired, "shift magnitude requires approval", map[string]string{
			"region_id": regionID.String(),
			"magnitude": magnitude.String(),
			"threshold": r.approval.String(),
		})
	}

	now := r.clock.Now()
	resulting := r.clamp(score, ev)
	event := domain.ControlShiftEvent{
		EventID:         domain.NewID(),
		RegionID:        region.RegionID,
		TimelineEntryID: ev.TimelineEntryID,
		AuditID:         domain.NewID(),
		PreviousOwner:   region.CurrentOwner,
		NewOwner:        strings.TrimSpace(ev.ClaimantFaction),
		PreviousScore:   region.ControlScore,
		ResultingScore:  resulting,
		EvidenceScore:   score,
		ApprovedBy:      ev.ApprovedBy,
		RecordedAt:      now,
	}

	next := *region
	next.Version = region.Version + 1
	if ev.ScheduledAt != nil && ev.ScheduledAt.After(now) {
		next.Pending = &domain.PendingShift{
			ShiftID:         event.EventID,
			ClaimantFaction: event.NewOwner,
			ResultingScore:  resulting,
			ScheduledAt:     ev.ScheduledAt.UTC(),
			ApprovedBy:      ev.ApprovedBy,
			AuditID:         event.AuditID,
		}
		event.State = domain.ShiftScheduled
		event.EffectiveAt = ev.ScheduledAt.UTC()
	} else {
		next.CurrentOwner = event.NewOwner
		next.ControlScore = resulting
		next.LastShiftAt = &now
		event.State = domain.ShiftCommitted
		event.EffectiveAt = now
	}

	if err := r.store.CompareAndSwapRegion(ctx, next, region.Version, event); err != nil {
		if errors.Is(err, domain.ErrControlConflict) {
			return nil, domain.WithMetadata(domain.CodeControlConflict, "region control changed concurrently", map[string]string{
				"region_id":        regionID.String(),
				"expected_version": fmt.Sprint(region.Version),
			})
		}
		return nil, fmt.Errorf("commit control shift: %w", err)
	}

	r.emit(ctx, domain.EventControlShiftCommitted, event)
	metrics.ControlShifts.WithLabelValues(string(event.State)).Inc()

	resp.Shifted = true
	resp.CurrentOwner = next.CurrentOwner
	resp.ControlScore = next.ControlScore
	resp.Version = next.Version
	resp.Event = &event
	return resp, nil
}

func (r *Resolver) ListControlHistory(ctx context.Context, regionID domain.ID) ([]domain.ControlShiftEvent, error) {
	history, err := r.store.ListControlHistory(ctx, regionID)
	if err != nil {
		return nil, regionErr(err, regionID)
	}
	if history == nil {
		history = []domain.ControlShiftEvent{}
	}
	return history, nil
}

func (r *Resolver) Region(ctx context.Context, regionID domain.ID) (*domain.RegionControl, error) {
	region, err := r.store.GetRegion(ctx, regionID)
	if err != nil {
		return nil, regionErr(err, regionID)
	}
	return region, nil
}

// Seed creates regions that do not exist yet. Existing regions are left untouched.
func (r *Resolver) Seed(ctx context.Context, entries []config.RegionEntry) error {
	for _, entry := range entries {
		id, err := domain.ParseID(entry.RegionID)
		if err != nil {
			return fmt.Errorf("region %q: %w", entry.RegionID, err)
		}
		if _, err := r.store.GetRegion(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrRegionNotFound) {
			return fmt.Errorf("get region %s: %w", id, err)
		}
		if err := r.store.UpsertRegion(ctx, domain.RegionControl{
			RegionID:     id,
			CurrentOwner: entry.Owner,
			ControlScore: decimal.NewFromFloat(entry.ControlScore),
		}); err != nil {
			return fmt.Errorf("seed region %s: %w", id, err)
		}
		slog.Info("Seeded region", "region_id", id, "owner", entry.Owner)
	}
	return nil
}

func resultLabel(err error) string {
	if code := domain.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

func regionErr(err error, regionID domain.ID) error {
	if errors.Is(err, domain.ErrRegionNotFound) {
		return domain.WithMetadata(domain.CodeRegionNotFound, "region not found", map[string]string{"region_id": regionID.String()})
	}
	return fmt.Errorf("get region: %w", err)
}

func validateEvidence(regionID domain.ID, ev domain.ControlEvidence) error {
	var errs []error
	if regionID == domain.NilID {
		errs = append(errs, fmt.Errorf("regionId is required"))
	}
	if strings.TrimSpace(ev.ClaimantFaction) == "" {
		errs = append(errs, fmt.Errorf("claimantFaction is required"))
	}
	if ev.SupplyIndex.IsNegative() {
		errs = append(errs, fmt.Errorf("supplyIndex must not be negative"))
	}
	if ev.RaidVictories < 0 {
		errs = append(errs, fmt.Errorf("raidVictories must not be negative"))
	}
	if ev.CapMin != nil && ev.CapMax != nil && ev.CapMin.GreaterThan(*ev.CapMax) {
		errs = append(errs, fmt.Errorf("capMin must not exceed capMax"))
	}
	if len(errs) > 0 {
		return domain.Invalid(errs...)
	}
	return nil
}

func (r *Resolver) emit(ctx context.Context, kind domain.EventKind, shift domain.ControlShiftEvent) {
	if r.events == nil {
		return
	}
	event := domain.NewEvent(kind, shift.RegionID.String(), r.clock.Now(), shift)
	event.AuditID = shift.AuditID
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event.TraceID = sc.TraceID().String()
	}
	if err := r.events.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish event", "kind", kind, "region_id", shift.RegionID, "error", err)
	}
}
