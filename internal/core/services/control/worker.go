package control

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"world-state-engine/internal/core/domain"
)

// Start promotes due scheduled shifts every interval until ctx is done.
func (r *Resolver) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Control activation worker started", "interval", interval)

	r.runActivation(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runActivation(ctx)
		}
	}
}

func (r *Resolver) runActivation(ctx context.Context) {
	n, err := r.ActivateDueShifts(ctx, r.clock.Now())
	if err != nil {
		slog.Error("Failed to activate scheduled shifts", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Activated scheduled shifts", "count", n)
	}
}

// ActivateDueShifts applies every pending shift scheduled at or before now.
// A region that changed in the meantime is skipped and retried on the next run.
func (r *Resolver) ActivateDueShifts(ctx context.Context, now time.Time) (int, error) {
	if err := r.gate.Check(ctx, domain.EngineControl); err != nil {
		return 0, nil
	}

	regions, err := r.store.ListRegionsWithDueShifts(ctx, now)
	if err != nil {
		return 0, err
	}

	activated := 0
	for _, region := range regions {
		pending := region.Pending
		if pending == nil || pending.ScheduledAt.After(now) {
			continue
		}

		event := domain.ControlShiftEvent{
			EventID:        domain.NewID(),
			RegionID:       region.RegionID,
			AuditID:        domain.NewID(),
			PreviousOwner:  region.CurrentOwner,
			NewOwner:       pending.ClaimantFaction,
			PreviousScore:  region.ControlScore,
			ResultingScore: pending.ResultingScore,
			EvidenceScore:  pending.ResultingScore,
			State:          domain.ShiftActivated,
			ApprovedBy:     pending.ApprovedBy,
			EffectiveAt:    pending.ScheduledAt,
			RecordedAt:     now,
		}

		next := region
		next.CurrentOwner = pending.ClaimantFaction
		next.ControlScore = pending.ResultingScore
		effective := pending.ScheduledAt
		next.LastShiftAt = &effective
		next.Pending = nil
		next.Version = region.Version + 1

		if err := r.store.CompareAndSwapRegion(ctx, next, region.Version, event); err != nil {
			if errors.Is(err, domain.ErrControlConflict) {
				slog.Warn("Scheduled shift lost a race, will retry", "region_id", region.RegionID)
				continue
			}
			slog.Error("Failed to activate scheduled shift", "region_id", region.RegionID, "error", err)
			continue
		}

		r.emit(ctx, domain.EventControlShiftActivated, event)
		activated++
	}

	return activated, nil
}
