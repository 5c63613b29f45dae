package progression

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"
)

// ResetFatigue zeroes the fatigue score of one skill. Repeating it is harmless.
func (l *Ledger) ResetFatigue(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error) {
	var errs []error
	if req.CharacterID == domain.NilID {
		errs = append(errs, fmt.Errorf("characterId is required"))
	}
	if strings.TrimSpace(req.SkillID) == "" {
		errs = append(errs, fmt.Errorf("skillId is required"))
	}
	if strings.TrimSpace(req.RequestedBy) == "" {
		errs = append(errs, fmt.Errorf("requestedBy is required"))
	}
	if len(errs) > 0 {
		return nil, domain.Invalid(errs...)
	}

	if err := l.gate.Check(ctx, domain.EngineProgression); err != nil {
		return nil, err
	}

	if _, err := l.catalog.GetSkill(ctx, req.SkillID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMetadata(domain.CodeUnknownSkill, "unknown skill", map[string]string{"skill_id": req.SkillID})
		}
		return nil, fmt.Errorf("lookup skill %s: %w", req.SkillID, err)
	}

	now := l.clock.Now()
	err := l.store.WithCharacter(ctx, req.CharacterID, func(tx ports.ProgressTx) error {
		return tx.ResetFatigue(ctx, req.CharacterID, req.SkillID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("reset fatigue: %w", err)
	}

	event := l.emit(ctx, domain.EventFatigueReset, req.CharacterID.String(), "", req)
	metrics.FatigueResets.Inc()

	return &domain.FatigueResetAck{
		CharacterID: req.CharacterID,
		SkillID:     req.SkillID,
		ResetAt:     now,
		AuditID:     event.AuditID,
	}, nil
}
