package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/config"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"

	"github.com/shopspring/decimal"
)

// xpPrecision is the number of decimal places kept for credited XP. Values are
// truncated, never rounded up.
const xpPrecision = 6

type Dependencies struct {
	Policy  config.ProgressionPolicy
	Store   ports.ProgressRepository
	Catalog ports.SkillCatalog
	Events  ports.EventSink
	Gate    ports.Gate
	Clock   ports.Clock
}

type Ledger struct {
	store   ports.ProgressRepository
	catalog ports.SkillCatalog
	events  ports.EventSink
	gate    ports.Gate
	clock   ports.Clock

	decay           Decay
	days            dayClock
	ceilingFactor   decimal.Decimal
	recommendations []string

	entries *entryCache
}

func NewLedger(deps Dependencies) *Ledger {
	loc, err := deps.Policy.Location()
	if err != nil {
		slog.Warn("Unknown ledger time zone, falling back to UTC", "time_zone", deps.Policy.TimeZone, "error", err)
		loc = time.UTC
	}

	clock := deps.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	gate := deps.Gate
	if gate == nil {
		gate = ports.OpenGate{}
	}

	return &Ledger{
		store:           deps.Store,
		catalog:         deps.Catalog,
		events:          deps.Events,
		gate:            gate,
		clock:           clock,
		decay:           NewDecay(deps.Policy),
		days:            dayClock{loc: loc, hour: deps.Policy.DayRolloverHour},
		ceilingFactor:   decimal.NewFromFloat(deps.Policy.CeilingFactor),
		recommendations: deps.Policy.Recommendations,
		entries:         newEntryCache(deps.Policy.EntryRetention),
	}
}

// ApplyBatch credits a batch of XP entries to one character. Structural problems
// reject the whole batch; per-entry problems are reported as warnings.
func (l *Ledger) ApplyBatch(ctx context.Context, batch domain.XPBatch) (*domain.BatchResult, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}
	if err := l.gate.Check(ctx, domain.EngineProgression); err != nil {
		return nil, err
	}

	var (
		a   *batchApply
		now time.Time
	)
	err := l.store.WithCharacter(ctx, batch.CharacterID, func(tx ports.ProgressTx) error {
		now = l.clock.Now()
		l.entries.evictOld(now)

		current, err := tx.GetSkillProgress(ctx, batch.CharacterID)
		if err != nil {
			return fmt.Errorf("load skill progress: %w", err)
		}
		if current == nil {
			current = make(map[string]domain.SkillProgress)
		}

		a = &batchApply{
			ledger:   l,
			batch:    batch,
			now:      now,
			current:  current,
			skills:   make(map[string]*domain.SkillDefinition),
			touched:  make(map[string]bool),
			inBatch:  make(map[string]bool),
			warnedDR: make(map[string]bool),
			result: &domain.BatchResult{
				CharacterID:      batch.CharacterID,
				TraceID:          batch.TraceID,
				EntriesProcessed: len(batch.Entries),
				Warnings:         []domain.BatchWarning{},
				UpdatedSkills:    []domain.SkillProgress{},
				SoftCapEvents:    []domain.SoftCapEvent{},
			},
		}

		for i, entry := range batch.Entries {
			if err := a.apply(ctx, i, entry); err != nil {
				return err
			}
		}

		updated := make([]domain.SkillProgress, 0, len(a.touched))
		for skillID := range a.touched {
			updated = append(updated, current[skillID])
		}
		sort.Slice(updated, func(i, j int) bool { return updated[i].SkillID < updated[j].SkillID })

		if len(updated) > 0 {
			if err := tx.SaveSkillProgress(ctx, updated); err != nil {
				return fmt.Errorf("save skill progress: %w", err)
			}
		}
		a.result.UpdatedSkills = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.entries.remember(a.applied, now)

	for _, evt := range a.result.SoftCapEvents {
		l.emit(ctx, domain.EventSoftCapReached, evt.CharacterID.String(), batch.TraceID, evt)
	}

	metrics.XPEntriesProcessed.WithLabelValues("applied").Add(float64(len(batch.Entries) - a.skipped))
	metrics.XPEntriesProcessed.WithLabelValues("skipped").Add(float64(a.skipped))
	metrics.SoftCapEvents.Add(float64(len(a.result.SoftCapEvents)))

	return a.result, nil
}

// batchApply is the working state of one ApplyBatch call.
type batchApply struct {
	ledger   *Ledger
	batch    domain.XPBatch
	now      time.Time
	current  map[string]domain.SkillProgress
	skills   map[string]*domain.SkillDefinition
	touched  map[string]bool
	inBatch  map[string]bool
	warnedDR map[string]bool
	applied  []string
	skipped  int
	result   *domain.BatchResult
}

func (a *batchApply) warn(index int, skillID string, code domain.WarningCode, msg string) {
	a.result.Warnings = append(a.result.Warnings, domain.BatchWarning{
		EntryIndex: index,
		SkillID:    skillID,
		Code:       code,
		Message:    msg,
	})
}

func (a *batchApply) apply(ctx context.Context, i int, entry domain.XPEntry) error {
	l := a.ledger

	var key string
	if entry.EntryID != "" {
		key = entryKey(a.batch.CharacterID, entry.EntryID)
		if a.inBatch[key] || l.entries.contains(key) {
			a.warn(i, entry.SkillID, domain.WarningDuplicateEntry, "entry "+entry.EntryID+" was already applied")
			a.skipped++
			return nil
		}
		a.inBatch[key] = true
	}

	def, err := a.skill(ctx, entry.SkillID)
	if errors.Is(err, domain.ErrNotFound) {
		a.warn(i, entry.SkillID, domain.WarningUnknownSkill, "skill is not in the catalog")
		a.skipped++
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup skill %s: %w", entry.SkillID, err)
	}
	if key != "" {
		a.applied = append(a.applied, key)
	}

	progress, ok := a.current[entry.SkillID]
	if !ok {
		progress = domain.SkillProgress{CharacterID: a.batch.CharacterID, SkillID: entry.SkillID}
	}

	at := a.now
	if entry.OccurredAt != nil {
		at = *entry.OccurredAt
	}
	day := l.days.key(at)

	if entry.ActivityMultiplier.IsZero() {
		a.warn(i, entry.SkillID, domain.WarningZeroMultiplier, "activity multiplier is zero, no XP credited")
	}

	switch {
	case progress.Day == "" || day > progress.Day:
		progress.Day = day
		progress.DayTotal = decimal.Zero
	case day < progress.Day:
		// The day's load is gone; credit XP under fatigue only.
		gained := entry.XPGained.Mul(entry.ActivityMultiplier).
			Mul(l.decay.FatigueFactor(progress.FatigueScore)).
			Truncate(xpPrecision)
		progress.XPTotal = progress.XPTotal.Add(gained)
		progress.FatigueScore = progress.FatigueScore.Add(entry.FatigueScore)
		a.store(progress, at)
		a.warn(i, entry.SkillID, domain.WarningStaleDay, "entry belongs to closed day "+day)
		return nil
	}

	softCap := def.SoftCap
	factor := l.decay.Factor(progress.FatigueScore, progress.DayTotal, softCap)
	effective := entry.XPGained.Mul(entry.ActivityMultiplier).Mul(factor).Truncate(xpPrecision)

	if l.ceilingFactor.IsPositive() && softCap.IsPositive() {
		room := l.ceilingFactor.Mul(softCap).Sub(progress.DayTotal)
		if room.IsNegative() {
			room = decimal.Zero
		}
		if effective.GreaterThan(room) {
			effective = room
			a.warn(i, entry.SkillID, domain.WarningDayCeiling, "daily ceiling reached, XP clipped")
		}
	}

	before := progress.DayTotal
	progress.DayTotal = progress.DayTotal.Add(effective)
	progress.XPTotal = progress.XPTotal.Add(effective)
	progress.FatigueScore = progress.FatigueScore.Add(entry.FatigueScore)

	if softCap.IsPositive() {
		crossed := before.LessThan(softCap) && progress.DayTotal.GreaterThanOrEqual(softCap)
		switch {
		case crossed && progress.SoftCapNotifiedDay != progress.Day:
			progress.SoftCapNotifiedDay = progress.Day
			a.result.SoftCapEvents = append(a.result.SoftCapEvents, domain.SoftCapEvent{
				CharacterID:     a.batch.CharacterID,
				SkillID:         entry.SkillID,
				Day:             progress.Day,
				DayTotal:        progress.DayTotal,
				SoftCap:         softCap,
				FatigueModifier: l.decay.Factor(progress.FatigueScore, progress.DayTotal, softCap).Round(4),
				Recommendations: l.recommendations,
			})
			a.warn(i, entry.SkillID, domain.WarningSoftCapReached, "soft cap reached for today")
		case before.GreaterThanOrEqual(softCap) && !a.warnedDR[entry.SkillID]:
			a.warnedDR[entry.SkillID] = true
			a.warn(i, entry.SkillID, domain.WarningDiminished, "skill is past its soft cap, XP is diminished")
		}
	}

	a.store(progress, at)
	return nil
}

func (a *batchApply) store(progress domain.SkillProgress, at time.Time) {
	if at.After(progress.LastActionAt) {
		progress.LastActionAt = at
	}
	a.current[progress.SkillID] = progress
	a.touched[progress.SkillID] = true
}

func (a *batchApply) skill(ctx context.Context, skillID string) (*domain.SkillDefinition, error) {
	if def, ok := a.skills[skillID]; ok {
		return def, nil
	}
	def, err := a.ledger.catalog.GetSkill(ctx, skillID)
	if err != nil {
		return nil, err
	}
	a.skills[skillID] = def
	return def, nil
}

func entryKey(characterID domain.ID, entryID string) string {
	return characterID.String() + "|" + entryID
}

func validateBatch(b domain.XPBatch) error {
	var errs []error

	if b.CharacterID == domain.NilID {
		errs = append(errs, fmt.Errorf("characterId is required"))
	}
	if n := len(b.Entries); n == 0 || n > domain.MaxBatchEntries {
		errs = append(errs, fmt.Errorf("entries must contain between 1 and %d items, got %d", domain.MaxBatchEntries, n))
	}

	for i, e := range b.Entries {
		if strings.TrimSpace(e.SkillID) == "" {
			errs = append(errs, fmt.Errorf("entries[%d].skillId is required", i))
		}
		if e.XPGained.IsNegative() {
			errs = append(errs, fmt.Errorf("entries[%d].xpGained must not be negative", i))
		}
		if e.ActivityMultiplier.IsNegative() {
			errs = append(errs, fmt.Errorf("entries[%d].activityMultiplier must not be negative", i))
		}
		if e.FatigueScore.IsNegative() {
			errs = append(errs, fmt.Errorf("entries[%d].fatigueScore must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return domain.Invalid(errs...)
	}
	return nil
}

func (l *Ledger) emit(ctx context.Context, kind domain.EventKind, aggregateID, traceID string, payload any) domain.Event {
	event := domain.NewEvent(kind, aggregateID, l.clock.Now(), payload)
	event.TraceID = traceID
	if l.events == nil {
		return event
	}
	if err := l.events.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish event", "kind", kind, "aggregate_id", aggregateID, "error", err)
	}
	return event
}
