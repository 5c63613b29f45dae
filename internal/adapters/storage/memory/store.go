// Package memory is a process-local implementation of ports.Repository.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"
	"world-state-engine/internal/platform/keyedmutex"

	"github.com/shopspring/decimal"
)

type snapshotKey struct {
	cityID string
	at     int64
}

type Store struct {
	mu         sync.RWMutex
	characters *keyedmutex.Map[domain.ID]

	progress    map[domain.ID]map[string]domain.SkillProgress
	snapshots   map[snapshotKey]domain.PopulationSnapshot
	worldEvents []domain.WorldEvent
	regions     map[domain.ID]domain.RegionControl
	history     map[domain.ID][]domain.ControlShiftEvent
	checklists  map[domain.ID]domain.ValidationChecklist
	sanctions   []domain.Sanction
	triggers    []domain.Trigger
	plans       map[domain.ID]domain.CrisisMitigationPlan
	commands    map[domain.ID]domain.MaintenanceCommand
}

func NewStore() *Store {
	return &Store{
		characters: keyedmutex.New[domain.ID](),
		progress:   make(map[domain.ID]map[string]domain.SkillProgress),
		snapshots:  make(map[snapshotKey]domain.PopulationSnapshot),
		regions:    make(map[domain.ID]domain.RegionControl),
		history:    make(map[domain.ID][]domain.ControlShiftEvent),
		checklists: make(map[domain.ID]domain.ValidationChecklist),
		plans:      make(map[domain.ID]domain.CrisisMitigationPlan),
		commands:   make(map[domain.ID]domain.MaintenanceCommand),
	}
}

func (s *Store) Close() {}

// -- Progression --

func (s *Store) GetSkillProgress(ctx context.Context, characterID domain.ID) (map[string]domain.SkillProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.progress[characterID]), nil
}

// WithCharacter serializes fn per character and applies its writes only when fn succeeds.
func (s *Store) WithCharacter(ctx context.Context, characterID domain.ID, fn func(tx ports.ProgressTx) error) error {
	unlock := s.characters.Lock(characterID)
	defer unlock()

	tx := &progressTx{store: s, staged: make(map[progressKey]domain.SkillProgress)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range tx.staged {
		skills, ok := s.progress[key.characterID]
		if !ok {
			skills = make(map[string]domain.SkillProgress)
			s.progress[key.characterID] = skills
		}
		skills[key.skillID] = p
	}
	return nil
}

type progressKey struct {
	characterID domain.ID
	skillID     string
}

type progressTx struct {
	store  *Store
	staged map[progressKey]domain.SkillProgress
}

func (t *progressTx) GetSkillProgress(ctx context.Context, characterID domain.ID) (map[string]domain.SkillProgress, error) {
	out, _ := t.store.GetSkillProgress(ctx, characterID)
	for key, p := range t.staged {
		if key.characterID != characterID {
			continue
		}
		if out == nil {
			out = make(map[string]domain.SkillProgress)
		}
		out[key.skillID] = p
	}
	return out, nil
}

func (t *progressTx) SaveSkillProgress(ctx context.Context, progress []domain.SkillProgress) error {
	for _, p := range progress {
		t.staged[progressKey{characterID: p.CharacterID, skillID: p.SkillID}] = p
	}
	return nil
}

func (t *progressTx) ResetFatigue(ctx context.Context, characterID domain.ID, skillID string, at time.Time) error {
	current, _ := t.GetSkillProgress(ctx, characterID)
	p, ok := current[skillID]
	if !ok {
		p = domain.SkillProgress{CharacterID: characterID, SkillID: skillID, LastActionAt: at}
	}
	p.FatigueScore = decimal.Zero
	t.staged[progressKey{characterID: characterID, skillID: skillID}] = p
	return nil
}

// -- Population --

func (s *Store) InsertSnapshot(ctx context.Context, snapshot domain.PopulationSnapshot) error {
	key := snapshotKey{cityID: snapshot.CityID, at: snapshot.Timestamp.UnixNano()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[key]; exists {
		return domain.ErrSnapshotExists
	}
	snapshot.Districts = maps.Clone(snapshot.Districts)
	s.snapshots[key] = snapshot
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, cityID string, at time.Time) (*domain.PopulationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[snapshotKey{cityID: cityID, at: at.UnixNano()}]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	snapshot.Districts = maps.Clone(snapshot.Districts)
	return &snapshot, nil
}

func (s *Store) InsertWorldEvent(ctx context.Context, event domain.WorldEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worldEvents = append(s.worldEvents, event)
	return nil
}

func (s *Store) ListWorldEvents(ctx context.Context, cityID string, from, to time.Time) ([]domain.WorldEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.WorldEvent
	for _, e := range s.worldEvents {
		if e.CityID == cityID && e.Overlaps(from, to) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

// -- Control --

func (s *Store) GetRegion(ctx context.Context, regionID domain.ID) (*domain.RegionControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	region, ok := s.regions[regionID]
	if !ok {
		return nil, domain.ErrRegionNotFound
	}
	return cloneRegion(region), nil
}

func (s *Store) UpsertRegion(ctx context.Context, region domain.RegionControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[region.RegionID] = *cloneRegion(region)
	return nil
}

func (s *Store) CompareAndSwapRegion(ctx context.Context, next domain.RegionControl, expectedVersion int64, event domain.ControlShiftEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.regions[next.RegionID]
	if !ok {
		return domain.ErrRegionNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrControlConflict
	}
	s.regions[next.RegionID] = *cloneRegion(next)
	s.history[next.RegionID] = append(s.history[next.RegionID], event)
	return nil
}

func (s *Store) ListRegionsWithDueShifts(ctx context.Context, now time.Time) ([]domain.RegionControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []domain.RegionControl
	for _, region := range s.regions {
		if region.Pending != nil && !region.Pending.ScheduledAt.After(now) {
			due = append(due, *cloneRegion(region))
		}
	}
	return due, nil
}

func (s *Store) ListControlHistory(ctx context.Context, regionID domain.ID) ([]domain.ControlShiftEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.regions[regionID]; !ok {
		return nil, domain.ErrRegionNotFound
	}
	return slices.Clone(s.history[regionID]), nil
}

func cloneRegion(r domain.RegionControl) *domain.RegionControl {
	if r.Pending != nil {
		pending := *r.Pending
		r.Pending = &pending
	}
	return &r
}

// -- Orders --

func (s *Store) GetChecklist(ctx context.Context, orderID domain.ID) (*domain.ValidationChecklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checklist, ok := s.checklists[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &checklist, nil
}

func (s *Store) SaveChecklist(ctx context.Context, checklist domain.ValidationChecklist) (*domain.ValidationChecklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.checklists[checklist.OrderID]; ok {
		return &existing, nil
	}
	checklist.Categories = maps.Clone(checklist.Categories)
	s.checklists[checklist.OrderID] = checklist
	return &checklist, nil
}

func (s *Store) InsertSanction(ctx context.Context, sanction domain.Sanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sanctions = append(s.sanctions, sanction)
	return nil
}

func (s *Store) ListActiveSanctions(ctx context.Context, at time.Time) ([]domain.Sanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []domain.Sanction
	for _, sanction := range s.sanctions {
		if sanction.ActiveAt(at) {
			active = append(active, sanction)
		}
	}
	return active, nil
}

// -- Crisis --

func (s *Store) InsertTrigger(ctx context.Context, trigger domain.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trigger.Metrics = maps.Clone(trigger.Metrics)
	s.triggers = append(s.triggers, trigger)
	return nil
}

func (s *Store) ListTriggers(ctx context.Context, source string, since time.Time) ([]domain.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Trigger
	for _, t := range s.triggers {
		if t.Source == source && !t.RecordedAt.Before(since) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *Store) CreatePlan(ctx context.Context, plan domain.CrisisMitigationPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.PlanID] = clonePlan(plan)
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[planID]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	plan = clonePlan(plan)
	return &plan, nil
}

func (s *Store) FindOpenPlan(ctx context.Context, source string) (*domain.CrisisMitigationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, plan := range s.plans {
		if plan.Source == source && !plan.State.Terminal() {
			plan = clonePlan(plan)
			return &plan, nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

func (s *Store) UpdatePlan(ctx context.Context, plan domain.CrisisMitigationPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.plans[plan.PlanID]
	if !ok {
		return domain.ErrPlanNotFound
	}
	if current.Version != plan.Version-1 {
		return domain.NewError(domain.CodeInvalidTransition, "plan changed concurrently")
	}
	s.plans[plan.PlanID] = clonePlan(plan)
	return nil
}

func clonePlan(p domain.CrisisMitigationPlan) domain.CrisisMitigationPlan {
	p.Actions = slices.Clone(p.Actions)
	return p
}

// -- Maintenance --

func (s *Store) InsertCommand(ctx context.Context, cmd domain.MaintenanceCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[cmd.CommandID] = cmd
	return nil
}

func (s *Store) GetCommand(ctx context.Context, commandID domain.ID) (*domain.MaintenanceCommand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cmd, ok := s.commands[commandID]
	if !ok {
		return nil, domain.ErrCommandNotFound
	}
	return &cmd, nil
}

func (s *Store) ListOpenCommands(ctx context.Context) ([]domain.MaintenanceCommand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var open []domain.MaintenanceCommand
	for _, cmd := range s.commands {
		if cmd.Status.Open() {
			open = append(open, cmd)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartAt.Before(open[j].StartAt) })
	return open, nil
}

func (s *Store) UpdateCommand(ctx context.Context, cmd domain.MaintenanceCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commands[cmd.CommandID]; !ok {
		return domain.ErrCommandNotFound
	}
	s.commands[cmd.CommandID] = cmd
	return nil
}
