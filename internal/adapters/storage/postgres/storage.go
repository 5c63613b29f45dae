package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"world-state-engine/internal/adapters/storage/postgres/db"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
	tx   txBeginner
	q    *db.Queries
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{
		pool: pool,
		tx:   pool,
		q:    db.New(pool),
	}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// -- Progression --

func (s *PostgresStore) GetSkillProgress(ctx context.Context, characterID domain.ID) (map[string]domain.SkillProgress, error) {
	return getSkillProgress(ctx, s.q, characterID)
}

// WithCharacter runs fn inside a transaction holding a per-character advisory lock,
// so replicas applying batches for one character queue behind each other.
func (s *PostgresStore) WithCharacter(ctx context.Context, characterID domain.ID, fn func(tx ports.ProgressTx) error) error {
	tx, err := s.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin progress tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := s.q.WithTx(tx)
	if err := q.LockCharacter(ctx, characterID.String()); err != nil {
		return fmt.Errorf("lock character: %w", err)
	}
	if err := fn(&progressTx{q: q}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit progress tx: %w", err)
	}
	return nil
}

type progressTx struct {
	q *db.Queries
}

func (t *progressTx) GetSkillProgress(ctx context.Context, characterID domain.ID) (map[string]domain.SkillProgress, error) {
	return getSkillProgress(ctx, t.q, characterID)
}

func (t *progressTx) SaveSkillProgress(ctx context.Context, progress []domain.SkillProgress) error {
	if len(progress) == 0 {
		return nil
	}

	var arg db.UpsertSkillProgressParams
	for _, p := range progress {
		arg.CharacterIDs = append(arg.CharacterIDs, p.CharacterID.String())
		arg.SkillIDs = append(arg.SkillIDs, p.SkillID)
		arg.XPTotals = append(arg.XPTotals, p.XPTotal.String())
		arg.DayTotals = append(arg.DayTotals, p.DayTotal.String())
		arg.FatigueScores = append(arg.FatigueScores, p.FatigueScore.String())
		arg.LastActionAts = append(arg.LastActionAts, p.LastActionAt)
		arg.Days = append(arg.Days, p.Day)
		arg.SoftCapNotifiedDays = append(arg.SoftCapNotifiedDays, p.SoftCapNotifiedDay)
	}
	if err := t.q.UpsertSkillProgress(ctx, arg); err != nil {
		return fmt.Errorf("save skill progress: %w", err)
	}
	return nil
}

func (t *progressTx) ResetFatigue(ctx context.Context, characterID domain.ID, skillID string, at time.Time) error {
	if err := t.q.ResetFatigue(ctx, db.ResetFatigueParams{
		CharacterID: characterID.String(),
		SkillID:     skillID,
		At:          at,
	}); err != nil {
		return fmt.Errorf("reset fatigue: %w", err)
	}
	return nil
}

func getSkillProgress(ctx context.Context, q *db.Queries, characterID domain.ID) (map[string]domain.SkillProgress, error) {
	rows, err := q.GetSkillProgress(ctx, characterID.String())
	if err != nil {
		return nil, fmt.Errorf("get skill progress: %w", err)
	}

	result := make(map[string]domain.SkillProgress, len(rows))
	for _, row := range rows {
		p := domain.SkillProgress{
			CharacterID:        characterID,
			SkillID:            row.SkillID,
			LastActionAt:       row.LastActionAt.UTC(),
			Day:                row.Day,
			SoftCapNotifiedDay: row.SoftCapNotifiedDay,
		}
		if p.XPTotal, err = decimal.NewFromString(row.XPTotal); err != nil {
			return nil, fmt.Errorf("parse xp_total for %s: %w", row.SkillID, err)
		}
		if p.DayTotal, err = decimal.NewFromString(row.DayTotal); err != nil {
			return nil, fmt.Errorf("parse day_total for %s: %w", row.SkillID, err)
		}
		if p.FatigueScore, err = decimal.NewFromString(row.FatigueScore); err != nil {
			return nil, fmt.Errorf("parse fatigue_score for %s: %w", row.SkillID, err)
		}
		result[row.SkillID] = p
	}
	return result, nil
}

// -- Population --

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snapshot domain.PopulationSnapshot) error {
	districts, err := json.Marshal(snapshot.Districts)
	if err != nil {
		return fmt.Errorf("encode districts: %w", err)
	}
	inserted, err := s.q.InsertSnapshot(ctx, db.InsertSnapshotParams{
		CityID:    snapshot.CityID,
		TakenAt:   snapshot.Timestamp,
		Districts: districts,
	})
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if inserted == 0 {
		return domain.ErrSnapshotExists
	}
	return nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, cityID string, at time.Time) (*domain.PopulationSnapshot, error) {
	row, err := s.q.GetSnapshot(ctx, cityID, at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	snapshot := &domain.PopulationSnapshot{CityID: row.CityID, Timestamp: row.TakenAt.UTC()}
	if err := json.Unmarshal(row.Districts, &snapshot.Districts); err != nil {
		return nil, fmt.Errorf("decode districts: %w", err)
	}
	return snapshot, nil
}

func (s *PostgresStore) InsertWorldEvent(ctx context.Context, event domain.WorldEvent) error {
	if err := s.q.InsertWorldEvent(ctx, db.WorldEvent{
		EventID:         event.EventID.String(),
		CityID:          event.CityID,
		Category:        string(event.Category),
		Title:           event.Title,
		StartsAt:        event.StartsAt,
		DurationMinutes: int32(event.DurationMinutes),
	}); err != nil {
		return fmt.Errorf("insert world event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWorldEvents(ctx context.Context, cityID string, from, to time.Time) ([]domain.WorldEvent, error) {
	rows, err := s.q.ListWorldEvents(ctx, db.ListWorldEventsParams{CityID: cityID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list world events: %w", err)
	}

	result := make([]domain.WorldEvent, 0, len(rows))
	for _, row := range rows {
		id, err := domain.ParseID(row.EventID)
		if err != nil {
			return nil, fmt.Errorf("parse event id: %w", err)
		}
		result = append(result, domain.WorldEvent{
			EventID:         id,
			CityID:          row.CityID,
			Category:        domain.WorldEventCategory(row.Category),
			Title:           row.Title,
			StartsAt:        row.StartsAt.UTC(),
			DurationMinutes: int(row.DurationMinutes),
		})
	}
	return result, nil
}

// -- Control --

func (s *PostgresStore) GetRegion(ctx context.Context, regionID domain.ID) (*domain.RegionControl, error) {
	row, err := s.q.GetRegion(ctx, regionID.String())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get region: %w", err)
	}
	return toRegion(row)
}

func (s *PostgresStore) UpsertRegion(ctx context.Context, region domain.RegionControl) error {
	if err := s.q.UpsertRegion(ctx, db.UpsertRegionParams{
		RegionID:     region.RegionID.String(),
		CurrentOwner: region.CurrentOwner,
		ControlScore: region.ControlScore.String(),
		LastShiftAt:  region.LastShiftAt,
		Version:      region.Version,
	}); err != nil {
		return fmt.Errorf("upsert region: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompareAndSwapRegion(ctx context.Context, next domain.RegionControl, expectedVersion int64, event domain.ControlShiftEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode control event: %w", err)
	}
	arg := db.SwapRegionParams{
		RegionID:        next.RegionID.String(),
		CurrentOwner:    next.CurrentOwner,
		ControlScore:    next.ControlScore.String(),
		LastShiftAt:     next.LastShiftAt,
		Version:         next.Version,
		ExpectedVersion: expectedVersion,
		EventID:         event.EventID.String(),
		RecordedAt:      event.RecordedAt,
		Event:           payload,
	}
	if next.Pending != nil {
		if arg.Pending, err = json.Marshal(next.Pending); err != nil {
			return fmt.Errorf("encode pending shift: %w", err)
		}
		due := next.Pending.ScheduledAt
		arg.PendingDue = &due
	}

	swapped, err := s.q.SwapRegion(ctx, arg)
	if err != nil {
		return fmt.Errorf("swap region: %w", err)
	}
	if swapped == 1 {
		return nil
	}
	if _, err := s.q.GetRegion(ctx, arg.RegionID); errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRegionNotFound
	}
	return domain.ErrControlConflict
}

func (s *PostgresStore) ListRegionsWithDueShifts(ctx context.Context, now time.Time) ([]domain.RegionControl, error) {
	rows, err := s.q.ListRegionsWithDueShifts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due shifts: %w", err)
	}

	result := make([]domain.RegionControl, 0, len(rows))
	for _, row := range rows {
		region, err := toRegion(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *region)
	}
	return result, nil
}

func (s *PostgresStore) ListControlHistory(ctx context.Context, regionID domain.ID) ([]domain.ControlShiftEvent, error) {
	if _, err := s.GetRegion(ctx, regionID); err != nil {
		return nil, err
	}
	payloads, err := s.q.ListControlHistory(ctx, regionID.String())
	if err != nil {
		return nil, fmt.Errorf("list control history: %w", err)
	}
	return decodeAll[domain.ControlShiftEvent](payloads)
}

func toRegion(row db.Region) (*domain.RegionControl, error) {
	id, err := domain.ParseID(row.RegionID)
	if err != nil {
		return nil, fmt.Errorf("parse region id: %w", err)
	}
	score, err := decimal.NewFromString(row.ControlScore)
	if err != nil {
		return nil, fmt.Errorf("parse control score: %w", err)
	}
	region := &domain.RegionControl{
		RegionID:     id,
		CurrentOwner: row.CurrentOwner,
		ControlScore: score,
		LastShiftAt:  row.LastShiftAt,
		Version:      row.Version,
	}
	if len(row.Pending) > 0 {
		region.Pending = &domain.PendingShift{}
		if err := json.Unmarshal(row.Pending, region.Pending); err != nil {
			return nil, fmt.Errorf("decode pending shift: %w", err)
		}
	}
	return region, nil
}

// -- Orders --

func (s *PostgresStore) GetChecklist(ctx context.Context, orderID domain.ID) (*domain.ValidationChecklist, error) {
	payload, err := s.q.GetChecklist(ctx, orderID.String())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checklist: %w", err)
	}
	return decode[domain.ValidationChecklist](payload)
}

func (s *PostgresStore) SaveChecklist(ctx context.Context, checklist domain.ValidationChecklist) (*domain.ValidationChecklist, error) {
	payload, err := json.Marshal(checklist)
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}
	inserted, err := s.q.InsertChecklist(ctx, checklist.OrderID.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("insert checklist: %w", err)
	}
	if inserted == 1 {
		return &checklist, nil
	}
	return s.GetChecklist(ctx, checklist.OrderID)
}

func (s *PostgresStore) InsertSanction(ctx context.Context, sanction domain.Sanction) error {
	payload, err := json.Marshal(sanction)
	if err != nil {
		return fmt.Errorf("encode sanction: %w", err)
	}
	if err := s.q.InsertSanction(ctx, db.InsertSanctionParams{
		SanctionID: sanction.SanctionID.String(),
		StartsAt:   sanction.StartsAt,
		EndsAt:     sanction.EndsAt,
		Payload:    payload,
	}); err != nil {
		return fmt.Errorf("insert sanction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveSanctions(ctx context.Context, at time.Time) ([]domain.Sanction, error) {
	payloads, err := s.q.ListActiveSanctions(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("list sanctions: %w", err)
	}
	return decodeAll[domain.Sanction](payloads)
}

// -- Crisis --

func (s *PostgresStore) InsertTrigger(ctx context.Context, trigger domain.Trigger) error {
	payload, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("encode trigger: %w", err)
	}
	if err := s.q.InsertTrigger(ctx, db.InsertTriggerParams{
		ImpactID:   trigger.ImpactID.String(),
		Source:     trigger.Source,
		RecordedAt: trigger.RecordedAt,
		Payload:    payload,
	}); err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTriggers(ctx context.Context, source string, since time.Time) ([]domain.Trigger, error) {
	payloads, err := s.q.ListTriggers(ctx, source, since)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return decodeAll[domain.Trigger](payloads)
}

func (s *PostgresStore) CreatePlan(ctx context.Context, plan domain.CrisisMitigationPlan) error {
	arg, err := planParams(plan)
	if err != nil {
		return err
	}
	err = s.q.InsertPlan(ctx, arg)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.WithMetadata(domain.CodeInvalidTransition, "an open plan already exists for this source", map[string]string{"source": plan.Source})
	}
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error) {
	payload, err := s.q.GetPlan(ctx, planID.String())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return decode[domain.CrisisMitigationPlan](payload)
}

func (s *PostgresStore) FindOpenPlan(ctx context.Context, source string) (*domain.CrisisMitigationPlan, error) {
	payload, err := s.q.FindOpenPlan(ctx, source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find open plan: %w", err)
	}
	return decode[domain.CrisisMitigationPlan](payload)
}

func (s *PostgresStore) UpdatePlan(ctx context.Context, plan domain.CrisisMitigationPlan) error {
	arg, err := planParams(plan)
	if err != nil {
		return err
	}
	updated, err := s.q.UpdatePlan(ctx, arg)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if updated == 1 {
		return nil
	}
	exists, err := s.q.PlanExists(ctx, arg.PlanID)
	if err != nil {
		return fmt.Errorf("check plan: %w", err)
	}
	if !exists {
		return domain.ErrPlanNotFound
	}
	return domain.NewError(domain.CodeInvalidTransition, "plan changed concurrently")
}

func planParams(plan domain.CrisisMitigationPlan) (db.PlanParams, error) {
	payload, err := json.Marshal(plan)
	if err != nil {
		return db.PlanParams{}, fmt.Errorf("encode plan: %w", err)
	}
	return db.PlanParams{
		PlanID:  plan.PlanID.String(),
		Source:  plan.Source,
		State:   string(plan.State),
		Version: plan.Version,
		Payload: payload,
	}, nil
}

// -- Maintenance --

func (s *PostgresStore) InsertCommand(ctx context.Context, cmd domain.MaintenanceCommand) error {
	arg, err := commandParams(cmd)
	if err != nil {
		return err
	}
	if err := s.q.InsertCommand(ctx, arg); err != nil {
		return fmt.Errorf("insert maintenance command: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCommand(ctx context.Context, commandID domain.ID) (*domain.MaintenanceCommand, error) {
	payload, err := s.q.GetCommand(ctx, commandID.String())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCommandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get maintenance command: %w", err)
	}
	return decode[domain.MaintenanceCommand](payload)
}

func (s *PostgresStore) ListOpenCommands(ctx context.Context) ([]domain.MaintenanceCommand, error) {
	payloads, err := s.q.ListOpenCommands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list maintenance commands: %w", err)
	}
	return decodeAll[domain.MaintenanceCommand](payloads)
}

func (s *PostgresStore) UpdateCommand(ctx context.Context, cmd domain.MaintenanceCommand) error {
	arg, err := commandParams(cmd)
	if err != nil {
		return err
	}
	updated, err := s.q.UpdateCommand(ctx, arg)
	if err != nil {
		return fmt.Errorf("update maintenance command: %w", err)
	}
	if updated == 0 {
		return domain.ErrCommandNotFound
	}
	return nil
}

func commandParams(cmd domain.MaintenanceCommand) (db.CommandParams, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return db.CommandParams{}, fmt.Errorf("encode maintenance command: %w", err)
	}
	return db.CommandParams{
		CommandID: cmd.CommandID.String(),
		Status:    string(cmd.Status),
		StartAt:   cmd.StartAt,
		Payload:   payload,
	}, nil
}

func decode[T any](payload []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return &v, nil
}

func decodeAll[T any](payloads [][]byte) ([]T, error) {
	result := make([]T, 0, len(payloads))
	for _, p := range payloads {
		v, err := decode[T](p)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, nil
}
