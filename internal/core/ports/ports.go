package ports

import (
	"context"
	"time"

	"world-state-engine/internal/core/domain"
)

type ProgressRepository interface {
	GetSkillProgress(ctx context.Context, characterID domain.ID) (map[string]domain.SkillProgress, error)
	// WithCharacter runs fn while holding characterID exclusively for every process
	// sharing the store. Writes made through tx are kept only if fn returns nil.
	WithCharacter(ctx context.Context, characterID domain.ID, fn func(tx ProgressTx) error) error
}

// ProgressTx is the progress view handed to WithCharacter.
type ProgressTx interface {
	GetSkillProgress(ctx context.Context, characterID domain.ID) (map[string]domain.SkillProgress, error)
	SaveSkillProgress(ctx context.Context, progress []domain.SkillProgress) error
	ResetFatigue(ctx context.Context, characterID domain.ID, skillID string, at time.Time) error
}

type SnapshotRepository interface {
	// InsertSnapshot fails with domain.ErrSnapshotExists when the key is taken.
	InsertSnapshot(ctx context.Context, snapshot domain.PopulationSnapshot) error
	GetSnapshot(ctx context.Context, cityID string, at time.Time) (*domain.PopulationSnapshot, error)
	InsertWorldEvent(ctx context.Context, event domain.WorldEvent) error
	ListWorldEvents(ctx context.Context, cityID string, from, to time.Time) ([]domain.WorldEvent, error)
}

type RegionRepository interface {
	GetRegion(ctx context.Context, regionID domain.ID) (*domain.RegionControl, error)
	// CompareAndSwapRegion stores next only if the stored version equals expectedVersion,
	// and appends event to the history in the same transaction.
	CompareAndSwapRegion(ctx context.Context, next domain.RegionControl, expectedVersion int64, event domain.ControlShiftEvent) error
	ListRegionsWithDueShifts(ctx context.Context, now time.Time) ([]domain.RegionControl, error)
	ListControlHistory(ctx context.Context, regionID domain.ID) ([]domain.ControlShiftEvent, error)
	UpsertRegion(ctx context.Context, region domain.RegionControl) error
}

type ChecklistRepository interface {
	GetChecklist(ctx context.Context, orderID domain.ID) (*domain.ValidationChecklist, error)
	// SaveChecklist returns the already stored checklist when the order was validated before.
	SaveChecklist(ctx context.Context, checklist domain.ValidationChecklist) (*domain.ValidationChecklist, error)
}

type SanctionRepository interface {
	InsertSanction(ctx context.Context, sanction domain.Sanction) error
	ListActiveSanctions(ctx context.Context, at time.Time) ([]domain.Sanction, error)
}

type TriggerRepository interface {
	InsertTrigger(ctx context.Context, trigger domain.Trigger) error
	ListTriggers(ctx context.Context, source string, since time.Time) ([]domain.Trigger, error)
}

type PlanRepository interface {
	CreatePlan(ctx context.Context, plan domain.CrisisMitigationPlan) error
	GetPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error)
	FindOpenPlan(ctx context.Context, source string) (*domain.CrisisMitigationPlan, error)
	// UpdatePlan is a compare-and-swap on plan.Version-1.
	UpdatePlan(ctx context.Context, plan domain.CrisisMitigationPlan) error
}

type MaintenanceRepository interface {
	InsertCommand(ctx context.Context, cmd domain.MaintenanceCommand) error
	GetCommand(ctx context.Context, commandID domain.ID) (*domain.MaintenanceCommand, error)
	ListOpenCommands(ctx context.Context) ([]domain.MaintenanceCommand, error)
	UpdateCommand(ctx context.Context, cmd domain.MaintenanceCommand) error
}

// Repository is the full storage surface implemented by the storage adapters.
type Repository interface {
	ProgressRepository
	SnapshotRepository
	RegionRepository
	ChecklistRepository
	SanctionRepository
	TriggerRepository
	PlanRepository
	MaintenanceRepository
	Close()
}

type SkillCatalog interface {
	GetSkill(ctx context.Context, skillID string) (*domain.SkillDefinition, error)
}

type ZoneCatalog interface {
	GetZone(ctx context.Context, zoneID string) (*domain.ZoneDefinition, error)
}

type TemplateCatalog interface {
	GetTemplate(ctx context.Context, templateCode string) (*domain.TemplateDefinition, error)
}

// Catalog is read-only reference data. Lookups return domain.ErrNotFound for unknown keys.
type Catalog interface {
	SkillCatalog
	ZoneCatalog
	TemplateCatalog
}

// EventSink receives committed domain events. Publish must not block the caller for long.
type EventSink interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Gate refuses writes to engines under maintenance.
type Gate interface {
	Check(ctx context.Context, engine domain.Engine) error
}

// OpenGate never refuses.
type OpenGate struct{}

func (OpenGate) Check(context.Context, domain.Engine) error { return nil }

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
