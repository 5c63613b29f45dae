package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"
)

const defaultRefreshInterval = 5 * time.Second

type Dependencies struct {
	Store  ports.MaintenanceRepository
	Events ports.EventSink
	Clock  ports.Clock
	// RefreshInterval bounds how stale the open-command cache may get before
	// Check reloads it. Commands issued by another process become visible within it.
	RefreshInterval time.Duration
}

// Service issues maintenance commands and acts as the write gate for every engine.
// Open commands are cached and reloaded from storage once older than the refresh interval.
type Service struct {
	store   ports.MaintenanceRepository
	events  ports.EventSink
	clock   ports.Clock
	refresh time.Duration

	mu       sync.RWMutex
	open     map[domain.ID]domain.MaintenanceCommand
	loadedAt time.Time
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		store:   deps.Store,
		events:  deps.Events,
		clock:   deps.Clock,
		refresh: deps.RefreshInterval,
		open:    make(map[domain.ID]domain.MaintenanceCommand),
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	if s.refresh <= 0 {
		s.refresh = defaultRefreshInterval
	}
	return s
}

// Load fills the cache from storage. Call once before serving.
func (s *Service) Load(ctx context.Context) error {
	n, err := s.Refresh(ctx)
	if err != nil {
		return err
	}
	slog.Info("Maintenance state loaded", "open_commands", n)
	return nil
}

// Refresh replaces the cache with the open commands in storage.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(ctx); err != nil {
		return 0, err
	}
	return len(s.open), nil
}

func (s *Service) reloadLocked(ctx context.Context) error {
	cmds, err := s.store.ListOpenCommands(ctx)
	if err != nil {
		return fmt.Errorf("list open maintenance commands: %w", err)
	}
	clear(s.open)
	for _, cmd := range cmds {
		s.open[cmd.CommandID] = cmd
	}
	s.loadedAt = s.clock.Now()
	return nil
}

func (s *Service) stale(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.loadedAt) >= s.refresh
}

// Check refuses writes to an engine frozen by an in-progress command.
// Accepted commands whose start has passed count as in progress even before the worker promotes them.
// A failed reload keeps the previous cache.
func (s *Service) Check(ctx context.Context, engine domain.Engine) error {
	now := s.clock.Now()
	if s.stale(now) {
		if _, err := s.Refresh(ctx); err != nil {
			slog.Warn("Serving cached maintenance state", "error", err)
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cmd := range s.open {
		if !freezes(cmd, now) || !cmd.Scope.Contains(engine) {
			continue
		}
		metrics.MaintenanceRejections.WithLabelValues(string(engine)).Inc()
		meta := map[string]string{
			"command_id": cmd.CommandID.String(),
			"engine":     string(engine),
			"reason":     cmd.Reason,
		}
		if cmd.ExpectedResumeAt != nil {
			meta["expected_resume_at"] = cmd.ExpectedResumeAt.Format(time.RFC3339)
		}
		return domain.WithMetadata(domain.CodeMaintenanceActive, fmt.Sprintf("%s is under maintenance", engine), meta)
	}
	return nil
}

func freezes(cmd domain.MaintenanceCommand, now time.Time) bool {
	switch cmd.Status {
	case domain.MaintenanceInProgress:
		return true
	case domain.MaintenanceAccepted:
		return !cmd.StartAt.After(now)
	}
	return false
}

// IssueMaintenanceCommand records a command. Overlapping scopes and a resume time
// not after the start are rejected; the rejected command is still stored for audit.
func (s *Service) IssueMaintenanceCommand(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error) {
	var errs []error
	if strings.TrimSpace(req.Reason) == "" {
		errs = append(errs, fmt.Errorf("reason is required"))
	}
	if strings.TrimSpace(req.InitiatedBy) == "" {
		errs = append(errs, fmt.Errorf("initiatedBy is required"))
	}
	scope, err := domain.ParseScope(req.Scope)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, domain.Invalid(errs...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Overlap is judged against storage so commands from other processes count.
	if err := s.reloadLocked(ctx); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cmd := domain.MaintenanceCommand{
		CommandID:        domain.NewID(),
		Reason:           strings.TrimSpace(req.Reason),
		InitiatedBy:      strings.TrimSpace(req.InitiatedBy),
		Scope:            scope,
		StartAt:          now,
		ExpectedResumeAt: req.ExpectedResumeAt,
		Status:           domain.MaintenanceInProgress,
	}
	if req.StartAt != nil {
		cmd.StartAt = req.StartAt.UTC()
	}
	if cmd.StartAt.After(now) {
		cmd.Status = domain.MaintenanceAccepted
	}

	switch {
	case cmd.ExpectedResumeAt != nil && !cmd.ExpectedResumeAt.After(cmd.StartAt):
		cmd.Status = domain.MaintenanceRejected
		cmd.RejectionReason = "expectedResumeAt must be after startAt"
	default:
		for _, other := range s.open {
			if other.Scope.Overlaps(cmd.Scope) {
				cmd.Status = domain.MaintenanceRejected
				cmd.RejectionReason = fmt.Sprintf("overlaps %s command %s", other.Status, other.CommandID)
				break
			}
		}
	}

	if err := s.store.InsertCommand(ctx, cmd); err != nil {
		return nil, fmt.Errorf("insert maintenance command: %w", err)
	}
	if cmd.Status.Open() {
		s.open[cmd.CommandID] = cmd
	}

	slog.Info("Maintenance command issued",
		"command_id", cmd.CommandID,
		"status", cmd.Status,
		"scope", cmd.Scope,
		"initiated_by", cmd.InitiatedBy,
		"rejection_reason", cmd.RejectionReason)
	s.emit(ctx, cmd)
	return &cmd, nil
}

// CompleteMaintenance lifts the freeze held by an open command.
func (s *Service) CompleteMaintenance(ctx context.Context, commandID domain.ID) (*domain.MaintenanceCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, err := s.store.GetCommand(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if !cmd.Status.Open() {
		return nil, domain.WithMetadata(domain.CodeInvalidTransition, fmt.Sprintf("command is %s", cmd.Status), map[string]string{
			"command_id": commandID.String(),
			"status":     string(cmd.Status),
		})
	}

	now := s.clock.Now()
	cmd.Status = domain.MaintenanceCompleted
	cmd.CompletedAt = &now
	if err := s.store.UpdateCommand(ctx, *cmd); err != nil {
		return nil, fmt.Errorf("update maintenance command: %w", err)
	}
	delete(s.open, commandID)

	slog.Info("Maintenance completed", "command_id", commandID, "scope", cmd.Scope)
	s.emit(ctx, *cmd)
	return cmd, nil
}

// ListOpen returns accepted and in-progress commands ordered by start.
func (s *Service) ListOpen(ctx context.Context) ([]domain.MaintenanceCommand, error) {
	return s.store.ListOpenCommands(ctx)
}

// PromoteDue moves accepted commands whose start has passed to in_progress.
func (s *Service) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	promoted := 0
	for id, cmd := range s.open {
		if cmd.Status != domain.MaintenanceAccepted || cmd.StartAt.After(now) {
			continue
		}
		cmd.Status = domain.MaintenanceInProgress
		if err := s.store.UpdateCommand(ctx, cmd); err != nil {
			return promoted, fmt.Errorf("promote maintenance command %s: %w", id, err)
		}
		s.open[id] = cmd
		promoted++
		slog.Info("Maintenance started", "command_id", id, "scope", cmd.Scope)
		s.emit(ctx, cmd)
	}
	return promoted, nil
}

// Start reloads the cache and runs PromoteDue every interval until ctx is done.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				slog.Error("Failed to refresh maintenance state", "error", err)
				continue
			}
			if _, err := s.PromoteDue(ctx, s.clock.Now()); err != nil {
				slog.Error("Failed to promote maintenance commands", "error", err)
			}
		}
	}
}

func (s *Service) emit(ctx context.Context, cmd domain.MaintenanceCommand) {
	if s.events == nil {
		return
	}
	event := domain.NewEvent(domain.EventMaintenanceChanged, cmd.CommandID.String(), s.clock.Now(), cmd)
	if err := s.events.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish event", "kind", event.Kind, "command_id", cmd.CommandID, "error", err)
	}
}
