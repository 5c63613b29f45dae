package population

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/config"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Dependencies struct {
	Policy config.PopulationPolicy
	Store  ports.SnapshotRepository
	Events ports.EventSink
	Gate   ports.Gate
	Clock  ports.Clock
}

type Service struct {
	store      ports.SnapshotRepository
	events     ports.EventSink
	gate       ports.Gate
	clock      ports.Clock
	alertRatio decimal.Decimal
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		store:      deps.Store,
		events:     deps.Events,
		gate:       deps.Gate,
		clock:      deps.Clock,
		alertRatio: decimal.NewFromFloat(deps.Policy.AlertRatio),
	}
	if s.gate == nil {
		s.gate = ports.OpenGate{}
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	return s
}

// RecordSnapshot stores an immutable snapshot. Recording the same (city, timestamp) twice fails.
func (s *Service) RecordSnapshot(ctx context.Context, snapshot domain.PopulationSnapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}
	if err := s.gate.Check(ctx, domain.EnginePopulation); err != nil {
		return err
	}

	snapshot.Timestamp = snapshot.Timestamp.UTC()
	if err := s.store.InsertSnapshot(ctx, snapshot); err != nil {
		if domain.CodeOf(err) == domain.CodeSnapshotExists {
			return domain.WithMetadata(domain.CodeSnapshotExists, "snapshot already recorded", map[string]string{
				"city_id":   snapshot.CityID,
				"timestamp": snapshot.Timestamp.Format(time.RFC3339Nano),
			})
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	s.emit(ctx, domain.EventSnapshotRecorded, snapshot.CityID, map[string]any{
		"cityId":    snapshot.CityID,
		"timestamp": snapshot.Timestamp,
		"districts": len(snapshot.Districts),
	})
	return nil
}

func (s *Service) RecordWorldEvent(ctx context.Context, event domain.WorldEvent) (*domain.WorldEvent, error) {
	var errs []error
	if strings.TrimSpace(event.CityID) == "" {
		errs = append(errs, fmt.Errorf("cityId is required"))
	}
	if !event.Category.Valid() {
		errs = append(errs, fmt.Errorf("category %q is not one of world, social, economic, gameplay", event.Category))
	}
	if event.StartsAt.IsZero() {
		errs = append(errs, fmt.Errorf("startsAt is required"))
	}
	if event.DurationMinutes < 0 {
		errs = append(errs, fmt.Errorf("durationMinutes must not be negative"))
	}
	if len(errs) > 0 {
		return nil, domain.Invalid(errs...)
	}
	if err := s.gate.Check(ctx, domain.EnginePopulation); err != nil {
		return nil, err
	}

	if event.EventID == domain.NilID {
		event.EventID = domain.NewID()
	}
	event.StartsAt = event.StartsAt.UTC()
	if err := s.store.InsertWorldEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("insert world event: %w", err)
	}
	return &event, nil
}

// ComputePopulationDiff loads both snapshots and the overlapping world events concurrently.
func (s *Service) ComputePopulationDiff(ctx context.Context, cityID string, baselineTs, currentTs time.Time) (*domain.PopulationDiff, error) {
	var errs []error
	if strings.TrimSpace(cityID) == "" {
		errs = append(errs, fmt.Errorf("cityId is required"))
	}
	if baselineTs.IsZero() || currentTs.IsZero() {
		errs = append(errs, fmt.Errorf("baseline and current timestamps are required"))
	} else if baselineTs.After(currentTs) {
		errs = append(errs, fmt.Errorf("baseline must not be after current"))
	}
	if len(errs) > 0 {
		return nil, domain.Invalid(errs...)
	}

	var (
		baseline, current *domain.PopulationSnapshot
		events            []domain.WorldEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseline, err = s.store.GetSnapshot(gctx, cityID, baselineTs.UTC())
		return snapshotErr(err, cityID, baselineTs)
	})
	g.Go(func() error {
		var err error
		current, err = s.store.GetSnapshot(gctx, cityID, currentTs.UTC())
		return snapshotErr(err, cityID, currentTs)
	})
	g.Go(func() error {
		var err error
		events, err = s.store.ListWorldEvents(gctx, cityID, baselineTs.UTC(), currentTs.UTC())
		if err != nil {
			return fmt.Errorf("list world events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	diff := Diff(*baseline, *current, s.alertRatio)
	diff.EventImpacts = eventImpacts(events, baselineTs, currentTs)

	for _, alert := range diff.Alerts {
		metrics.PopulationAlerts.WithLabelValues(string(alert.Kind)).Inc()
		s.emit(ctx, domain.EventPopulationAlert, cityID, alert)
	}

	return &diff, nil
}

func snapshotErr(err error, cityID string, at time.Time) error {
	if err == nil {
		return nil
	}
	if domain.CodeOf(err) == domain.CodeSnapshotNotFound {
		return domain.WithMetadata(domain.CodeSnapshotNotFound, "snapshot not found", map[string]string{
			"city_id":   cityID,
			"timestamp": at.UTC().Format(time.RFC3339Nano),
		})
	}
	return fmt.Errorf("get snapshot: %w", err)
}

func validateSnapshot(snapshot domain.PopulationSnapshot) error {
	var errs []error
	if strings.TrimSpace(snapshot.CityID) == "" {
		errs = append(errs, fmt.Errorf("cityId is required"))
	}
	if snapshot.Timestamp.IsZero() {
		errs = append(errs, fmt.Errorf("timestamp is required"))
	}
	for id, d := range snapshot.Districts {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("district id must not be empty"))
		}
		if d.NPCCount < 0 || d.Capacity < 0 {
			errs = append(errs, fmt.Errorf("district %s: npcCount and capacity must not be negative", id))
		}
	}
	if len(errs) > 0 {
		return domain.Invalid(errs...)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, kind domain.EventKind, aggregateID string, payload any) {
	if s.events == nil {
		return
	}
	event := domain.NewEvent(kind, aggregateID, s.clock.Now(), payload)
	if err := s.events.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish event", "kind", kind, "city_id", aggregateID, "error", err)
	}
}
