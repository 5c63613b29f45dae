package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/config"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("world-state-engine/orders")

type Store interface {
	ports.ChecklistRepository
	ports.SanctionRepository
}

type Catalog interface {
	ports.ZoneCatalog
	ports.TemplateCatalog
}

type Dependencies struct {
	Policy          config.OrdersPolicy
	PolicyVersion   string
	CategoryTimeout time.Duration
	Store           Store
	Regions         ports.RegionRepository
	Catalog         Catalog
	Events          ports.EventSink
	Gate            ports.Gate
	Clock           ports.Clock
}

type Service struct {
	policy        config.OrdersPolicy
	policyVersion string
	timeout       time.Duration
	store         Store
	regions       ports.RegionRepository
	catalog       Catalog
	events        ports.EventSink
	gate          ports.Gate
	clock         ports.Clock

	dedup      *dedupWindow
	toxicity   *toxicityScorer
	warnRatio  decimal.Decimal
	blockRatio decimal.Decimal
	forbidden  []string
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		policy:        deps.Policy,
		policyVersion: deps.PolicyVersion,
		timeout:       deps.CategoryTimeout,
		store:         deps.Store,
		regions:       deps.Regions,
		catalog:       deps.Catalog,
		events:        deps.Events,
		gate:          deps.Gate,
		clock:         deps.Clock,
		dedup:         newDedupWindow(deps.Policy.DedupWindow),
		toxicity:      newToxicityScorer(deps.Policy.ToxicTerms),
		warnRatio:     decimal.NewFromFloat(deps.Policy.ToxicityWarnRatio),
		blockRatio:    decimal.NewFromFloat(deps.Policy.ToxicityBlockRatio),
	}
	for _, term := range deps.Policy.ForbiddenTerms {
		if w := words(term); len(w) > 0 {
			s.forbidden = append(s.forbidden, strings.Join(w, " "))
		}
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Second
	}
	if s.gate == nil {
		s.gate = ports.OpenGate{}
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	return s
}

// orderInput is shared by every category of one validation run.
// Catalog lookups are memoised so concurrent checks hit the catalog once.
type orderInput struct {
	order       domain.Order
	at          time.Time
	fingerprint string
	zone        func() (*domain.ZoneDefinition, error)
	template    func() (*domain.TemplateDefinition, error)
}

func (in *orderInput) text() string {
	return in.order.Description + " " + strings.Join(in.order.Objectives, " ")
}

// ValidateOrder runs every category concurrently and stores the checklist.
// An order is validated once; later calls return the stored checklist.
func (s *Service) ValidateOrder(ctx context.Context, order domain.Order) (*domain.ValidationChecklist, error) {
	ctx, span := tracer.Start(ctx, "orders.ValidateOrder", trace.WithAttributes(
		attribute.String("order.id", order.OrderID.String()),
		attribute.String("order.template", order.TemplateCode),
	))
	defer span.End()

	if err := validateOrder(order); err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, domain.EngineOrders); err != nil {
		return nil, err
	}

	existing, err := s.store.GetChecklist(ctx, order.OrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get checklist: %w", err)
	}

	now := s.clock.Now()
	in := &orderInput{
		order:       order,
		at:          now,
		fingerprint: Fingerprint(order.TemplateCode, order.ZoneID, order.Objectives),
		zone: sync.OnceValues(func() (*domain.ZoneDefinition, error) {
			return s.catalog.GetZone(ctx, order.ZoneID)
		}),
		template: sync.OnceValues(func() (*domain.TemplateDefinition, error) {
			return s.catalog.GetTemplate(ctx, order.TemplateCode)
		}),
	}

	checks := s.checks()
	results := make([]domain.CategoryResult, len(domain.Categories))
	var g errgroup.Group
	for i, category := range domain.Categories {
		g.Go(func() error {
			results[i] = s.runCategory(ctx, category, checks[category], in)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	checklist := domain.ValidationChecklist{
		OrderID:     order.OrderID,
		SubmitterID: order.SubmitterID,
		Fingerprint: in.fingerprint,
		Categories:  make(map[domain.Category]domain.CategoryResult, len(results)),
	}
	for _, r := range results {
		checklist.Categories[r.Category] = r
	}
	overall, blockingCount := domain.Summarize(checklist.Categories)
	checklist.Summary = domain.ValidationSummary{
		OverallStatus:  overall,
		BlockingIssues: blockingCount,
		PolicyVersion:  s.policyVersion,
		AuditTraceID:   domain.NewID(),
		ValidatedAt:    now,
	}
	span.SetAttributes(attribute.String("order.status", string(overall)))

	stored, err := s.store.SaveChecklist(ctx, checklist)
	if err != nil {
		return nil, fmt.Errorf("save checklist: %w", err)
	}
	if stored.Summary.AuditTraceID != checklist.Summary.AuditTraceID {
		// a concurrent call for the same order won
		return stored, nil
	}
	s.dedup.record(in.fingerprint, order.OrderID, now)

	metrics.OrderValidations.WithLabelValues(string(overall)).Inc()
	s.emit(ctx, *stored)
	return stored, nil
}

func (s *Service) runCategory(ctx context.Context, category domain.Category, check checkFunc, in *orderInput) domain.CategoryResult {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		issues []domain.ValidationIssue
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		issues, err := check(cctx, in)
		done <- outcome{issues, err}
	}()

	var result domain.CategoryResult
	select {
	case o := <-done:
		if o.err != nil {
			slog.Error("Validation category failed", "category", category, "order_id", in.order.OrderID, "error", o.err)
			o.issues = append(o.issues, blocking("CHECK_FAILED", "%s check could not complete: %v", category, o.err))
		}
		result = domain.NewCategoryResult(category, o.issues)
	case <-cctx.Done():
		slog.Warn("Validation category timed out", "category", category, "order_id", in.order.OrderID, "timeout", s.timeout)
		result = domain.NewCategoryResult(category, []domain.ValidationIssue{
			blocking(domain.IssueCategoryTimeout, "%s check did not finish within %s", category, s.timeout),
		})
	}

	metrics.ValidationCategoryDuration.WithLabelValues(string(category), string(result.Status)).Observe(time.Since(start).Seconds())
	return result
}

// RegisterSanction stores a sanction consulted by the sanctions category.
func (s *Service) RegisterSanction(ctx context.Context, sanction domain.Sanction) (*domain.Sanction, error) {
	var errs []error
	if sanction.SubmitterID == "" && sanction.ZoneID == "" {
		errs = append(errs, fmt.Errorf("submitterId or zoneId is required"))
	}
	if !sanction.Severity.Valid() {
		errs = append(errs, fmt.Errorf("severity must be block or warn"))
	}
	if sanction.EndsAt != nil && !sanction.EndsAt.After(sanction.StartsAt) {
		errs = append(errs, fmt.Errorf("endsAt must be after startsAt"))
	}
	if len(errs) > 0 {
		return nil, domain.Invalid(errs...)
	}
	if err := s.gate.Check(ctx, domain.EngineOrders); err != nil {
		return nil, err
	}

	if sanction.SanctionID == domain.NilID {
		sanction.SanctionID = domain.NewID()
	}
	if sanction.StartsAt.IsZero() {
		sanction.StartsAt = s.clock.Now()
	}
	if err := s.store.InsertSanction(ctx, sanction); err != nil {
		return nil, fmt.Errorf("insert sanction: %w", err)
	}
	slog.Info("Sanction registered", "sanction_id", sanction.SanctionID, "submitter_id", sanction.SubmitterID, "zone_id", sanction.ZoneID)
	return &sanction, nil
}

func validateOrder(order domain.Order) error {
	var errs []error
	if order.OrderID == domain.NilID {
		errs = append(errs, fmt.Errorf("orderId is required"))
	}
	if strings.TrimSpace(order.SubmitterID) == "" {
		errs = append(errs, fmt.Errorf("submitterId is required"))
	}
	if strings.TrimSpace(order.TemplateCode) == "" {
		errs = append(errs, fmt.Errorf("templateCode is required"))
	}
	if strings.TrimSpace(order.ZoneID) == "" {
		errs = append(errs, fmt.Errorf("zoneId is required"))
	}
	if len(order.Objectives) == 0 {
		errs = append(errs, fmt.Errorf("objectives must not be empty"))
	}
	for i, o := range order.Objectives {
		if strings.TrimSpace(o) == "" {
			errs = append(errs, fmt.Errorf("objectives[%d] is blank", i))
		}
	}
	if order.Budget < 0 {
		errs = append(errs, fmt.Errorf("budget must not be negative"))
	}
	if len(errs) > 0 {
		return domain.Invalid(errs...)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, checklist domain.ValidationChecklist) {
	if s.events == nil {
		return
	}
	event := domain.NewEvent(domain.EventOrderValidated, checklist.OrderID.String(), s.clock.Now(), checklist)
	event.AuditID = checklist.Summary.AuditTraceID
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event.TraceID = sc.TraceID().String()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish event", "kind", event.Kind, "order_id", checklist.OrderID, "error", err)
	}
}
