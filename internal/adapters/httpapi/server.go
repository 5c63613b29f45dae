package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/services/crisis"
)

type ProgressionService interface {
	ApplyBatch(ctx context.Context, batch domain.XPBatch) (*domain.BatchResult, error)
	ResetFatigue(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error)
}

type PopulationService interface {
	RecordSnapshot(ctx context.Context, snapshot domain.PopulationSnapshot) error
	RecordWorldEvent(ctx context.Context, event domain.WorldEvent) (*domain.WorldEvent, error)
	ComputePopulationDiff(ctx context.Context, cityID string, baselineTs, currentTs time.Time) (*domain.PopulationDiff, error)
}

type ControlService interface {
	EvaluateControlShift(ctx context.Context, regionID domain.ID, ev domain.ControlEvidence) (*domain.ControlShiftResponse, error)
	ListControlHistory(ctx context.Context, regionID domain.ID) ([]domain.ControlShiftEvent, error)
	Region(ctx context.Context, regionID domain.ID) (*domain.RegionControl, error)
}

type OrderService interface {
	ValidateOrder(ctx context.Context, order domain.Order) (*domain.ValidationChecklist, error)
	RegisterSanction(ctx context.Context, sanction domain.Sanction) (*domain.Sanction, error)
}

type CrisisService interface {
	RegisterWorldImpact(ctx context.Context, req crisis.ImpactRequest) (*domain.ImpactResult, error)
	GetPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error)
	AddAction(ctx context.Context, planID domain.ID, description, owner string) (*domain.CrisisMitigationPlan, error)
	TransitionAction(ctx context.Context, planID, actionID domain.ID, op crisis.ActionOp, update crisis.ActionUpdate) (*domain.CrisisMitigationPlan, error)
	CancelPlan(ctx context.Context, planID domain.ID) (*domain.CrisisMitigationPlan, error)
}

type MaintenanceService interface {
	IssueMaintenanceCommand(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error)
	CompleteMaintenance(ctx context.Context, commandID domain.ID) (*domain.MaintenanceCommand, error)
	ListOpen(ctx context.Context) ([]domain.MaintenanceCommand, error)
}

type Services struct {
	Progression ProgressionService
	Population  PopulationService
	Control     ControlService
	Orders      OrderService
	Crisis      CrisisService
	Maintenance MaintenanceService
}

type API struct {
	svc     Services
	schemas schemaSet
}

// NewHandler builds the JSON API. Handlers stay thin: path parsing, schema
// validation, one service call, error mapping.
func NewHandler(svc Services) (http.Handler, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	a := &API{svc: svc, schemas: schemas}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /v1/characters/{characterId}/xp-batches", a.applyXPBatch)
	mux.HandleFunc("POST /v1/characters/{characterId}/skills/{skillId}/fatigue-reset", a.resetFatigue)

	mux.HandleFunc("POST /v1/cities/{cityId}/snapshots", a.recordSnapshot)
	mux.HandleFunc("GET /v1/cities/{cityId}/population-diff", a.populationDiff)
	mux.HandleFunc("POST /v1/world-events", a.recordWorldEvent)

	mux.HandleFunc("GET /v1/regions/{regionId}", a.getRegion)
	mux.HandleFunc("POST /v1/regions/{regionId}/control-shifts", a.evaluateControlShift)
	mux.HandleFunc("GET /v1/regions/{regionId}/control-shifts", a.listControlHistory)

	mux.HandleFunc("POST /v1/orders/{orderId}/validation", a.validateOrder)
	mux.HandleFunc("POST /v1/sanctions", a.registerSanction)

	mux.HandleFunc("POST /v1/world-impacts", a.registerWorldImpact)
	mux.HandleFunc("GET /v1/crisis-plans/{planId}", a.getPlan)
	mux.HandleFunc("POST /v1/crisis-plans/{planId}/actions", a.addAction)
	mux.HandleFunc("POST /v1/crisis-plans/{planId}/actions/{actionId}/{op}", a.transitionAction)
	mux.HandleFunc("POST /v1/crisis-plans/{planId}/cancel", a.cancelPlan)

	mux.HandleFunc("POST /v1/maintenance", a.issueMaintenance)
	mux.HandleFunc("GET /v1/maintenance", a.listMaintenance)
	mux.HandleFunc("POST /v1/maintenance/{commandId}/complete", a.completeMaintenance)

	return instrument(mux), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func instrument(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// ServeMux records the matched pattern on r.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}

func pathID(r *http.Request, name string) (domain.ID, error) {
	raw := r.PathValue(name)
	id, err := domain.ParseID(raw)
	if err != nil {
		return domain.NilID, domain.WithMetadata(domain.CodeInvalidRequest, name+" is not a valid id", map[string]string{name: raw})
	}
	return id, nil
}
