// Package handler exposes the lifecycle services over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/allocation"
	"bloodbank/internal/lifecycle/service/disposition"
	"bloodbank/internal/lifecycle/service/inventory"
	"bloodbank/internal/lifecycle/service/qc"
	"bloodbank/internal/lifecycle/service/quarantine"
	"bloodbank/internal/lifecycle/service/registry"
	"bloodbank/internal/lifecycle/service/separation"
	"bloodbank/internal/lifecycle/service/serology"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/platform/httputil"
	"bloodbank/pkg/requestcontext"
)

type UnitRegistry interface {
	RegisterUnit(ctx context.Context, req registry.RegisterRequest) (*models.BloodUnit, error)
}

type SerologyRecorder interface {
	RecordSerology(ctx context.Context, req serology.RecordRequest) (*serology.Result, error)
}

type Separator interface {
	Separate(ctx context.Context, unitID id.UnitID, reqs []separation.ComponentRequest) ([]*models.Component, error)
}

type QCValidator interface {
	Validate(ctx context.Context, req qc.ValidateRequest) (*qc.ValidateResult, error)
}

type QuarantineService interface {
	Place(ctx context.Context, req quarantine.PlaceRequest) (*models.Quarantine, error)
	Resolve(ctx context.Context, req quarantine.ResolveRequest) (*quarantine.ResolveResult, error)
	ListOpen(ctx context.Context) ([]*models.Quarantine, error)
}

type AllocationService interface {
	SubmitRequest(ctx context.Context, in allocation.SubmitRequest) (*models.BloodRequest, error)
	Allocate(ctx context.Context, requestID id.BloodRequestID) (*allocation.Allocation, error)
	ReleaseReservation(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error)
}

type DispositionService interface {
	Pack(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error)
	Ship(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error)
	Deliver(ctx context.Context, issuanceID id.IssuanceID, receivedBy string) (*models.Issuance, error)
	CreateReturn(ctx context.Context, req disposition.ReturnRequest) (*models.Return, error)
	ProcessReturn(ctx context.Context, req disposition.ProcessReturnRequest) (*disposition.ProcessReturnResult, error)
	CreateDiscard(ctx context.Context, req disposition.DiscardRequest) (*models.Discard, error)
	MarkDestroyed(ctx context.Context, req disposition.DestroyRequest) (*models.Discard, error)
}

type InventoryReader interface {
	GetUnit(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error)
	GetComponent(ctx context.Context, componentID id.ComponentID) (*models.Component, error)
	ListFEFO(ctx context.Context, q inventory.FEFOQuery) ([]*models.Component, error)
	ListExpiringSoon(ctx context.Context, days int) ([]*models.Component, error)
	ListLabTests(ctx context.Context, unitID id.UnitID) ([]*models.LabTest, error)
	ListQCValidations(ctx context.Context, target models.Target) ([]*models.QCValidation, error)
	History(ctx context.Context, target models.Target) ([]audit.TransitionEvent, error)
}

// Services groups the lifecycle operations the handler serves.
type Services struct {
	Registry    UnitRegistry
	Serology    SerologyRecorder
	Separation  Separator
	QC          QCValidator
	Quarantine  QuarantineService
	Allocation  AllocationService
	Disposition DispositionService
	Inventory   InventoryReader
}

// Handler serves the /v1 lifecycle API.
type Handler struct {
	svc    Services
	logger *slog.Logger
}

func New(svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the lifecycle routes under /v1. Authentication is applied
// by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/units", h.handleRegisterUnit)
		r.Get("/units/{unitID}", h.handleGetUnit)
		r.Post("/units/{unitID}/serology", h.handleRecordSerology)
		r.Get("/units/{unitID}/lab-tests", h.handleListLabTests)
		r.Post("/units/{unitID}/components", h.handleSeparate)

		r.Get("/components", h.handleListFEFO)
		r.Get("/components/expiring", h.handleListExpiring)
		r.Get("/components/{componentID}", h.handleGetComponent)

		r.Post("/qc-validations", h.handleValidateQC)
		r.Get("/targets/{kind}/{targetID}/qc-validations", h.handleListQCValidations)
		r.Get("/targets/{kind}/{targetID}/history", h.handleHistory)

		r.Post("/quarantines", h.handlePlaceQuarantine)
		r.Get("/quarantines", h.handleListOpenQuarantines)
		r.Post("/quarantines/{quarantineID}/resolve", h.handleResolveQuarantine)

		r.Post("/requests", h.handleSubmitRequest)
		r.Post("/requests/{requestID}/allocate", h.handleAllocate)

		r.Post("/issuances/{issuanceID}/release", h.issuanceStep("release_reservation", h.svc.Allocation.ReleaseReservation))
		r.Post("/issuances/{issuanceID}/pack", h.issuanceStep("pack", h.svc.Disposition.Pack))
		r.Post("/issuances/{issuanceID}/ship", h.issuanceStep("ship", h.svc.Disposition.Ship))
		r.Post("/issuances/{issuanceID}/deliver", h.handleDeliver)

		r.Post("/returns", h.handleCreateReturn)
		r.Post("/returns/{returnID}/process", h.handleProcessReturn)

		r.Post("/discards", h.handleCreateDiscard)
		r.Post("/discards/{discardID}/destroy", h.handleDestroy)
	})
}

// fail logs and writes err. Caller mistakes log at warn, everything else at error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := []any{
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"org_id", requestcontext.OrgID(ctx).String(),
		"error", err.Error(),
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, "lifecycle request failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "lifecycle request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
