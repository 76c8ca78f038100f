package handler

import (
	"context"
	"net/http"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/allocation"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/httputil"
)

type allocationResponse struct {
	Issuance     *models.Issuance `json:"issuance"`
	ComponentIDs []id.ComponentID `json:"component_ids"`
}

func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req submitRequestRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "submit_request", err)
		return
	}
	created, err := h.svc.Allocation.SubmitRequest(r.Context(), allocation.SubmitRequest{
		BloodGroup:  req.BloodGroup,
		ProductType: req.ProductType,
		Quantity:    req.Quantity,
		Urgency:     req.Urgency,
		RequiredBy:  req.RequiredBy,
	})
	if err != nil {
		h.fail(w, r, "submit_request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseBloodRequestID(urlParam(r, "requestID"))
	if err != nil {
		h.fail(w, r, "allocate", err)
		return
	}
	alloc, err := h.svc.Allocation.Allocate(r.Context(), requestID)
	if err != nil {
		h.fail(w, r, "allocate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, allocationResponse{
		Issuance:     alloc.Issuance,
		ComponentIDs: alloc.ComponentIDs,
	})
}

// issuanceStep serves the issuance transitions that take no body.
func (h *Handler) issuanceStep(op string, step func(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issuanceID, err := id.ParseIssuanceID(urlParam(r, "issuanceID"))
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		iss, err := step(r.Context(), issuanceID)
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, iss)
	}
}

func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	issuanceID, err := id.ParseIssuanceID(urlParam(r, "issuanceID"))
	if err != nil {
		h.fail(w, r, "deliver", err)
		return
	}
	var req deliverRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "deliver", err)
		return
	}
	iss, err := h.svc.Disposition.Deliver(r.Context(), issuanceID, req.ReceivedBy)
	if err != nil {
		h.fail(w, r, "deliver", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, iss)
}
