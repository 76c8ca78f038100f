package handler

import (
	"net/http"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/disposition"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/httputil"
)

type processReturnResponse struct {
	Return  *models.Return   `json:"return"`
	State   models.UnitState `json:"state"`
	Discard *models.Discard  `json:"discard,omitempty"`
}

func (h *Handler) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "create_return", err)
		return
	}
	componentID, err := id.ParseComponentID(req.ComponentID)
	if err != nil {
		h.fail(w, r, "create_return", err)
		return
	}
	ret, err := h.svc.Disposition.CreateReturn(r.Context(), disposition.ReturnRequest{
		ComponentID: componentID,
		Source:      req.Source,
		Reason:      req.Reason,
	})
	if err != nil {
		h.fail(w, r, "create_return", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ret)
}

func (h *Handler) handleProcessReturn(w http.ResponseWriter, r *http.Request) {
	returnID, err := id.ParseReturnID(urlParam(r, "returnID"))
	if err != nil {
		h.fail(w, r, "process_return", err)
		return
	}
	var req processReturnRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "process_return", err)
		return
	}
	res, err := h.svc.Disposition.ProcessReturn(r.Context(), disposition.ProcessReturnRequest{
		ReturnID: returnID,
		QCPass:   req.QCPass,
		Decision: req.Decision,
	})
	if err != nil {
		h.fail(w, r, "process_return", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, processReturnResponse{
		Return:  res.Return,
		State:   res.State,
		Discard: res.Discard,
	})
}

func (h *Handler) handleCreateDiscard(w http.ResponseWriter, r *http.Request) {
	var req createDiscardRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "create_discard", err)
		return
	}
	componentID, err := id.ParseComponentID(req.ComponentID)
	if err != nil {
		h.fail(w, r, "create_discard", err)
		return
	}
	d, err := h.svc.Disposition.CreateDiscard(r.Context(), disposition.DiscardRequest{
		ComponentID: componentID,
		Reason:      req.Reason,
		Details:     req.Details,
	})
	if err != nil {
		h.fail(w, r, "create_discard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	discardID, err := id.ParseDiscardID(urlParam(r, "discardID"))
	if err != nil {
		h.fail(w, r, "mark_destroyed", err)
		return
	}
	var req destroyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "mark_destroyed", err)
		return
	}
	d, err := h.svc.Disposition.MarkDestroyed(r.Context(), disposition.DestroyRequest{
		DiscardID: discardID,
		Method:    req.Method,
		Witness:   req.Witness,
	})
	if err != nil {
		h.fail(w, r, "mark_destroyed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}
