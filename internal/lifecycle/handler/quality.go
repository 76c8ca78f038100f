package handler

import (
	"net/http"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/qc"
	"bloodbank/internal/lifecycle/service/quarantine"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/httputil"
)

type qcResponse struct {
	Validation *models.QCValidation `json:"validation"`
	State      models.UnitState     `json:"state"`
}

type resolveResponse struct {
	Quarantine *models.Quarantine `json:"quarantine"`
	State      models.UnitState   `json:"state"`
	Discard    *models.Discard    `json:"discard,omitempty"`
}

func (h *Handler) handleValidateQC(w http.ResponseWriter, r *http.Request) {
	var req validateQCRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "validate_qc", err)
		return
	}
	target, err := req.Target.parse()
	if err != nil {
		h.fail(w, r, "validate_qc", err)
		return
	}
	res, err := h.svc.QC.Validate(r.Context(), qc.ValidateRequest{
		Target:            target,
		DataComplete:      req.DataComplete,
		ScreeningComplete: req.ScreeningComplete,
		CustodyComplete:   req.CustodyComplete,
	})
	if err != nil {
		h.fail(w, r, "validate_qc", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, qcResponse{Validation: res.Validation, State: res.State})
}

func (h *Handler) handleListQCValidations(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(urlParam(r, "kind"), urlParam(r, "targetID"))
	if err != nil {
		h.fail(w, r, "list_qc_validations", err)
		return
	}
	validations, err := h.svc.Inventory.ListQCValidations(r.Context(), target)
	if err != nil {
		h.fail(w, r, "list_qc_validations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(validations))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(urlParam(r, "kind"), urlParam(r, "targetID"))
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}
	events, err := h.svc.Inventory.History(r.Context(), target)
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(toEventResponses(events)))
}

func (h *Handler) handlePlaceQuarantine(w http.ResponseWriter, r *http.Request) {
	var req placeQuarantineRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "place_quarantine", err)
		return
	}
	target, err := req.Target.parse()
	if err != nil {
		h.fail(w, r, "place_quarantine", err)
		return
	}
	q, err := h.svc.Quarantine.Place(r.Context(), quarantine.PlaceRequest{
		Target: target,
		Reason: req.Reason,
		Notes:  req.Notes,
	})
	if err != nil {
		h.fail(w, r, "place_quarantine", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleListOpenQuarantines(w http.ResponseWriter, r *http.Request) {
	open, err := h.svc.Quarantine.ListOpen(r.Context())
	if err != nil {
		h.fail(w, r, "list_quarantines", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(open))
}

func (h *Handler) handleResolveQuarantine(w http.ResponseWriter, r *http.Request) {
	quarantineID, err := id.ParseQuarantineID(urlParam(r, "quarantineID"))
	if err != nil {
		h.fail(w, r, "resolve_quarantine", err)
		return
	}
	var req resolveQuarantineRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "resolve_quarantine", err)
		return
	}
	res, err := h.svc.Quarantine.Resolve(r.Context(), quarantine.ResolveRequest{
		QuarantineID: quarantineID,
		RetestResult: req.RetestResult,
		Disposition:  req.Disposition,
	})
	if err != nil {
		h.fail(w, r, "resolve_quarantine", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolveResponse{
		Quarantine: res.Quarantine,
		State:      res.State,
		Discard:    res.Discard,
	})
}
