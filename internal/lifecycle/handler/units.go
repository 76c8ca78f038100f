package handler

import (
	"net/http"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/inventory"
	"bloodbank/internal/lifecycle/service/registry"
	"bloodbank/internal/lifecycle/service/separation"
	"bloodbank/internal/lifecycle/service/serology"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/httputil"
)

type serologyResponse struct {
	LabTest    *models.LabTest    `json:"lab_test"`
	Unit       *models.BloodUnit  `json:"unit"`
	Quarantine *models.Quarantine `json:"quarantine,omitempty"`
}

func (h *Handler) handleRegisterUnit(w http.ResponseWriter, r *http.Request) {
	var req registerUnitRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "register_unit", err)
		return
	}
	donationID, err := id.ParseDonationID(req.DonationID)
	if err != nil {
		h.fail(w, r, "register_unit", err)
		return
	}
	unit, err := h.svc.Registry.RegisterUnit(r.Context(), registry.RegisterRequest{
		DonationID:      donationID,
		DeclaredGroup:   models.BloodGroup(req.DeclaredGroup),
		VolumeML:        req.VolumeML,
		StorageLocation: req.StorageLocation,
	})
	if err != nil {
		h.fail(w, r, "register_unit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, unit)
}

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(urlParam(r, "unitID"))
	if err != nil {
		h.fail(w, r, "get_unit", err)
		return
	}
	unit, err := h.svc.Inventory.GetUnit(r.Context(), unitID)
	if err != nil {
		h.fail(w, r, "get_unit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) handleRecordSerology(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(urlParam(r, "unitID"))
	if err != nil {
		h.fail(w, r, "record_serology", err)
		return
	}
	var req recordSerologyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "record_serology", err)
		return
	}
	verifierA, err := optionalActor(req.VerifierA)
	if err != nil {
		h.fail(w, r, "record_serology", err)
		return
	}
	verifierB, err := optionalActor(req.VerifierB)
	if err != nil {
		h.fail(w, r, "record_serology", err)
		return
	}
	res, err := h.svc.Serology.RecordSerology(r.Context(), serology.RecordRequest{
		UnitID:         unitID,
		Results:        req.Results,
		ConfirmedGroup: req.ConfirmedGroup,
		VerifierA:      verifierA,
		VerifierB:      verifierB,
		Method:         req.Method,
	})
	if err != nil {
		h.fail(w, r, "record_serology", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, serologyResponse{
		LabTest:    res.LabTest,
		Unit:       res.Unit,
		Quarantine: res.Quarantine,
	})
}

func (h *Handler) handleListLabTests(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(urlParam(r, "unitID"))
	if err != nil {
		h.fail(w, r, "list_lab_tests", err)
		return
	}
	tests, err := h.svc.Inventory.ListLabTests(r.Context(), unitID)
	if err != nil {
		h.fail(w, r, "list_lab_tests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(tests))
}

func (h *Handler) handleSeparate(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(urlParam(r, "unitID"))
	if err != nil {
		h.fail(w, r, "separate", err)
		return
	}
	var req separateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "separate", err)
		return
	}
	reqs := make([]separation.ComponentRequest, 0, len(req.Components))
	for _, c := range req.Components {
		reqs = append(reqs, separation.ComponentRequest{Type: c.Type, VolumeML: c.VolumeML})
	}
	components, err := h.svc.Separation.Separate(r.Context(), unitID, reqs)
	if err != nil {
		h.fail(w, r, "separate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, newList(components))
}

func (h *Handler) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	componentID, err := id.ParseComponentID(urlParam(r, "componentID"))
	if err != nil {
		h.fail(w, r, "get_component", err)
		return
	}
	component, err := h.svc.Inventory.GetComponent(r.Context(), componentID)
	if err != nil {
		h.fail(w, r, "get_component", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, component)
}

// handleListFEFO lists components in issue order. Filters come from the query string.
func (h *Handler) handleListFEFO(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.fail(w, r, "list_fefo", err)
		return
	}
	q := r.URL.Query()
	components, err := h.svc.Inventory.ListFEFO(r.Context(), inventory.FEFOQuery{
		BloodGroup:  q.Get("blood_group"),
		ProductType: q.Get("product_type"),
		State:       q.Get("state"),
		Limit:       limit,
	})
	if err != nil {
		h.fail(w, r, "list_fefo", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(components))
}

func (h *Handler) handleListExpiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 3)
	if err != nil {
		h.fail(w, r, "list_expiring", err)
		return
	}
	components, err := h.svc.Inventory.ListExpiringSoon(r.Context(), days)
	if err != nil {
		h.fail(w, r, "list_expiring", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(components))
}
