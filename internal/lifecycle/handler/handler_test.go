package handler_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bloodbank/internal/lifecycle/adapters/intake"
	"bloodbank/internal/lifecycle/handler"
	"bloodbank/internal/lifecycle/lifecycletest"
	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/allocation"
	"bloodbank/internal/lifecycle/service/disposition"
	"bloodbank/internal/lifecycle/service/inventory"
	"bloodbank/internal/lifecycle/service/qc"
	"bloodbank/internal/lifecycle/service/quarantine"
	"bloodbank/internal/lifecycle/service/registry"
	"bloodbank/internal/lifecycle/service/separation"
	"bloodbank/internal/lifecycle/service/serology"
	"bloodbank/internal/lifecycle/store/memory"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	env       *lifecycletest.Env
	donations *intake.Directory
	router    http.Handler
	now       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.env = lifecycletest.NewEnv(s.T())
	s.donations = intake.NewDirectory()
	s.now = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	store := s.env.Store

	reg, err := registry.New(store, s.donations, memory.NewSequencer())
	s.Require().NoError(err)
	sero, err := serology.New(store)
	s.Require().NoError(err)
	sep, err := separation.New(store)
	s.Require().NoError(err)
	qcSvc, err := qc.New(store)
	s.Require().NoError(err)
	quar, err := quarantine.New(store)
	s.Require().NoError(err)
	alloc, err := allocation.New(store, 3)
	s.Require().NoError(err)
	disp, err := disposition.New(store)
	s.Require().NoError(err)
	inv, err := inventory.New(store)
	s.Require().NoError(err)

	h := handler.New(handler.Services{
		Registry:    reg,
		Serology:    sero,
		Separation:  sep,
		QC:          qcSvc,
		Quarantine:  quar,
		Allocation:  alloc,
		Disposition: disp,
		Inventory:   inv,
	}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = testutil.NewRequest(s.T(), method, path)
	} else {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	}
	req = testutil.WithPrincipal(req, lifecycletest.Org, lifecycletest.Actor)
	return testutil.DoRequest(s.router, testutil.WithTime(req, s.now))
}

func (s *HandlerSuite) donation() id.DonationID {
	d := models.Donation{
		ID:          id.DonationID(uuid.New()),
		OrgID:       lifecycletest.Org,
		DonorID:     id.DonorID(uuid.New()),
		VolumeML:    450,
		CollectedAt: time.Date(2026, 1, 1, 7, 30, 0, 0, time.UTC),
	}
	s.donations.Put(d)
	return d.ID
}

func (s *HandlerSuite) registerUnit(group string) models.BloodUnit {
	rr := s.do(http.MethodPost, "/v1/units", map[string]any{
		"donation_id":    s.donation().String(),
		"declared_group": group,
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[models.BloodUnit](s.T(), rr)
}

var cleanPanel = map[string]string{
	"hiv": "non_reactive", "hbsag": "non_reactive", "hcv": "non_reactive", "syphilis": "non_reactive",
}

// readyPRC walks a fresh unit to a single QC-approved PRC component.
func (s *HandlerSuite) readyPRC(group string) models.Component {
	unit := s.registerUnit(group)
	rr := s.do(http.MethodPost, "/v1/units/"+unit.ID.String()+"/serology", map[string]any{
		"results":         cleanPanel,
		"confirmed_group": group,
		"verifier_a":      "tech-a",
		"verifier_b":      "tech-b",
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(http.MethodPost, "/v1/units/"+unit.ID.String()+"/components", map[string]any{
		"components": []map[string]any{{"type": "prc", "volume_ml": 200}},
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	list := testutil.UnmarshalResponse[struct {
		Items []models.Component `json:"items"`
	}](s.T(), rr)
	s.Require().Len(list.Items, 1)
	c := list.Items[0]

	rr = s.do(http.MethodPost, "/v1/qc-validations", map[string]any{
		"target":             map[string]string{"kind": "component", "id": c.ID.String()},
		"data_complete":      true,
		"screening_complete": true,
		"custody_complete":   true,
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	testutil.AssertJSONContains(s.T(), rr, "state", "ready_to_use")
	return c
}

func (s *HandlerSuite) TestRegisterAndFetchUnit() {
	unit := s.registerUnit("O+")
	s.Equal(models.StateCollected, unit.State)
	s.Equal("BU-2026-000001", unit.Label)

	rr := s.do(http.MethodGet, "/v1/units/"+unit.ID.String(), nil)
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[models.BloodUnit](s.T(), rr)
	s.Equal(unit.ID, got.ID)
}

func (s *HandlerSuite) TestRejections() {
	s.Run("malformed unit id", func() {
		rr := s.do(http.MethodGet, "/v1/units/not-a-uuid", nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_argument")
	})
	s.Run("unknown unit", func() {
		rr := s.do(http.MethodGet, "/v1/units/"+uuid.NewString(), nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
	s.Run("unknown body field", func() {
		rr := s.do(http.MethodPost, "/v1/units", map[string]any{"donation_id": uuid.NewString(), "colour": "red"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_argument")
	})
	s.Run("duplicate registration", func() {
		donationID := s.donation()
		body := map[string]any{"donation_id": donationID.String(), "declared_group": "A+"}
		s.Equal(http.StatusCreated, s.do(http.MethodPost, "/v1/units", body).Code)
		rr := s.do(http.MethodPost, "/v1/units", body)
		s.Equal(http.StatusConflict, rr.Code)
	})
	s.Run("missing org scope", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/quarantines"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})
	s.Run("bad target kind", func() {
		rr := s.do(http.MethodGet, "/v1/targets/pallet/"+uuid.NewString()+"/history", nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_argument")
	})
}

func (s *HandlerSuite) TestSeparationBeforeSerologyIsInvalidState() {
	unit := s.registerUnit("B+")
	rr := s.do(http.MethodPost, "/v1/units/"+unit.ID.String()+"/components", map[string]any{
		"components": []map[string]any{{"type": "prc", "volume_ml": 200}},
	})
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	body := testutil.UnmarshalResponse[struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}](s.T(), rr)
	s.Equal("invalid_state", body.Error)
	s.Equal("collected", body.Details["current_state"])
}

func (s *HandlerSuite) TestReactiveSerologyOpensQuarantine() {
	unit := s.registerUnit("A-")
	panel := map[string]string{"hiv": "reactive", "hbsag": "non_reactive", "hcv": "non_reactive", "syphilis": "non_reactive"}
	rr := s.do(http.MethodPost, "/v1/units/"+unit.ID.String()+"/serology", map[string]any{"results": panel})
	s.Require().Equal(http.StatusCreated, rr.Code)
	res := testutil.UnmarshalResponse[struct {
		Unit       models.BloodUnit   `json:"unit"`
		Quarantine *models.Quarantine `json:"quarantine"`
	}](s.T(), rr)
	s.Equal(models.StateQuarantine, res.Unit.State)
	s.Require().NotNil(res.Quarantine)

	rr = s.do(http.MethodGet, "/v1/quarantines", nil)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "count", float64(1))

	rr = s.do(http.MethodPost, "/v1/quarantines/"+res.Quarantine.ID.String()+"/resolve", map[string]any{"disposition": "discard"})
	testutil.AssertStatusOK(s.T(), rr)
	resolved := testutil.UnmarshalResponse[struct {
		State   models.UnitState `json:"state"`
		Discard *models.Discard  `json:"discard"`
	}](s.T(), rr)
	s.Equal(models.StateDiscarded, resolved.State)
	s.Require().NotNil(resolved.Discard)

	testutil.AssertJSONContains(s.T(), s.do(http.MethodGet, "/v1/quarantines", nil), "count", float64(0))
}

func (s *HandlerSuite) TestAllocateShipDeliver() {
	c := s.readyPRC("O+")

	rr := s.do(http.MethodGet, "/v1/components?blood_group=O%2B&product_type=prc", nil)
	testutil.AssertJSONContains(s.T(), rr, "count", float64(1))

	rr = s.do(http.MethodPost, "/v1/requests", map[string]any{
		"blood_group": "O+", "product_type": "prc", "quantity": 1, "urgency": "urgent",
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	req := testutil.UnmarshalResponse[models.BloodRequest](s.T(), rr)

	rr = s.do(http.MethodPost, "/v1/requests/"+req.ID.String()+"/allocate", nil)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	alloc := testutil.UnmarshalResponse[struct {
		Issuance     models.Issuance  `json:"issuance"`
		ComponentIDs []id.ComponentID `json:"component_ids"`
	}](s.T(), rr)
	s.Equal([]id.ComponentID{c.ID}, alloc.ComponentIDs)
	issuance := alloc.Issuance.ID.String()

	for _, step := range []string{"pack", "ship"} {
		rr = s.do(http.MethodPost, "/v1/issuances/"+issuance+"/"+step, nil)
		s.Require().Equal(http.StatusOK, rr.Code, step+": "+rr.Body.String())
	}
	rr = s.do(http.MethodPost, "/v1/issuances/"+issuance+"/deliver", map[string]any{"received_by": "Ward 7 nurse"})
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "delivered")

	rr = s.do(http.MethodGet, "/v1/components/"+c.ID.String(), nil)
	testutil.AssertJSONContains(s.T(), rr, "state", "transferred")

	rr = s.do(http.MethodGet, "/v1/targets/component/"+c.ID.String()+"/history", nil)
	testutil.AssertStatusOK(s.T(), rr)
	history := testutil.UnmarshalResponse[struct {
		Items []struct {
			To    string `json:"to"`
			Actor string `json:"actor"`
		} `json:"items"`
	}](s.T(), rr)
	s.Require().NotEmpty(history.Items)
	s.Equal("transferred", history.Items[len(history.Items)-1].To)
	s.Equal(string(lifecycletest.Actor), history.Items[0].Actor)
}

func (s *HandlerSuite) TestShortfallReportsDetails() {
	s.readyPRC("AB-")

	rr := s.do(http.MethodPost, "/v1/requests", map[string]any{
		"blood_group": "AB-", "product_type": "prc", "quantity": 3, "urgency": "routine",
	})
	s.Require().Equal(http.StatusCreated, rr.Code)
	req := testutil.UnmarshalResponse[models.BloodRequest](s.T(), rr)

	rr = s.do(http.MethodPost, "/v1/requests/"+req.ID.String()+"/allocate", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
	body := testutil.UnmarshalResponse[struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}](s.T(), rr)
	s.Equal("insufficient_inventory", body.Error)
	s.EqualValues(3, body.Details["requested"])

	rr = s.do(http.MethodGet, "/v1/components?blood_group=AB-", nil)
	testutil.AssertJSONContains(s.T(), rr, "count", float64(1))
}

func (s *HandlerSuite) TestReturnAndDiscard() {
	c := s.readyPRC("A+")

	rr := s.do(http.MethodPost, "/v1/discards", map[string]any{
		"component_id": c.ID.String(), "reason": "damaged", "details": "bag seam split",
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	d := testutil.UnmarshalResponse[models.Discard](s.T(), rr)

	rr = s.do(http.MethodPost, "/v1/discards/"+d.ID.String()+"/destroy", map[string]any{
		"method": "incineration", "witness": "QA lead",
	})
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONHasKey(s.T(), rr, "destroyed_at")

	rr = s.do(http.MethodPost, "/v1/returns", map[string]any{
		"component_id": c.ID.String(), "source": "ward", "reason": "unused",
	})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "invalid_state")
}

func (s *HandlerSuite) TestEmptyListsEncodeAsArrays() {
	rr := s.do(http.MethodGet, "/v1/components/expiring?days=5", nil)
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"items":[],"count":0}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/v1/components/expiring?days=-1", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_argument")
}

