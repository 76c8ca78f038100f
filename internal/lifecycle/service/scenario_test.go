package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bloodbank/internal/lifecycle/adapters/intake"
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
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
)

// ScenarioSuite drives whole lifecycles through the public services.
type ScenarioSuite struct {
	suite.Suite
	env         *lifecycletest.Env
	donations   *intake.Directory
	registry    *registry.Service
	serology    *serology.Service
	separation  *separation.Service
	qc          *qc.Service
	quarantine  *quarantine.Service
	allocation  *allocation.Service
	disposition *disposition.Service
	inventory   *inventory.Service
}

func TestScenarioSuite(t *testing.T) {
	suite.Run(t, new(ScenarioSuite))
}

func (s *ScenarioSuite) SetupTest() {
	s.env = lifecycletest.NewEnv(s.T())
	s.donations = intake.NewDirectory()
	store := s.env.Store

	var err error
	s.registry, err = registry.New(store, s.donations, memory.NewSequencer())
	s.Require().NoError(err)
	s.serology, err = serology.New(store)
	s.Require().NoError(err)
	s.separation, err = separation.New(store)
	s.Require().NoError(err)
	s.qc, err = qc.New(store)
	s.Require().NoError(err)
	s.quarantine, err = quarantine.New(store)
	s.Require().NoError(err)
	s.allocation, err = allocation.New(store, 0)
	s.Require().NoError(err)
	s.disposition, err = disposition.New(store)
	s.Require().NoError(err)
	s.inventory, err = inventory.New(store)
	s.Require().NoError(err)
}

func at(day int) context.Context {
	return lifecycletest.Context(time.Date(2026, 1, day, 9, 0, 0, 0, time.UTC))
}

func (s *ScenarioSuite) register(group string) *models.BloodUnit {
	donation := models.Donation{
		ID:          id.DonationID(uuid.New()),
		OrgID:       lifecycletest.Org,
		DonorID:     id.DonorID(uuid.New()),
		VolumeML:    450,
		CollectedAt: time.Date(2026, 1, 1, 7, 30, 0, 0, time.UTC),
	}
	s.donations.Put(donation)
	unit, err := s.registry.RegisterUnit(at(1), registry.RegisterRequest{
		DonationID:    donation.ID,
		DeclaredGroup: models.BloodGroup(group),
	})
	s.Require().NoError(err)
	return unit
}

func panel(hiv string) map[string]string {
	return map[string]string{"hiv": hiv, "hbsag": "non_reactive", "hcv": "non_reactive", "syphilis": "non_reactive"}
}

func (s *ScenarioSuite) TestCleanUnitFromCollectionToShipment() {
	unit := s.register("O+")
	s.Equal(models.StateCollected, unit.State)
	s.Equal("BU-2026-000001", unit.Label)

	res, err := s.serology.RecordSerology(at(2), serology.RecordRequest{
		UnitID:         unit.ID,
		Results:        panel("non_reactive"),
		ConfirmedGroup: "O+",
		VerifierA:      "tech-a",
		VerifierB:      "tech-b",
	})
	s.Require().NoError(err)
	s.Equal(models.StateLab, res.Unit.State)
	s.Equal(models.GroupOPos, res.Unit.ConfirmedGroup)

	components, err := s.separation.Separate(at(2), unit.ID, []separation.ComponentRequest{
		{Type: "prc", VolumeML: 200},
		{Type: "ffp", VolumeML: 150},
	})
	s.Require().NoError(err)
	prc, ffp := components[0], components[1]
	s.Equal(models.StateProcessing, prc.State)
	s.Equal(models.StateProcessing, ffp.State)
	s.Equal("2026-02-12", prc.ExpiresAt.Format(time.DateOnly))
	s.Equal("2027-01-01", ffp.ExpiresAt.Format(time.DateOnly))

	for _, c := range components {
		v, err := s.qc.Validate(at(3), qc.ValidateRequest{
			Target:            models.ComponentTarget(c.ID),
			DataComplete:      true,
			ScreeningComplete: true,
			CustodyComplete:   true,
		})
		s.Require().NoError(err)
		s.Equal(models.StateReadyToUse, v.State)
	}

	req, err := s.allocation.SubmitRequest(at(4), allocation.SubmitRequest{BloodGroup: "O+", ProductType: "prc", Quantity: 1})
	s.Require().NoError(err)
	alloc, err := s.allocation.Allocate(at(4), req.ID)
	s.Require().NoError(err)
	s.Equal([]id.ComponentID{prc.ID}, alloc.ComponentIDs)
	s.Equal(models.IssuancePicking, alloc.Issuance.Status)

	got, err := s.inventory.GetComponent(at(4), prc.ID)
	s.Require().NoError(err)
	s.Equal(models.StateReserved, got.State)

	_, err = s.disposition.Ship(at(4), alloc.Issuance.ID)
	s.Require().NoError(err)
	got, err = s.inventory.GetComponent(at(4), prc.ID)
	s.Require().NoError(err)
	s.Equal(models.StateIssued, got.State)

	history, err := s.inventory.History(at(5), models.ComponentTarget(prc.ID))
	s.Require().NoError(err)
	s.assertValidWalk(history)
	var trajectory []string
	for _, e := range history {
		if e.IsStateChange() {
			trajectory = append(trajectory, e.To)
		}
	}
	s.Equal([]string{"processing", "ready_to_use", "reserved", "issued"}, trajectory)
}

func (s *ScenarioSuite) TestReactiveUnitIsDiscardedAndCannotBeSeparated() {
	unit := s.register("A+")

	res, err := s.serology.RecordSerology(at(2), serology.RecordRequest{UnitID: unit.ID, Results: panel("reactive")})
	s.Require().NoError(err)
	s.Equal(models.StateQuarantine, res.Unit.State)
	s.Require().NotNil(res.Quarantine)
	s.Equal(models.QuarantineReactive, res.Quarantine.Reason)

	resolved, err := s.quarantine.Resolve(at(3), quarantine.ResolveRequest{QuarantineID: res.Quarantine.ID, Disposition: "discard"})
	s.Require().NoError(err)
	s.Equal(models.StateDiscarded, resolved.State)
	s.Require().NotNil(resolved.Discard)
	s.Equal(models.DiscardReactive, resolved.Discard.Reason)

	_, err = s.separation.Separate(at(4), unit.ID, []separation.ComponentRequest{{Type: "prc", VolumeML: 200}})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	got, err := s.inventory.GetUnit(at(4), unit.ID)
	s.Require().NoError(err)
	s.Equal(models.StateDiscarded, got.State)
}

func (s *ScenarioSuite) TestNoReadyWithoutApprovedQC() {
	unit := s.register("B+")
	_, err := s.serology.RecordSerology(at(2), serology.RecordRequest{UnitID: unit.ID, Results: panel("non_reactive")})
	s.Require().NoError(err)
	components, err := s.separation.Separate(at(2), unit.ID, []separation.ComponentRequest{{Type: "prc", VolumeML: 200}})
	s.Require().NoError(err)
	c := components[0]

	held, err := s.qc.Validate(at(3), qc.ValidateRequest{Target: models.ComponentTarget(c.ID), DataComplete: true})
	s.Require().NoError(err)
	s.Equal(models.StateProcessing, held.State)
	s.Equal("screening incomplete; custody incomplete", held.Validation.HoldReason)

	req, err := s.allocation.SubmitRequest(at(3), allocation.SubmitRequest{BloodGroup: "B+", ProductType: "prc", Quantity: 1})
	s.Require().NoError(err)
	_, err = s.allocation.Allocate(at(3), req.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientInventory))

	history, err := s.inventory.History(at(3), models.ComponentTarget(c.ID))
	s.Require().NoError(err)
	s.assertValidWalk(history)
	for _, e := range history {
		s.NotEqual(string(models.StateReadyToUse), e.To)
	}
}

func (s *ScenarioSuite) TestReturnedComponentRoundTrip() {
	unit := s.register("AB-")
	_, err := s.serology.RecordSerology(at(2), serology.RecordRequest{UnitID: unit.ID, Results: panel("non_reactive")})
	s.Require().NoError(err)
	components, err := s.separation.Separate(at(2), unit.ID, []separation.ComponentRequest{{Type: "prc", VolumeML: 250}})
	s.Require().NoError(err)
	c := components[0]
	_, err = s.qc.Validate(at(3), qc.ValidateRequest{Target: models.ComponentTarget(c.ID), DataComplete: true, ScreeningComplete: true, CustodyComplete: true})
	s.Require().NoError(err)

	req, err := s.allocation.SubmitRequest(at(3), allocation.SubmitRequest{BloodGroup: "AB-", ProductType: "prc", Quantity: 1, Urgency: "urgent"})
	s.Require().NoError(err)
	alloc, err := s.allocation.Allocate(at(3), req.ID)
	s.Require().NoError(err)
	_, err = s.disposition.Pack(at(3), alloc.Issuance.ID)
	s.Require().NoError(err)
	_, err = s.disposition.Ship(at(3), alloc.Issuance.ID)
	s.Require().NoError(err)

	ret, err := s.disposition.CreateReturn(at(4), disposition.ReturnRequest{ComponentID: c.ID, Source: "theatre 2", Reason: "surgery cancelled"})
	s.Require().NoError(err)
	processed, err := s.disposition.ProcessReturn(at(4), disposition.ProcessReturnRequest{ReturnID: ret.ID, QCPass: true, Decision: "accept"})
	s.Require().NoError(err)
	s.Equal(models.StateReadyToUse, processed.State)

	history, err := s.inventory.History(at(5), models.ComponentTarget(c.ID))
	s.Require().NoError(err)
	s.assertValidWalk(history)
}

// assertValidWalk checks that consecutive state changes follow graph edges.
func (s *ScenarioSuite) assertValidWalk(history []audit.TransitionEvent) {
	s.T().Helper()
	prev := ""
	for _, e := range history {
		if !e.IsStateChange() {
			continue
		}
		s.Equal(prev, e.From, "event %s does not continue from %q", e.Action, prev)
		if e.From != "" {
			s.True(models.CanTransition(models.UnitState(e.From), models.UnitState(e.To)),
				"%s -> %s is not an edge", e.From, e.To)
		}
		prev = e.To
	}
}
