// Package serology records infectious-disease screening panels and gates
// units on the aggregate outcome.
package serology

import (
	"context"
	"sort"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/requestcontext"
)

type Service struct {
	shared.Base
}

func New(store ports.Store, opts ...shared.Option) (*Service, error) {
	base, err := shared.NewBase(store, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{Base: base}, nil
}

// RecordRequest carries one panel as received from the lab. Keys and values
// are validated against the closed analyte and result sets.
type RecordRequest struct {
	UnitID         id.UnitID
	Results        map[string]string
	ConfirmedGroup string
	VerifierA      id.ActorID
	VerifierB      id.ActorID
	Method         string
}

// Result is what RecordSerology did to the unit.
type Result struct {
	LabTest    *models.LabTest
	Unit       *models.BloodUnit
	Quarantine *models.Quarantine
}

// RecordSerology appends a lab test and applies its aggregate outcome.
// non_reactive clears a collected unit into lab, reactive and gray
// quarantine it, pending leaves it where it is.
func (s *Service) RecordSerology(ctx context.Context, req RecordRequest) (*Result, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	results, err := parseResults(req.Results)
	if err != nil {
		return nil, err
	}
	var confirmed models.BloodGroup
	if req.ConfirmedGroup != "" {
		confirmed, err = models.ParseBloodGroup(req.ConfirmedGroup)
		if err != nil {
			return nil, err
		}
		if !req.VerifierA.IsZero() && req.VerifierA == req.VerifierB {
			return nil, dErrors.New(dErrors.CodeInvalidArgument, "blood group confirmation needs two distinct verifiers").
				WithDetail("verifier", string(req.VerifierA))
		}
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.ActorID(ctx)
	test := &models.LabTest{
		ID:             id.NewLabTestID(),
		UnitID:         req.UnitID,
		Results:        results,
		ConfirmedGroup: confirmed,
		VerifierA:      req.VerifierA,
		VerifierB:      req.VerifierB,
		Outcome:        models.AggregateOutcome(results),
		Method:         req.Method,
		TestedAt:       now,
		RecordedBy:     actor,
	}

	res := &Result{LabTest: test}
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		unit, err := repos.Units.Get(ctx, req.UnitID)
		if err != nil {
			return shared.Translate(err, "unit")
		}
		if err := checkTestable(unit); err != nil {
			return err
		}
		if err := repos.LabTests.Create(ctx, test); err != nil {
			return shared.Translate(err, "lab test")
		}

		from := unit.State
		target := models.UnitTarget(unit.ID)
		dirty := false
		switch {
		case test.Outcome == models.OutcomeNonReactive:
			if unit.State == models.StateCollected {
				if err := unit.TransitionTo(models.StateLab, now); err != nil {
					return err
				}
				dirty = true
			}
			if test.HasDualVerification() && confirmed != "" {
				unit.ConfirmedGroup = confirmed
				unit.UpdatedAt = now
				dirty = true
			}
		case test.Outcome.Blocks():
			if err := unit.TransitionTo(models.StateQuarantine, now); err != nil {
				return err
			}
			q := models.NewQuarantine(org, target, test.Outcome.QuarantineReason(), from, actor, now)
			if err := repos.Quarantines.Create(ctx, q); err != nil {
				return shared.Translate(err, "quarantine")
			}
			res.Quarantine = q
			dirty = true
		}
		if dirty {
			if err := repos.Units.Update(ctx, unit); err != nil {
				return shared.Translate(err, "unit")
			}
		}
		res.Unit = unit

		if err := journal.Move(ctx, repos, target, from, unit.State, audit.ActionSerologyRecorded, string(test.Outcome)); err != nil {
			return err
		}
		if res.Quarantine != nil {
			return journal.Record(ctx, repos, shared.KindQuarantine, res.Quarantine.ID.String(),
				"", "open", audit.ActionQuarantinePlaced, string(res.Quarantine.Reason))
		}
		return nil
	})
	if err != nil {
		return nil, shared.Translate(err, "unit")
	}

	journal.Committed(ctx)
	if res.Quarantine != nil && s.Metrics != nil {
		s.Metrics.IncrementQuarantine(string(res.Quarantine.Reason))
	}
	return res, nil
}

// checkTestable enforces that serology precedes separation.
func checkTestable(unit *models.BloodUnit) error {
	if unit.State.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidState, "unit is "+string(unit.State)).
			WithDetail("current_state", unit.State)
	}
	if unit.State != models.StateCollected && unit.State != models.StateLab {
		return dErrors.New(dErrors.CodeConflict, "serology must be recorded before separation").
			WithDetail("current_state", unit.State)
	}
	return nil
}

func parseResults(raw map[string]string) (map[models.Analyte]models.AnalyteResult, error) {
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "at least one analyte result is required")
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[models.Analyte]models.AnalyteResult, len(raw))
	for _, k := range keys {
		analyte, err := models.ParseAnalyte(k)
		if err != nil {
			return nil, err
		}
		result, err := models.ParseAnalyteResult(raw[k])
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidArgument, "invalid result for "+k).
				WithDetail("analyte", k).
				WithDetail("result", raw[k])
		}
		out[analyte] = result
	}
	return out, nil
}
