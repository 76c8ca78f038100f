package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"bloodbank/internal/lifecycle/models"
	id "bloodbank/pkg/domain"
)

type labTestRepo struct{ repo }

func (r *labTestRepo) Create(ctx context.Context, lt *models.LabTest) error {
	lt.OrgID = r.org
	results, err := json.Marshal(lt.Results)
	if err != nil {
		return fmt.Errorf("marshal lab results: %w", err)
	}
	_, err = r.exec(ctx).ExecContext(ctx, `
		INSERT INTO lab_tests (
			id, org_id, unit_id, results, confirmed_group, verifier_a, verifier_b,
			outcome, method, tested_at, recorded_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(lt.ID), string(lt.OrgID), uuid.UUID(lt.UnitID), results,
		string(lt.ConfirmedGroup), string(lt.VerifierA), string(lt.VerifierB),
		string(lt.Outcome), lt.Method, lt.TestedAt, string(lt.RecordedBy),
	)
	return classify(err, "insert lab test")
}

func (r *labTestRepo) ListByUnit(ctx context.Context, unitID id.UnitID) ([]*models.LabTest, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, `
		SELECT id, org_id, unit_id, results, confirmed_group, verifier_a, verifier_b,
		       outcome, method, tested_at, recorded_by
		FROM lab_tests
		WHERE org_id = $1 AND unit_id = $2
		ORDER BY tested_at ASC
	`, string(r.org), uuid.UUID(unitID))
	if err != nil {
		return nil, classify(err, "query lab tests")
	}
	defer rows.Close()

	var out []*models.LabTest
	for rows.Next() {
		var lt models.LabTest
		var testID, unit uuid.UUID
		var org, confirmed, verifierA, verifierB, outcome, recordedBy string
		var results []byte
		if err := rows.Scan(
			&testID, &org, &unit, &results, &confirmed, &verifierA, &verifierB,
			&outcome, &lt.Method, &lt.TestedAt, &recordedBy,
		); err != nil {
			return nil, fmt.Errorf("scan lab test: %w", err)
		}
		if err := json.Unmarshal(results, &lt.Results); err != nil {
			return nil, fmt.Errorf("unmarshal lab results: %w", err)
		}
		lt.ID = id.LabTestID(testID)
		lt.OrgID = id.OrgID(org)
		lt.UnitID = id.UnitID(unit)
		lt.ConfirmedGroup = models.BloodGroup(confirmed)
		lt.VerifierA = id.ActorID(verifierA)
		lt.VerifierB = id.ActorID(verifierB)
		lt.Outcome = models.SerologyOutcome(outcome)
		lt.RecordedBy = id.ActorID(recordedBy)
		out = append(out, &lt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab tests: %w", err)
	}
	return out, nil
}

type qcRepo struct{ repo }

func (r *qcRepo) Create(ctx context.Context, v *models.QCValidation) error {
	v.OrgID = r.org
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO qc_validations (
			id, org_id, target_kind, target_id, data_complete, screening_complete,
			custody_complete, status, hold_reason, validated_by, validated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(v.ID), string(v.OrgID), string(v.Target.Kind), v.Target.ID,
		v.DataComplete, v.ScreeningComplete, v.CustodyComplete, string(v.Status),
		v.HoldReason, string(v.ValidatedBy), v.ValidatedAt,
	)
	return classify(err, "insert qc validation")
}

// ListByTarget returns validations newest first.
func (r *qcRepo) ListByTarget(ctx context.Context, target models.Target) ([]*models.QCValidation, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, `
		SELECT id, org_id, target_kind, target_id, data_complete, screening_complete,
		       custody_complete, status, hold_reason, validated_by, validated_at
		FROM qc_validations
		WHERE org_id = $1 AND target_kind = $2 AND target_id = $3
		ORDER BY validated_at DESC
	`, string(r.org), string(target.Kind), target.ID)
	if err != nil {
		return nil, classify(err, "query qc validations")
	}
	defer rows.Close()

	var out []*models.QCValidation
	for rows.Next() {
		var v models.QCValidation
		var validationID uuid.UUID
		var org, kind, status, validatedBy string
		if err := rows.Scan(
			&validationID, &org, &kind, &v.Target.ID, &v.DataComplete, &v.ScreeningComplete,
			&v.CustodyComplete, &status, &v.HoldReason, &validatedBy, &v.ValidatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan qc validation: %w", err)
		}
		v.ID = id.QCValidationID(validationID)
		v.OrgID = id.OrgID(org)
		v.Target.Kind = models.TargetKind(kind)
		v.Status = models.QCStatus(status)
		v.ValidatedBy = id.ActorID(validatedBy)
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qc validations: %w", err)
	}
	return out, nil
}
