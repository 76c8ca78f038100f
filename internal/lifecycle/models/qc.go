package models

import (
	"strings"
	"time"

	id "bloodbank/pkg/domain"
)

// QCValidation records one completeness check submission.
type QCValidation struct {
	ID                id.QCValidationID `json:"id"`
	OrgID             id.OrgID          `json:"org_id"`
	Target            Target            `json:"target"`
	DataComplete      bool              `json:"data_complete"`
	ScreeningComplete bool              `json:"screening_complete"`
	CustodyComplete   bool              `json:"custody_complete"`
	Status            QCStatus          `json:"status"`
	HoldReason        string            `json:"hold_reason,omitempty"`
	ValidatedBy       id.ActorID        `json:"validated_by"`
	ValidatedAt       time.Time         `json:"validated_at"`
}

// NewQCValidation evaluates the three checks. All true approves; anything
// else holds with the failing checks joined into the reason.
func NewQCValidation(org id.OrgID, target Target, data, screening, custody bool, actor id.ActorID, now time.Time) *QCValidation {
	v := &QCValidation{
		ID:                id.NewQCValidationID(),
		OrgID:             org,
		Target:            target,
		DataComplete:      data,
		ScreeningComplete: screening,
		CustodyComplete:   custody,
		Status:            QCApproved,
		ValidatedBy:       actor,
		ValidatedAt:       now,
	}
	var failing []string
	if !data {
		failing = append(failing, "data incomplete")
	}
	if !screening {
		failing = append(failing, "screening incomplete")
	}
	if !custody {
		failing = append(failing, "custody incomplete")
	}
	if len(failing) > 0 {
		v.Status = QCHold
		v.HoldReason = strings.Join(failing, "; ")
	}
	return v
}

func (v *QCValidation) IsApproved() bool { return v.Status == QCApproved }
