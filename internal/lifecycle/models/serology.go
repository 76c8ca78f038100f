package models

import (
	"time"

	id "bloodbank/pkg/domain"
)

// Analyte is a screened infectious marker.
type Analyte string

const (
	AnalyteHIV      Analyte = "hiv"
	AnalyteHBsAg    Analyte = "hbsag"
	AnalyteHCV      Analyte = "hcv"
	AnalyteSyphilis Analyte = "syphilis"
	AnalyteMalaria  Analyte = "malaria"
	AnalyteHTLV     Analyte = "htlv"
)

// MandatoryAnalytes must all be non_reactive for a unit to clear serology.
var MandatoryAnalytes = []Analyte{AnalyteHIV, AnalyteHBsAg, AnalyteHCV, AnalyteSyphilis}

func ParseAnalyte(s string) (Analyte, error) {
	return parseEnum(s, "analyte", Analyte.IsValid)
}

func (a Analyte) IsValid() bool {
	switch a {
	case AnalyteHIV, AnalyteHBsAg, AnalyteHCV, AnalyteSyphilis, AnalyteMalaria, AnalyteHTLV:
		return true
	}
	return false
}

// AnalyteResult is the reading for a single analyte.
type AnalyteResult string

const (
	ResultNonReactive AnalyteResult = "non_reactive"
	ResultGray        AnalyteResult = "gray"
	ResultReactive    AnalyteResult = "reactive"
)

func ParseAnalyteResult(s string) (AnalyteResult, error) {
	return parseEnum(s, "analyte result", AnalyteResult.IsValid)
}

func (r AnalyteResult) IsValid() bool {
	return r == ResultNonReactive || r == ResultGray || r == ResultReactive
}

// SerologyOutcome is the aggregate over a panel.
type SerologyOutcome string

const (
	OutcomeNonReactive SerologyOutcome = "non_reactive"
	OutcomeGray        SerologyOutcome = "gray"
	OutcomeReactive    SerologyOutcome = "reactive"
	OutcomePending     SerologyOutcome = "pending"
)

func ParseSerologyOutcome(s string) (SerologyOutcome, error) {
	return parseEnum(s, "serology outcome", SerologyOutcome.IsValid)
}

func (o SerologyOutcome) IsValid() bool {
	switch o {
	case OutcomeNonReactive, OutcomeGray, OutcomeReactive, OutcomePending:
		return true
	}
	return false
}

// Blocks reports whether the outcome routes the target into quarantine.
func (o SerologyOutcome) Blocks() bool {
	return o == OutcomeReactive || o == OutcomeGray
}

// QuarantineReason maps a blocking outcome to its quarantine reason.
func (o SerologyOutcome) QuarantineReason() QuarantineReason {
	if o == OutcomeGray {
		return QuarantineGray
	}
	return QuarantineReactive
}

// AggregateOutcome applies the panel rule: any reactive wins, then any gray;
// non_reactive only when every mandatory analyte is present and non_reactive.
func AggregateOutcome(results map[Analyte]AnalyteResult) SerologyOutcome {
	anyGray := false
	for _, r := range results {
		switch r {
		case ResultReactive:
			return OutcomeReactive
		case ResultGray:
			anyGray = true
		}
	}
	if anyGray {
		return OutcomeGray
	}
	for _, a := range MandatoryAnalytes {
		if results[a] != ResultNonReactive {
			return OutcomePending
		}
	}
	return OutcomeNonReactive
}

// LabTest is an immutable serology record. Retests append new records.
type LabTest struct {
	ID             id.LabTestID              `json:"id"`
	OrgID          id.OrgID                  `json:"org_id"`
	UnitID         id.UnitID                 `json:"unit_id"`
	Results        map[Analyte]AnalyteResult `json:"results"`
	ConfirmedGroup BloodGroup                `json:"confirmed_group,omitempty"`
	VerifierA      id.ActorID                `json:"verifier_a,omitempty"`
	VerifierB      id.ActorID                `json:"verifier_b,omitempty"`
	Outcome        SerologyOutcome           `json:"outcome"`
	Method         string                    `json:"method,omitempty"`
	TestedAt       time.Time                 `json:"tested_at"`
	RecordedBy     id.ActorID                `json:"recorded_by"`
}

// HasDualVerification reports whether two distinct verifiers signed off.
func (t *LabTest) HasDualVerification() bool {
	return !t.VerifierA.IsZero() && !t.VerifierB.IsZero() && t.VerifierA != t.VerifierB
}
