package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodbank/internal/lifecycle/models"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
)

type registerUnitRequest struct {
	DonationID      string `json:"donation_id"`
	DeclaredGroup   string `json:"declared_group"`
	VolumeML        int    `json:"volume_ml,omitempty"`
	StorageLocation string `json:"storage_location,omitempty"`
}

type recordSerologyRequest struct {
	Results        map[string]string `json:"results"`
	ConfirmedGroup string            `json:"confirmed_group,omitempty"`
	VerifierA      string            `json:"verifier_a,omitempty"`
	VerifierB      string            `json:"verifier_b,omitempty"`
	Method         string            `json:"method,omitempty"`
}

type componentRequest struct {
	Type     string `json:"type"`
	VolumeML int    `json:"volume_ml"`
}

type separateRequest struct {
	Components []componentRequest `json:"components"`
}

type targetRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type validateQCRequest struct {
	Target            targetRequest `json:"target"`
	DataComplete      bool          `json:"data_complete"`
	ScreeningComplete bool          `json:"screening_complete"`
	CustodyComplete   bool          `json:"custody_complete"`
}

type placeQuarantineRequest struct {
	Target targetRequest `json:"target"`
	Reason string        `json:"reason"`
	Notes  string        `json:"notes,omitempty"`
}

type resolveQuarantineRequest struct {
	RetestResult string `json:"retest_result"`
	Disposition  string `json:"disposition"`
}

type submitRequestRequest struct {
	BloodGroup  string     `json:"blood_group"`
	ProductType string     `json:"product_type"`
	Quantity    int        `json:"quantity"`
	Urgency     string     `json:"urgency"`
	RequiredBy  *time.Time `json:"required_by,omitempty"`
}

type deliverRequest struct {
	ReceivedBy string `json:"received_by"`
}

type createReturnRequest struct {
	ComponentID string `json:"component_id"`
	Source      string `json:"source"`
	Reason      string `json:"reason"`
}

type processReturnRequest struct {
	QCPass   bool   `json:"qc_pass"`
	Decision string `json:"decision"`
}

type createDiscardRequest struct {
	ComponentID string `json:"component_id"`
	Reason      string `json:"reason"`
	Details     string `json:"details,omitempty"`
}

type destroyRequest struct {
	Method  string `json:"method"`
	Witness string `json:"witness"`
}

// listResponse wraps collections so empty results encode as [].
type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

type eventResponse struct {
	ID         string    `json:"id"`
	TargetKind string    `json:"target_kind"`
	TargetID   string    `json:"target_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Action     string    `json:"action"`
	Category   string    `json:"category"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func toEventResponses(events []audit.TransitionEvent) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:         e.ID.String(),
			TargetKind: e.TargetKind,
			TargetID:   e.TargetID,
			From:       e.From,
			To:         e.To,
			Action:     string(e.Action),
			Category:   string(e.Category()),
			Actor:      e.Actor.String(),
			Reason:     e.Reason,
			RequestID:  e.RequestID,
			Timestamp:  e.Timestamp,
		})
	}
	return out
}

// parseTarget accepts "unit" or "component" and the matching record ID.
func parseTarget(kind, rawID string) (models.Target, error) {
	k, err := models.ParseTargetKind(strings.TrimSpace(kind))
	if err != nil {
		return models.Target{}, err
	}
	if k == models.TargetComponent {
		componentID, err := id.ParseComponentID(rawID)
		if err != nil {
			return models.Target{}, err
		}
		return models.ComponentTarget(componentID), nil
	}
	unitID, err := id.ParseUnitID(rawID)
	if err != nil {
		return models.Target{}, err
	}
	return models.UnitTarget(unitID), nil
}

func (t targetRequest) parse() (models.Target, error) {
	return parseTarget(t.Kind, t.ID)
}

// optionalActor parses a verifier that may be omitted.
func optionalActor(raw string) (id.ActorID, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return id.ParseActorID(raw)
}

// queryInt reads a non-negative integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidArgument, name+" must be a non-negative integer")
	}
	return n, nil
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
