package models

import (
	"github.com/google/uuid"

	id "bloodbank/pkg/domain"
)

// Target identifies the unit or component a quarantine, QC validation or
// discard refers to.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func UnitTarget(unitID id.UnitID) Target {
	return Target{Kind: TargetUnit, ID: uuid.UUID(unitID)}
}

func ComponentTarget(componentID id.ComponentID) Target {
	return Target{Kind: TargetComponent, ID: uuid.UUID(componentID)}
}

func (t Target) UnitID() id.UnitID           { return id.UnitID(t.ID) }
func (t Target) ComponentID() id.ComponentID { return id.ComponentID(t.ID) }
func (t Target) String() string              { return string(t.Kind) + ":" + t.ID.String() }
