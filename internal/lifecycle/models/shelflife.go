package models

import (
	"time"

	dErrors "bloodbank/pkg/domain-errors"
)

// ComponentType is a blood product derived from a whole-blood unit.
type ComponentType string

const (
	TypeWholeBlood      ComponentType = "whole_blood"
	TypePRC             ComponentType = "prc"
	TypePlasma          ComponentType = "plasma"
	TypeFFP             ComponentType = "ffp"
	TypePlatelets       ComponentType = "platelets"
	TypeCryoprecipitate ComponentType = "cryoprecipitate"
)

// StorageSpec is the storage temperature band and shelf life for a type.
type StorageSpec struct {
	TempMinC      float64 `json:"temp_min_c"`
	TempMaxC      float64 `json:"temp_max_c"`
	ShelfLifeDays int     `json:"shelf_life_days"`
	Code          string  `json:"code"`
}

var storageSpecs = map[ComponentType]StorageSpec{
	TypeWholeBlood:      {TempMinC: 2, TempMaxC: 6, ShelfLifeDays: 35, Code: "WB"},
	TypePRC:             {TempMinC: 2, TempMaxC: 6, ShelfLifeDays: 42, Code: "PRC"},
	TypePlasma:          {TempMinC: -30, TempMaxC: -25, ShelfLifeDays: 365, Code: "PL"},
	TypeFFP:             {TempMinC: -30, TempMaxC: -25, ShelfLifeDays: 365, Code: "FFP"},
	TypePlatelets:       {TempMinC: 20, TempMaxC: 24, ShelfLifeDays: 5, Code: "PLT"},
	TypeCryoprecipitate: {TempMinC: -30, TempMaxC: -25, ShelfLifeDays: 365, Code: "CRYO"},
}

func ParseComponentType(s string) (ComponentType, error) {
	return parseEnum(s, "component type", ComponentType.IsValid)
}

func (t ComponentType) IsValid() bool {
	_, ok := storageSpecs[t]
	return ok
}

func (t ComponentType) String() string { return string(t) }

// Spec returns the storage rules for the type.
func (t ComponentType) Spec() (StorageSpec, error) {
	spec, ok := storageSpecs[t]
	if !ok {
		return StorageSpec{}, dErrors.New(dErrors.CodeInvalidArgument, "unknown component type "+string(t))
	}
	return spec, nil
}

// ExpiryFor derives the expiry of a product of type t collected at collectedAt.
// It is a pure function of its inputs: calendar days are added, so the
// wall-clock time of collection is kept.
func ExpiryFor(t ComponentType, collectedAt time.Time) (time.Time, error) {
	spec, err := t.Spec()
	if err != nil {
		return time.Time{}, err
	}
	return collectedAt.AddDate(0, 0, spec.ShelfLifeDays), nil
}
