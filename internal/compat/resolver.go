// Package compat validates option and package selections against vehicle
// compatibility, option dependencies, and option conflicts. All checks are
// pure and accumulate every violation in one pass so a client can surface
// the complete list at once.
package compat

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/catalog"
)

// Kind classifies a compatibility violation.
type Kind string

const (
	// KindUnknownEntity means a referenced option or package is not in the
	// catalog snapshot.
	KindUnknownEntity Kind = "unknown_entity"
	// KindVehicleIncompatible means the entity cannot be fitted to the vehicle.
	KindVehicleIncompatible Kind = "vehicle_incompatible"
	// KindMissingDependency means a selected option requires another option
	// that is absent from the effective selection.
	KindMissingDependency Kind = "missing_dependency"
	// KindConflict means two options in the effective selection exclude each
	// other.
	KindConflict Kind = "conflict"
)

// Violation identifies one rule breach. SubjectID is the entity that carries
// the broken rule; RelatedID is the counterpart (the missing dependency or
// the conflicting option) when one exists.
type Violation struct {
	Kind        Kind      `json:"kind"`
	SubjectType string    `json:"subjectType"`
	SubjectID   uuid.UUID `json:"subjectId"`
	RelatedID   uuid.UUID `json:"relatedId,omitempty"`
	Message     string    `json:"message"`
}

// Validate checks the proposed selection against the snapshot's vehicle.
// Package included options are unioned into the effective option set before
// dependency and conflict checks run, so a package can satisfy another
// option's dependency or introduce a conflict. Conflicts are symmetric even
// when declared on only one side.
//
// An empty result means the whole selection is legal; a non-empty result
// means nothing may be committed.
func Validate(snap catalog.Snapshot, optionIDs, packageIDs []uuid.UUID) []Violation {
	var out []Violation
	vehicleID := snap.Vehicle.ID

	// Rule 1: vehicle compatibility, and existence in the snapshot.
	for _, id := range dedupe(optionIDs) {
		opt, ok := snap.Option(id)
		if !ok {
			out = append(out, Violation{
				Kind:        KindUnknownEntity,
				SubjectType: "option",
				SubjectID:   id,
				Message:     fmt.Sprintf("option %s is not in the catalog", id),
			})
			continue
		}
		if !opt.CompatibleWith(vehicleID) {
			out = append(out, Violation{
				Kind:        KindVehicleIncompatible,
				SubjectType: "option",
				SubjectID:   id,
				Message:     fmt.Sprintf("option %q is not available for this vehicle", opt.Name),
			})
		}
	}
	for _, id := range dedupe(packageIDs) {
		pkg, ok := snap.Package(id)
		if !ok {
			out = append(out, Violation{
				Kind:        KindUnknownEntity,
				SubjectType: "package",
				SubjectID:   id,
				Message:     fmt.Sprintf("package %s is not in the catalog", id),
			})
			continue
		}
		if !pkg.CompatibleWith(vehicleID) {
			out = append(out, Violation{
				Kind:        KindVehicleIncompatible,
				SubjectType: "package",
				SubjectID:   id,
				Message:     fmt.Sprintf("package %q is not available for this vehicle", pkg.Name),
			})
		}
	}

	effective := EffectiveOptions(snap, optionIDs, packageIDs)

	// Rule 2: every dependency of an effective option must itself be effective.
	for _, id := range sortedKeys(effective) {
		opt, ok := snap.Option(id)
		if !ok {
			continue
		}
		for _, dep := range opt.Dependencies {
			if _, present := effective[dep]; present {
				continue
			}
			out = append(out, Violation{
				Kind:        KindMissingDependency,
				SubjectType: "option",
				SubjectID:   id,
				RelatedID:   dep,
				Message:     fmt.Sprintf("option %q requires option %s", opt.Name, dep),
			})
		}
	}

	// Rule 3: no effective option may conflict with another, in either
	// declaration direction. Each pair is reported once.
	reported := map[[2]uuid.UUID]bool{}
	for _, id := range sortedKeys(effective) {
		opt, ok := snap.Option(id)
		if !ok {
			continue
		}
		for _, other := range opt.Conflicts {
			if _, present := effective[other]; !present {
				continue
			}
			key := pairKey(id, other)
			if reported[key] {
				continue
			}
			reported[key] = true
			out = append(out, Violation{
				Kind:        KindConflict,
				SubjectType: "option",
				SubjectID:   id,
				RelatedID:   other,
				Message:     fmt.Sprintf("option %q conflicts with option %s", opt.Name, other),
			})
		}
	}
	return out
}

// EffectiveOptions returns the union of manually selected options and every
// option required by a selected package. The derived set is recomputed from
// scratch on each call and never hand-mutated.
func EffectiveOptions(snap catalog.Snapshot, optionIDs, packageIDs []uuid.UUID) map[uuid.UUID]bool {
	effective := make(map[uuid.UUID]bool, len(optionIDs))
	for _, id := range optionIDs {
		effective[id] = true
	}
	for _, pkgID := range packageIDs {
		pkg, ok := snap.Package(pkgID)
		if !ok {
			continue
		}
		for _, inc := range pkg.IncludedOptions {
			effective[inc.OptionID] = true
		}
	}
	return effective
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sortedKeys(set map[uuid.UUID]bool) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(set))
	for id := range set {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() < b.String() {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}
