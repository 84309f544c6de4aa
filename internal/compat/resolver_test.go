package compat

import (
	"testing"

	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/catalog"
)

var (
	vehicleID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	otherCar  = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	towHitch  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	brakeCtl  = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	sportExh  = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	quietExh  = uuid.MustParse("00000000-0000-0000-0000-000000000004")
	towPkg    = uuid.MustParse("00000000-0000-0000-0000-000000000010")
)

func fixtureSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Vehicle: catalog.Vehicle{ID: vehicleID, Name: "Ranger", Category: catalog.CategoryTruck},
		Options: map[uuid.UUID]catalog.Option{
			// brake controller is required before the tow hitch may be fitted
			towHitch: {ID: towHitch, Name: "Tow Hitch", Dependencies: []uuid.UUID{brakeCtl}},
			brakeCtl: {ID: brakeCtl, Name: "Brake Controller"},
			// conflict declared on the sport side only
			sportExh: {ID: sportExh, Name: "Sport Exhaust", Conflicts: []uuid.UUID{quietExh}},
			quietExh: {ID: quietExh, Name: "Quiet Exhaust"},
		},
		Packages: map[uuid.UUID]catalog.Package{
			towPkg: {ID: towPkg, Name: "Towing Package", IncludedOptions: []catalog.PackageOption{
				{OptionID: towHitch, Qty: 1},
				{OptionID: brakeCtl, Qty: 1},
			}},
		},
	}
}

func TestValidateCleanSelection(t *testing.T) {
	snap := fixtureSnapshot()
	violations := Validate(snap, []uuid.UUID{brakeCtl, towHitch}, nil)
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %+v", violations)
	}
}

func TestValidateMissingDependency(t *testing.T) {
	snap := fixtureSnapshot()
	violations := Validate(snap, []uuid.UUID{towHitch}, nil)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", violations)
	}
	v := violations[0]
	if v.Kind != KindMissingDependency || v.SubjectID != towHitch || v.RelatedID != brakeCtl {
		t.Fatalf("unexpected violation: %+v", v)
	}
}

func TestValidateConflictSymmetric(t *testing.T) {
	snap := fixtureSnapshot()
	// declared only on sportExh; both orderings must be rejected once
	for _, ids := range [][]uuid.UUID{{sportExh, quietExh}, {quietExh, sportExh}} {
		violations := Validate(snap, ids, nil)
		if len(violations) != 1 {
			t.Fatalf("expected 1 conflict violation, got %+v", violations)
		}
		v := violations[0]
		if v.Kind != KindConflict {
			t.Fatalf("expected conflict, got %+v", v)
		}
		pair := map[uuid.UUID]bool{v.SubjectID: true, v.RelatedID: true}
		if !pair[sportExh] || !pair[quietExh] {
			t.Fatalf("conflict must identify both options: %+v", v)
		}
	}
}

func TestValidatePackageSatisfiesDependency(t *testing.T) {
	snap := fixtureSnapshot()
	// towing package bundles the brake controller, so the hitch dependency
	// is met without selecting it manually
	violations := Validate(snap, []uuid.UUID{towHitch}, []uuid.UUID{towPkg})
	if len(violations) != 0 {
		t.Fatalf("expected package to satisfy dependency, got %+v", violations)
	}
}

func TestValidatePackageIntroducesConflict(t *testing.T) {
	snap := fixtureSnapshot()
	pkgID := uuid.MustParse("00000000-0000-0000-0000-000000000011")
	snap.Packages[pkgID] = catalog.Package{
		ID:   pkgID,
		Name: "Track Package",
		IncludedOptions: []catalog.PackageOption{
			{OptionID: sportExh, Qty: 1},
		},
	}
	violations := Validate(snap, []uuid.UUID{quietExh}, []uuid.UUID{pkgID})
	if len(violations) != 1 || violations[0].Kind != KindConflict {
		t.Fatalf("expected conflict via package, got %+v", violations)
	}
}

func TestValidateVehicleIncompatible(t *testing.T) {
	snap := fixtureSnapshot()
	scoped := uuid.MustParse("00000000-0000-0000-0000-000000000005")
	snap.Options[scoped] = catalog.Option{
		ID:                 scoped,
		Name:               "Roof Rails",
		CompatibleVehicles: []uuid.UUID{otherCar},
	}
	violations := Validate(snap, []uuid.UUID{scoped}, nil)
	if len(violations) != 1 || violations[0].Kind != KindVehicleIncompatible {
		t.Fatalf("expected vehicle incompatibility, got %+v", violations)
	}
}

func TestValidateAccumulatesAllViolations(t *testing.T) {
	snap := fixtureSnapshot()
	unknown := uuid.MustParse("00000000-0000-0000-0000-0000000000ff")
	violations := Validate(snap, []uuid.UUID{towHitch, sportExh, quietExh, unknown}, nil)
	kinds := map[Kind]int{}
	for _, v := range violations {
		kinds[v.Kind]++
	}
	if kinds[KindMissingDependency] != 1 || kinds[KindConflict] != 1 || kinds[KindUnknownEntity] != 1 {
		t.Fatalf("expected one violation of each kind, got %+v", violations)
	}
}

func TestEffectiveOptionsUnion(t *testing.T) {
	snap := fixtureSnapshot()
	effective := EffectiveOptions(snap, []uuid.UUID{sportExh}, []uuid.UUID{towPkg})
	for _, want := range []uuid.UUID{sportExh, towHitch, brakeCtl} {
		if !effective[want] {
			t.Fatalf("expected %s in effective set", want)
		}
	}
	if len(effective) != 3 {
		t.Fatalf("unexpected effective set size %d", len(effective))
	}
}
