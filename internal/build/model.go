// Package build persists customer vehicle configurations and keeps their
// derived price totals consistent across mutations.
package build

import (
	"time"

	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/catalog"
)

// SelectedOption is one manually selected option with its quantity.
type SelectedOption struct {
	OptionID uuid.UUID `json:"optionId"`
	Qty      int       `json:"qty"`
}

// Build is a saved configuration. Options and packages hold only the manual
// selection; options injected by packages are derived on validation and never
// stored. Version increments on every successful write.
type Build struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"userId"`
	VehicleID    uuid.UUID        `json:"vehicleId"`
	Name         string           `json:"name"`
	Color        *catalog.Color   `json:"selectedColor,omitempty"`
	Options      []SelectedOption `json:"selectedOptions"`
	Packages     []uuid.UUID      `json:"selectedPackages"`
	BasePrice    int64            `json:"basePrice"`
	TotalPrice   int64            `json:"totalPrice"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"createdAt"`
	LastModified time.Time        `json:"lastModified"`
}

// HasOption reports whether the option is manually selected.
func (b Build) HasOption(id uuid.UUID) bool {
	for _, sel := range b.Options {
		if sel.OptionID == id {
			return true
		}
	}
	return false
}

// HasPackage reports whether the package is selected.
func (b Build) HasPackage(id uuid.UUID) bool {
	for _, pkg := range b.Packages {
		if pkg == id {
			return true
		}
	}
	return false
}

func (b Build) optionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Options))
	for _, sel := range b.Options {
		ids = append(ids, sel.OptionID)
	}
	return ids
}
