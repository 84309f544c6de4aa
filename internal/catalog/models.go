package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Manufacturers recognised by the catalog. Seed data and admin imports are
// validated against this list.
var Manufacturers = []string{
	"Toyota", "Ford", "BMW", "Mercedes", "Audi",
	"Porsche", "Tesla", "Honda", "Nissan", "AutoCustom",
}

// Vehicle categories. Shipping multipliers key off these values.
const (
	CategorySedan    = "sedan"
	CategorySUV      = "suv"
	CategoryTruck    = "truck"
	CategorySports   = "sports"
	CategoryLuxury   = "luxury"
	CategoryElectric = "electric"
)

// Color is a paint choice offered on a vehicle.
type Color struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Price int64  `json:"price"`
}

// Specs holds the numeric performance figures shown on detail pages.
type Specs struct {
	Engine       string  `json:"engine,omitempty"`
	Horsepower   int     `json:"horsepower,omitempty"`
	Torque       int     `json:"torque,omitempty"`
	Acceleration float64 `json:"acceleration,omitempty"`
	TopSpeed     int     `json:"topSpeed,omitempty"`
	Transmission string  `json:"transmission,omitempty"`
	DriveType    string  `json:"driveType,omitempty"`
	Seating      int     `json:"seating,omitempty"`
}

// Vehicle is the configurable base product. Prices are minor units.
type Vehicle struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	Model             string      `json:"model"`
	Manufacturer      string      `json:"manufacturer"`
	BasePrice         int64       `json:"basePrice"`
	Category          string      `json:"category"`
	Year              int         `json:"year"`
	Description       string      `json:"description,omitempty"`
	Specs             Specs       `json:"specifications"`
	Colors            []Color     `json:"availableColors"`
	AvailableOptions  []uuid.UUID `json:"availableOptions"`
	AvailablePackages []uuid.UUID `json:"availablePackages"`
	InStock           bool        `json:"inStock"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// ColorByName returns the vehicle color matching name, if offered.
func (v Vehicle) ColorByName(name string) (Color, bool) {
	for _, c := range v.Colors {
		if c.Name == name {
			return c, true
		}
	}
	return Color{}, false
}

// Option is a discrete add-on with its own price and compatibility rules.
// An empty CompatibleVehicles list means the option fits every vehicle.
type Option struct {
	ID                 uuid.UUID   `json:"id"`
	Name               string      `json:"name"`
	Category           string      `json:"category"`
	Subcategory        string      `json:"subcategory"`
	Description        string      `json:"description,omitempty"`
	Price              int64       `json:"price"`
	Dependencies       []uuid.UUID `json:"dependencies"`
	Conflicts          []uuid.UUID `json:"conflicts"`
	CompatibleVehicles []uuid.UUID `json:"compatibleVehicles"`
}

// CompatibleWith reports whether the option may be fitted to the vehicle.
func (o Option) CompatibleWith(vehicleID uuid.UUID) bool {
	return containsID(o.CompatibleVehicles, vehicleID)
}

// PackageOption is an option bundled inside a package with its quantity.
type PackageOption struct {
	OptionID uuid.UUID `json:"optionId"`
	Qty      int       `json:"qty"`
}

// Package is a discounted bundle of options sold as one selectable unit.
type Package struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	Description        string          `json:"description,omitempty"`
	Price              int64           `json:"price"`
	DiscountPercent    int             `json:"discount"`
	IncludedOptions    []PackageOption `json:"includedOptions"`
	CompatibleVehicles []uuid.UUID     `json:"compatibleVehicles"`
}

// CompatibleWith reports whether the package may be fitted to the vehicle.
func (p Package) CompatibleWith(vehicleID uuid.UUID) bool {
	return containsID(p.CompatibleVehicles, vehicleID)
}

// containsID treats an empty compatibility list as a universal fit. The
// vehicle's curated availableOptions/availablePackages lists use hasID
// instead: there, empty means nothing is offered.
func containsID(list []uuid.UUID, id uuid.UUID) bool {
	return len(list) == 0 || hasID(list, id)
}

func hasID(list []uuid.UUID, id uuid.UUID) bool {
	for _, el := range list {
		if el == id {
			return true
		}
	}
	return false
}

// Snapshot is a consistent read of every catalog entity referenced by one
// price or validation pass. All lookups during a single calculation go
// through the same snapshot so stale and fresh prices never mix.
type Snapshot struct {
	Vehicle  Vehicle
	Options  map[uuid.UUID]Option
	Packages map[uuid.UUID]Package
}

// Option returns a referenced option from the snapshot.
func (s Snapshot) Option(id uuid.UUID) (Option, bool) {
	opt, ok := s.Options[id]
	return opt, ok
}

// Package returns a referenced package from the snapshot.
func (s Snapshot) Package(id uuid.UUID) (Package, bool) {
	pkg, ok := s.Packages[id]
	return pkg, ok
}
