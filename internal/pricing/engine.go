package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Color describes a paint selection with its price delta.
type Color struct {
	Name  string
	Code  string
	Price Money
}

// OptionLine describes a selected option used for pricing calculation.
type OptionLine struct {
	Qty       int
	UnitPrice Money
}

// PackageLine describes a selected package with its bundle discount.
// DiscountPercent values outside [0,100] are clamped before use.
type PackageLine struct {
	Price           Money
	DiscountPercent int
}

// Breakdown aggregates the computed price components of a build.
type Breakdown struct {
	BasePrice     Money `json:"basePrice"`
	ColorPrice    Money `json:"colorPrice"`
	OptionsTotal  Money `json:"optionsTotal"`
	PackagesTotal Money `json:"packagesTotal"`
	TotalPrice    Money `json:"totalPrice"`
}

// Compute calculates the full price breakdown for a build. All downstream
// consumers (builds, orders, quotes) read from the returned Breakdown and
// never re-derive components independently.
func Compute(basePrice Money, color *Color, options []OptionLine, packages []PackageLine) Breakdown {
	var colorPrice Money
	if color != nil && color.Price > 0 {
		colorPrice = color.Price
	}
	var optionsTotal Money
	for _, opt := range options {
		qty := opt.Qty
		if qty < 1 {
			qty = 1
		}
		optionsTotal += Money(qty) * opt.UnitPrice
	}
	var packagesTotal Money
	for _, pkg := range packages {
		packagesTotal += PackageFinalPrice(pkg.Price, pkg.DiscountPercent)
	}
	total := basePrice + colorPrice + optionsTotal + packagesTotal
	if total < 0 {
		total = 0
	}
	return Breakdown{
		BasePrice:     basePrice,
		ColorPrice:    colorPrice,
		OptionsTotal:  optionsTotal,
		PackagesTotal: packagesTotal,
		TotalPrice:    total,
	}
}

// PackageFinalPrice applies the bundle discount to a package price using
// integer arithmetic. The discount is clamped to [0,100].
func PackageFinalPrice(price Money, discountPercent int) Money {
	if price < 0 {
		price = 0
	}
	if discountPercent < 0 {
		discountPercent = 0
	}
	if discountPercent > 100 {
		discountPercent = 100
	}
	return price * Money(100-discountPercent) / 100
}

// IncludedOption is an option bundled inside a package.
type IncludedOption struct {
	Qty       int
	UnitPrice Money
}

// PackageSavings returns the difference between buying the included options
// individually and the undiscounted package price. The result may be
// negative when the bundle has no included options; callers display it only
// when positive.
func PackageSavings(packagePrice Money, included []IncludedOption) Money {
	var standalone Money
	for _, inc := range included {
		qty := inc.Qty
		if qty < 1 {
			qty = 1
		}
		standalone += Money(qty) * inc.UnitPrice
	}
	return standalone - packagePrice
}

// Tax computes sales tax on the provided amount at the given basis points.
func Tax(amount Money, taxBps int) Money {
	if amount <= 0 || taxBps <= 0 {
		return 0
	}
	return amount * Money(taxBps) / 10000
}

// Shipping returns the delivery charge for a vehicle category applied to the
// flat base rate. SUVs and trucks ship at 1.2x, sports cars at 1.5x.
func Shipping(category string, base Money) Money {
	if base < 0 {
		base = 0
	}
	switch category {
	case "suv", "truck":
		return base * 12 / 10
	case "sports":
		return base * 15 / 10
	default:
		return base
	}
}
