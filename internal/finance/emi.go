// Package finance implements the amortization math behind vehicle loan
// quotes. All monetary amounts are minor units; interest rates are annual
// percentages.
package finance

import (
	"iter"
	"math"
	"strings"
)

// Installment is one month of an amortization schedule.
type Installment struct {
	Month     int   `json:"month"`
	EMI       int64 `json:"emi"`
	Principal int64 `json:"principal"`
	Interest  int64 `json:"interest"`
	Balance   int64 `json:"balance"`
}

// LoanParamsError reports every violated loan constraint at once.
type LoanParamsError struct {
	Violations []string
}

func (e *LoanParamsError) Error() string {
	return "invalid loan parameters: " + strings.Join(e.Violations, "; ")
}

// ValidateLoanParameters checks every constraint and returns a single error
// enumerating all violations, or nil when the parameters are acceptable.
func ValidateLoanParameters(principal int64, annualRatePercent float64, tenureMonths int, downPayment int64) error {
	var violations []string
	if principal <= 0 {
		violations = append(violations, "principal must be greater than 0")
	}
	if annualRatePercent < 0 {
		violations = append(violations, "interest rate cannot be negative")
	}
	if tenureMonths < 1 {
		violations = append(violations, "tenure must be at least 1 month")
	}
	if downPayment < 0 {
		violations = append(violations, "down payment cannot be negative")
	}
	if downPayment > 0 && downPayment >= principal {
		violations = append(violations, "down payment must be less than principal")
	}
	if len(violations) > 0 {
		return &LoanParamsError{Violations: violations}
	}
	return nil
}

// CalculateEMI computes the fixed monthly payment for the loan, rounded to
// the nearest minor unit. A zero rate degenerates to straight division.
func CalculateEMI(principal int64, annualRatePercent float64, tenureMonths int) (int64, error) {
	if err := ValidateLoanParameters(principal, annualRatePercent, tenureMonths, 0); err != nil {
		return 0, err
	}
	monthlyRate := annualRatePercent / 12 / 100
	if monthlyRate == 0 {
		return int64(math.Round(float64(principal) / float64(tenureMonths))), nil
	}
	factor := math.Pow(1+monthlyRate, float64(tenureMonths))
	emi := float64(principal) * monthlyRate * factor / (factor - 1)
	return int64(math.Round(emi)), nil
}

// TotalPayment is the sum of all installments over the loan term.
func TotalPayment(emi int64, tenureMonths int) int64 {
	return emi * int64(tenureMonths)
}

// TotalInterest is the amount paid above the borrowed principal.
func TotalInterest(totalPayment, principal int64) int64 {
	return totalPayment - principal
}

// Schedule returns the amortization sequence for the loan. The sequence is
// finite and restartable: every range starts again from month one. Each
// month's interest accrues on the running balance; the balance is floored
// at zero so rounding never drives it negative.
func Schedule(principal int64, annualRatePercent float64, tenureMonths int) (iter.Seq[Installment], error) {
	emi, err := CalculateEMI(principal, annualRatePercent, tenureMonths)
	if err != nil {
		return nil, err
	}
	monthlyRate := annualRatePercent / 12 / 100
	return func(yield func(Installment) bool) {
		balance := float64(principal)
		fEMI := float64(emi)
		for month := 1; month <= tenureMonths; month++ {
			interest := balance * monthlyRate
			principalComponent := fEMI - interest
			balance -= principalComponent
			display := balance
			if display < 0 {
				display = 0
			}
			inst := Installment{
				Month:     month,
				EMI:       emi,
				Principal: int64(math.Round(principalComponent)),
				Interest:  int64(math.Round(interest)),
				Balance:   int64(math.Round(display)),
			}
			if !yield(inst) {
				return
			}
		}
	}, nil
}

// ScheduleTable materializes the full amortization schedule.
func ScheduleTable(principal int64, annualRatePercent float64, tenureMonths int) ([]Installment, error) {
	seq, err := Schedule(principal, annualRatePercent, tenureMonths)
	if err != nil {
		return nil, err
	}
	table := make([]Installment, 0, tenureMonths)
	for inst := range seq {
		table = append(table, inst)
	}
	return table, nil
}
