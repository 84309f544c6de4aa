package finance

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/motorcraft/backend-configurator/internal/common"
	"github.com/motorcraft/backend-configurator/internal/obs"
)

// EMIRequest is the payload for a financing quote. Principal and DownPayment
// are minor units; AnnualInterestRate is an annual percentage.
type EMIRequest struct {
	Principal          int64   `json:"principal" validate:"required"`
	DownPayment        int64   `json:"downPayment"`
	AnnualInterestRate float64 `json:"annualInterestRate"`
	TenureMonths       int     `json:"tenureMonths" validate:"required"`
}

// EMIQuote is the computed financing result.
type EMIQuote struct {
	LoanAmount    int64         `json:"loanAmount"`
	EMI           int64         `json:"emi"`
	TotalPayment  int64         `json:"totalPayment"`
	TotalInterest int64         `json:"totalInterest"`
	Schedule      []Installment `json:"schedule"`
}

// Handler exposes the financing quote endpoint.
type Handler struct {
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(validate *validator.Validate) *Handler {
	return &Handler{Validate: validate}
}

// EMI handles POST /api/v1/configurator/emi.
func (h *Handler) EMI(w http.ResponseWriter, r *http.Request) {
	var req EMIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			countEMI("invalid")
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "principal and tenureMonths are required", nil)
			return
		}
	}

	quote, err := Quote(req)
	if err != nil {
		var loanErr *LoanParamsError
		if errors.As(err, &loanErr) {
			countEMI("invalid")
			common.JSONError(w, http.StatusUnprocessableEntity, common.CodeInvalidLoan, "invalid loan parameters", map[string]any{
				"violations": loanErr.Violations,
			})
			return
		}
		countEMI("error")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
		return
	}
	countEMI("ok")
	common.JSONData(w, http.StatusOK, quote)
}

// Quote computes the financing figures for the request. The financed amount
// is the principal minus the down payment.
func Quote(req EMIRequest) (EMIQuote, error) {
	if err := ValidateLoanParameters(req.Principal, req.AnnualInterestRate, req.TenureMonths, req.DownPayment); err != nil {
		return EMIQuote{}, err
	}
	loanAmount := req.Principal - req.DownPayment
	emi, err := CalculateEMI(loanAmount, req.AnnualInterestRate, req.TenureMonths)
	if err != nil {
		return EMIQuote{}, err
	}
	total := TotalPayment(emi, req.TenureMonths)
	table, err := ScheduleTable(loanAmount, req.AnnualInterestRate, req.TenureMonths)
	if err != nil {
		return EMIQuote{}, err
	}
	return EMIQuote{
		LoanAmount:    loanAmount,
		EMI:           emi,
		TotalPayment:  total,
		TotalInterest: TotalInterest(total, loanAmount),
		Schedule:      table,
	}, nil
}

func countEMI(result string) {
	if obs.EMIQuotesTotal != nil {
		obs.EMIQuotesTotal.WithLabelValues(result).Inc()
	}
}
