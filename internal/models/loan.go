package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationDeclined ApplicationStatus = "declined"
)

type Loan struct {
	ID             int32             `json:"id"`
	UserID         int32             `json:"user_id"`
	Amount         decimal.Decimal   `json:"amount"`
	InterestRate   decimal.Decimal   `json:"interest_rate"` // percent per annum
	DurationMonths int32             `json:"duration_months"`
	MonthlyPayment decimal.Decimal   `json:"monthly_payment"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	DueDate        *time.Time        `json:"due_date,omitempty"`
	Status         ApplicationStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Amortize fills in the repayment schedule at approval time.
// monthly = amount * r * (1+r)^n / ((1+r)^n - 1) with r the monthly rate;
// a zero rate degenerates to amount / n. The total is the rounded monthly
// payment times n, which is what the borrower actually pays.
func (l *Loan) Amortize(approvedAt time.Time) {
	n := decimal.NewFromInt32(l.DurationMonths)
	r := l.InterestRate.Div(decimal.NewFromInt(1200))
	if r.IsZero() {
		l.MonthlyPayment = l.Amount.Div(n).Round(2)
	} else {
		pow := decimal.NewFromInt(1).Add(r).Pow(n)
		l.MonthlyPayment = l.Amount.Mul(r).Mul(pow).Div(pow.Sub(decimal.NewFromInt(1))).Round(2)
	}
	l.TotalAmount = l.MonthlyPayment.Mul(n)
	due := approvedAt.AddDate(0, int(l.DurationMonths), 0)
	l.DueDate = &due
}
