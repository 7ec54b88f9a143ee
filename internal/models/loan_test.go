package models_test

import (
	"testing"
	"time"

	"github.com/finbright/bankcore/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoan_Amortize(t *testing.T) {
	approvedAt := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("StandardSchedule", func(t *testing.T) {
		loan := &models.Loan{
			Amount:         decimal.NewFromInt(12000),
			InterestRate:   decimal.NewFromInt(12),
			DurationMonths: 12,
		}
		loan.Amortize(approvedAt)

		assert.Equal(t, "1066.19", loan.MonthlyPayment.StringFixed(2))
		assert.Equal(t, "12794.28", loan.TotalAmount.StringFixed(2))
		assert.NotNil(t, loan.DueDate)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), *loan.DueDate)
	})

	t.Run("ZeroRate", func(t *testing.T) {
		loan := &models.Loan{
			Amount:         decimal.NewFromInt(12000),
			InterestRate:   decimal.Zero,
			DurationMonths: 12,
		}
		loan.Amortize(approvedAt)

		assert.Equal(t, "1000.00", loan.MonthlyPayment.StringFixed(2))
		assert.Equal(t, "12000.00", loan.TotalAmount.StringFixed(2))
	})

	t.Run("TotalIsMonthlyTimesDuration", func(t *testing.T) {
		loan := &models.Loan{
			Amount:         decimal.NewFromInt(5000),
			InterestRate:   decimal.NewFromFloat(8.5),
			DurationMonths: 24,
		}
		loan.Amortize(approvedAt)

		expected := loan.MonthlyPayment.Mul(decimal.NewFromInt32(loan.DurationMonths))
		assert.True(t, loan.TotalAmount.Equal(expected),
			"total %s should equal monthly %s x 24", loan.TotalAmount, loan.MonthlyPayment)
		assert.True(t, loan.TotalAmount.GreaterThan(loan.Amount))
	})
}

func TestTransfer_Total(t *testing.T) {
	tr := &models.Transfer{
		Amount: decimal.NewFromInt(250),
		Charge: decimal.NewFromFloat(12.50),
	}
	assert.Equal(t, "262.50", tr.Total().StringFixed(2))
}
