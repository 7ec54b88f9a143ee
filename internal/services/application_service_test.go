package service_test

import (
	"context"
	"testing"

	"github.com/finbright/bankcore/internal/models"
	service "github.com/finbright/bankcore/internal/services"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestApplyForLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("FilesPendingApplication", func(t *testing.T) {
		loanRepo := new(MockLoanRepository)
		notificationRepo := new(MockNotificationRepository)
		svc := service.NewApplicationService(loanRepo, new(MockCardRepository), notificationRepo)

		loanRepo.On("HasPending", mock.Anything, int32(7)).Return(false, nil)
		loanRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Loan")).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Loan).ID = 3
		}).Return(nil)
		notificationRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

		loan, err := svc.ApplyForLoan(ctx, 7, decimal.NewFromInt(12000), decimal.NewFromInt(12), 12)
		assert.NoError(t, err)
		assert.Equal(t, int32(3), loan.ID)
		assert.Equal(t, models.ApplicationPending, loan.Status)
		assert.True(t, loan.MonthlyPayment.IsZero(), "schedule is computed at approval, not application")
	})

	t.Run("DuplicatePendingRejected", func(t *testing.T) {
		loanRepo := new(MockLoanRepository)
		svc := service.NewApplicationService(loanRepo, new(MockCardRepository), new(MockNotificationRepository))
		loanRepo.On("HasPending", mock.Anything, int32(7)).Return(true, nil)

		_, err := svc.ApplyForLoan(ctx, 7, decimal.NewFromInt(12000), decimal.NewFromInt(12), 12)
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicatePendingApplication)
		loanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("InvalidTerms", func(t *testing.T) {
		svc := service.NewApplicationService(new(MockLoanRepository), new(MockCardRepository), new(MockNotificationRepository))

		_, err := svc.ApplyForLoan(ctx, 7, decimal.NewFromInt(12000), decimal.NewFromInt(12), 0)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)

		_, err = svc.ApplyForLoan(ctx, 7, decimal.Zero, decimal.NewFromInt(12), 12)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}

func TestApplyForCard(t *testing.T) {
	ctx := context.Background()

	t.Run("FilesPendingApplication", func(t *testing.T) {
		cardRepo := new(MockCardRepository)
		svc := service.NewApplicationService(new(MockLoanRepository), cardRepo, new(MockNotificationRepository))

		cardRepo.On("HasPending", mock.Anything, int32(7)).Return(false, nil)
		cardRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Card")).Return(nil)

		card, err := svc.ApplyForCard(ctx, 7, "virtual")
		assert.NoError(t, err)
		assert.Equal(t, models.ApplicationPending, card.Status)
		assert.Equal(t, "virtual", card.CardType)
	})

	t.Run("EmptyTypeRejected", func(t *testing.T) {
		svc := service.NewApplicationService(new(MockLoanRepository), new(MockCardRepository), new(MockNotificationRepository))
		_, err := svc.ApplyForCard(ctx, 7, "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("DuplicatePendingRejected", func(t *testing.T) {
		cardRepo := new(MockCardRepository)
		svc := service.NewApplicationService(new(MockLoanRepository), cardRepo, new(MockNotificationRepository))
		cardRepo.On("HasPending", mock.Anything, int32(7)).Return(true, nil)

		_, err := svc.ApplyForCard(ctx, 7, "virtual")
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicatePendingApplication)
	})
}
