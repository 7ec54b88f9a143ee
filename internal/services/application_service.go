package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finbright/bankcore/internal/models"
	"github.com/finbright/bankcore/internal/repository"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// ApplicationService handles loan and card applications. Decisions are made
// by admins through AdminService; this service only files and lists them.
type ApplicationService interface {
	ApplyForLoan(ctx context.Context, userID int32, amount, interestRate decimal.Decimal, durationMonths int32) (*models.Loan, error)
	ApplyForCard(ctx context.Context, userID int32, cardType string) (*models.Card, error)
	ListLoans(ctx context.Context, userID int32) ([]models.Loan, error)
	ListCards(ctx context.Context, userID int32) ([]models.Card, error)
}

type applicationService struct {
	loanRepo         repository.LoanRepository
	cardRepo         repository.CardRepository
	notificationRepo repository.NotificationRepository
}

func NewApplicationService(
	loanRepo repository.LoanRepository,
	cardRepo repository.CardRepository,
	notificationRepo repository.NotificationRepository,
) *applicationService {
	return &applicationService{
		loanRepo:         loanRepo,
		cardRepo:         cardRepo,
		notificationRepo: notificationRepo,
	}
}

func (s *applicationService) ApplyForLoan(ctx context.Context, userID int32, amount, interestRate decimal.Decimal, durationMonths int32) (*models.Loan, error) {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "ApplyForLoan")
	defer span.End()

	if !amount.IsPositive() || interestRate.IsNegative() || durationMonths <= 0 {
		span.SetStatus(codes.Error, "invalid input")
		return nil, pkgerrors.ErrInvalidInput
	}

	pending, err := s.loanRepo.HasPending(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if pending {
		span.SetStatus(codes.Error, "duplicate pending application")
		return nil, pkgerrors.ErrDuplicatePendingApplication
	}

	loan := &models.Loan{
		UserID:         userID,
		Amount:         amount,
		InterestRate:   interestRate,
		DurationMonths: durationMonths,
		Status:         models.ApplicationPending,
	}
	if err := s.loanRepo.Create(ctx, loan); err != nil {
		span.RecordError(err)
		return nil, err
	}

	n := &models.Notification{UserID: userID, Message: fmt.Sprintf("Loan application #%d for %s received.", loan.ID, amount), Redirect: "/loans"}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		slog.Error("failed to create notification", "user_id", userID, "error", err)
	}

	slog.Info("loan application filed", "loan_id", loan.ID, "user_id", userID, "amount", amount)
	return loan, nil
}

func (s *applicationService) ApplyForCard(ctx context.Context, userID int32, cardType string) (*models.Card, error) {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "ApplyForCard")
	defer span.End()

	if cardType == "" {
		span.SetStatus(codes.Error, "invalid input")
		return nil, pkgerrors.ErrInvalidInput
	}

	pending, err := s.cardRepo.HasPending(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if pending {
		span.SetStatus(codes.Error, "duplicate pending application")
		return nil, pkgerrors.ErrDuplicatePendingApplication
	}

	card := &models.Card{
		UserID:   userID,
		CardType: cardType,
		Status:   models.ApplicationPending,
	}
	if err := s.cardRepo.Create(ctx, card); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("card application filed", "card_id", card.ID, "user_id", userID, "card_type", cardType)
	return card, nil
}

func (s *applicationService) ListLoans(ctx context.Context, userID int32) ([]models.Loan, error) {
	return s.loanRepo.ListByUser(ctx, userID)
}

func (s *applicationService) ListCards(ctx context.Context, userID int32) ([]models.Card, error) {
	return s.cardRepo.ListByUser(ctx, userID)
}
