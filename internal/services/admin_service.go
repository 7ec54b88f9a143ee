package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finbright/bankcore/internal/infrastructure/kafka"
	"github.com/finbright/bankcore/internal/infrastructure/observability"
	"github.com/finbright/bankcore/internal/models"
	"github.com/finbright/bankcore/internal/repository"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AdminService performs privileged balance mutations and decisions. Admin
// action is itself the authorization; nothing here passes through the
// verification state machine.
type AdminService interface {
	AdjustBalance(ctx context.Context, userID int32, currency string, amount decimal.Decimal, direction models.TransferType) (decimal.Decimal, error)
	ApproveTransfer(ctx context.Context, txRef string) error
	DeclineTransfer(ctx context.Context, txRef string) error
	SetOption(ctx context.Context, key, value string) (int64, error)
	ApproveLoan(ctx context.Context, loanID int32) (*models.Loan, error)
	DeclineLoan(ctx context.Context, loanID int32) error
	ApproveCard(ctx context.Context, cardID int32) error
	DeclineCard(ctx context.Context, cardID int32) error
}

type adminService struct {
	userRepo         repository.UserRepository
	transferRepo     repository.TransferRepository
	settingsRepo     repository.SettingsRepository
	notificationRepo repository.NotificationRepository
	loanRepo         repository.LoanRepository
	cardRepo         repository.CardRepository
	kafkaProducer    kafka.KafkaProducer
}

func NewAdminService(
	userRepo repository.UserRepository,
	transferRepo repository.TransferRepository,
	settingsRepo repository.SettingsRepository,
	notificationRepo repository.NotificationRepository,
	loanRepo repository.LoanRepository,
	cardRepo repository.CardRepository,
	kafkaProducer kafka.KafkaProducer,
) *adminService {
	return &adminService{
		userRepo:         userRepo,
		transferRepo:     transferRepo,
		settingsRepo:     settingsRepo,
		notificationRepo: notificationRepo,
		loanRepo:         loanRepo,
		cardRepo:         cardRepo,
		kafkaProducer:    kafkaProducer,
	}
}

func (s *adminService) notify(ctx context.Context, userID int32, message, redirect string) {
	n := &models.Notification{UserID: userID, Message: message, Redirect: redirect}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		slog.Error("failed to create notification", "user_id", userID, "error", err)
	}
}

func newAdjustmentRef() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ADJ-" + raw[:12]
}

func (s *adminService) AdjustBalance(ctx context.Context, userID int32, currency string, amount decimal.Decimal, direction models.TransferType) (decimal.Decimal, error) {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "AdjustBalance")
	span.SetAttributes(attribute.Int("user_id", int(userID)), attribute.String("direction", string(direction)))
	defer span.End()

	if !amount.IsPositive() || currency == "" {
		span.SetStatus(codes.Error, "invalid input")
		return decimal.Zero, pkgerrors.ErrInvalidInput
	}
	if direction != models.TypeCredit && direction != models.TypeDebit {
		span.SetStatus(codes.Error, "invalid direction")
		return decimal.Zero, pkgerrors.ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}

	delta := amount
	if direction == models.TypeDebit {
		delta = amount.Neg()
	}
	newBalance, err := s.userRepo.ChangeBalance(ctx, userID, currency, delta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "balance change failed")
		return decimal.Zero, err
	}

	meta := &models.TransferMeta{
		TxRef:    newAdjustmentRef(),
		UserID:   userID,
		Type:     direction,
		Amount:   amount,
		Currency: currency,
		Success:  true,
	}
	if err := s.transferRepo.CreateMeta(ctx, meta); err != nil {
		slog.Error("failed to record adjustment meta", "tx_ref", meta.TxRef, "user_id", userID, "error", err)
	}

	s.notify(ctx, userID, fmt.Sprintf("Your account was %sed %s %s by an administrator.", direction, amount, currency), "/balance")
	slog.Info("balance adjusted", "user_id", userID, "direction", direction, "amount", amount, "new_balance", newBalance)
	return newBalance, nil
}

// ApproveTransfer settles an international transfer that has cleared all six
// verification gates.
func (s *adminService) ApproveTransfer(ctx context.Context, txRef string) error {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "ApproveTransfer")
	span.SetAttributes(attribute.String("tx_ref", txRef))
	defer span.End()

	t, err := s.transferRepo.GetByTxRef(ctx, txRef)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if t.Region != models.RegionInternational {
		span.SetStatus(codes.Error, "wrong region")
		return pkgerrors.ErrWrongRegion
	}
	if t.Status != models.StatusPending || t.CompletedAt == nil {
		span.SetStatus(codes.Error, "transfer not ready for approval")
		return pkgerrors.ErrTransferNotPending
	}

	newBalance, err := s.transferRepo.Settle(ctx, t)
	if err != nil {
		observability.SettlementsTotal.WithLabelValues(string(t.Region), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		return err
	}
	observability.SettlementsTotal.WithLabelValues(string(t.Region), "success").Inc()

	s.notify(ctx, t.UserID, fmt.Sprintf("International transfer %s was approved and settled.", txRef), "/transfers/"+txRef)
	if user, uerr := s.userRepo.GetByID(ctx, t.UserID); uerr == nil {
		sendEmailAsync(s.kafkaProducer, user.Email, "Transfer approved",
			fmt.Sprintf("Transfer %s was approved. %s %s was debited; new balance is %s %s.", txRef, t.Total(), t.Currency, newBalance, t.Currency))
	}

	slog.Info("international transfer approved", "tx_ref", txRef, "user_id", t.UserID, "new_balance", newBalance)
	return nil
}

func (s *adminService) DeclineTransfer(ctx context.Context, txRef string) error {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "DeclineTransfer")
	span.SetAttributes(attribute.String("tx_ref", txRef))
	defer span.End()

	t, err := s.transferRepo.GetByTxRef(ctx, txRef)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.transferRepo.MarkFailed(ctx, txRef); err != nil {
		span.RecordError(err)
		return err
	}

	s.notify(ctx, t.UserID, fmt.Sprintf("Transfer %s was declined.", txRef), "/transfers/"+txRef)
	slog.Info("transfer declined", "tx_ref", txRef, "user_id", t.UserID)
	return nil
}

func (s *adminService) SetOption(ctx context.Context, key, value string) (int64, error) {
	if key == "" {
		return 0, pkgerrors.ErrInvalidInput
	}
	epoch, err := s.settingsRepo.Set(ctx, key, value)
	if err != nil {
		slog.Error("failed to set system option", "key", key, "error", err)
		return 0, err
	}
	slog.Info("system option updated", "key", key, "epoch", epoch)
	return epoch, nil
}

// ApproveLoan computes the amortization schedule, credits the principal to
// the borrower's default-currency balance and records the payout.
func (s *adminService) ApproveLoan(ctx context.Context, loanID int32) (*models.Loan, error) {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "ApproveLoan")
	span.SetAttributes(attribute.Int("loan_id", int(loanID)))
	defer span.End()

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if loan.Status != models.ApplicationPending {
		span.SetStatus(codes.Error, "loan not pending")
		return nil, pkgerrors.ErrLoanNotFound
	}

	loan.Amortize(time.Now().UTC())
	loan.Status = models.ApplicationApproved
	if err := s.loanRepo.UpdateDecision(ctx, loan); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if _, err := s.userRepo.ChangeBalance(ctx, loan.UserID, models.DefaultCurrency, loan.Amount); err != nil {
		span.RecordError(err)
		slog.Error("failed to credit loan principal", "loan_id", loanID, "user_id", loan.UserID, "error", err)
		return nil, err
	}
	meta := &models.TransferMeta{
		TxRef:    newAdjustmentRef(),
		UserID:   loan.UserID,
		Type:     models.TypeCredit,
		Amount:   loan.Amount,
		Currency: models.DefaultCurrency,
		Success:  true,
	}
	if err := s.transferRepo.CreateMeta(ctx, meta); err != nil {
		slog.Error("failed to record loan payout meta", "loan_id", loanID, "error", err)
	}

	s.notify(ctx, loan.UserID,
		fmt.Sprintf("Loan #%d approved: %d monthly payments of %s, total %s.", loan.ID, loan.DurationMonths, loan.MonthlyPayment, loan.TotalAmount),
		"/loans")
	if user, uerr := s.userRepo.GetByID(ctx, loan.UserID); uerr == nil {
		sendEmailAsync(s.kafkaProducer, user.Email, "Loan approved",
			fmt.Sprintf("Your loan of %s was approved. Monthly payment: %s over %d months.", loan.Amount, loan.MonthlyPayment, loan.DurationMonths))
	}

	slog.Info("loan approved", "loan_id", loanID, "user_id", loan.UserID, "monthly_payment", loan.MonthlyPayment)
	return loan, nil
}

func (s *adminService) DeclineLoan(ctx context.Context, loanID int32) error {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return err
	}
	loan.Status = models.ApplicationDeclined
	if err := s.loanRepo.UpdateDecision(ctx, loan); err != nil {
		return err
	}
	s.notify(ctx, loan.UserID, fmt.Sprintf("Loan application #%d was declined.", loanID), "/loans")
	slog.Info("loan declined", "loan_id", loanID, "user_id", loan.UserID)
	return nil
}

func (s *adminService) ApproveCard(ctx context.Context, cardID int32) error {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if err := s.cardRepo.UpdateStatus(ctx, cardID, models.ApplicationApproved); err != nil {
		return err
	}
	s.notify(ctx, card.UserID, fmt.Sprintf("Your %s card application was approved.", card.CardType), "/cards")
	slog.Info("card approved", "card_id", cardID, "user_id", card.UserID)
	return nil
}

func (s *adminService) DeclineCard(ctx context.Context, cardID int32) error {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if err := s.cardRepo.UpdateStatus(ctx, cardID, models.ApplicationDeclined); err != nil {
		return err
	}
	s.notify(ctx, card.UserID, fmt.Sprintf("Your %s card application was declined.", card.CardType), "/cards")
	slog.Info("card declined", "card_id", cardID, "user_id", card.UserID)
	return nil
}
