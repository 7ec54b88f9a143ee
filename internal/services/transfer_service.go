package service

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/finbright/bankcore/internal/infrastructure/kafka"
	"github.com/finbright/bankcore/internal/infrastructure/observability"
	"github.com/finbright/bankcore/internal/infrastructure/redis"
	"github.com/finbright/bankcore/internal/models"
	"github.com/finbright/bankcore/internal/repository"
	"github.com/finbright/bankcore/internal/verification"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const otpTTL = 10 * time.Minute

type InitiateTransferInput struct {
	Amount        decimal.Decimal
	Currency      string
	Region        models.Region
	BankName      string
	AccountNumber string
	HolderName    string
	RequestID     string
}

// VerificationResult reports where the code chain stands after a submission.
type VerificationResult struct {
	TxRef     string      `json:"tx_ref"`
	Completed bool        `json:"completed"`
	NextStep  models.Step `json:"next_step,omitempty"`
}

type TransferService interface {
	InitiateTransfer(ctx context.Context, userID int32, in InitiateTransferInput) (*models.Transfer, error)
	GetTransfer(ctx context.Context, userID int32, txRef string) (*models.Transfer, error)
	SubmitVerificationCode(ctx context.Context, userID int32, txRef string, step models.Step, code string) (*VerificationResult, error)
	ConfirmOTP(ctx context.Context, userID int32, txRef, otp string) (*models.Transfer, error)
	ListTransfers(ctx context.Context, userID int32) ([]models.Transfer, error)
	History(ctx context.Context, userID int32) ([]models.TransferMeta, error)
	GetBalance(ctx context.Context, userID int32, currency string) (decimal.Decimal, error)
}

type transferService struct {
	userRepo         repository.UserRepository
	transferRepo     repository.TransferRepository
	settingsRepo     repository.SettingsRepository
	notificationRepo repository.NotificationRepository
	redisClient      redis.RedisClient
	kafkaProducer    kafka.KafkaProducer
	fsm              *verification.Machine
}

func NewTransferService(
	userRepo repository.UserRepository,
	transferRepo repository.TransferRepository,
	settingsRepo repository.SettingsRepository,
	notificationRepo repository.NotificationRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
) *transferService {
	return &transferService{
		userRepo:         userRepo,
		transferRepo:     transferRepo,
		settingsRepo:     settingsRepo,
		notificationRepo: notificationRepo,
		redisClient:      redisClient,
		kafkaProducer:    kafkaProducer,
		fsm:              verification.New(),
	}
}

func newTxRef() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TRF-" + raw[:12]
}

func newOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a time-derived code rather than aborting the transfer.
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// transfersEnabled reads the global toggle per call so admin flips take
// effect immediately.
func (s *transferService) transfersEnabled(ctx context.Context) bool {
	val, err := s.settingsRepo.Get(ctx, models.OptionTransfersEnabled)
	if stderrors.Is(err, pkgerrors.ErrSettingNotFound) {
		return true
	}
	if err != nil {
		slog.Error("failed to read transfers toggle, assuming enabled", "error", err)
		return true
	}
	return val != "false"
}

func (s *transferService) transferCharge(ctx context.Context) decimal.Decimal {
	val, err := s.settingsRepo.Get(ctx, models.OptionTransferCharge)
	if err != nil {
		return decimal.Zero
	}
	charge, err := decimal.NewFromString(val)
	if err != nil || charge.IsNegative() {
		slog.Error("invalid transfer charge setting", "value", val)
		return decimal.Zero
	}
	return charge
}

// expectedCode resolves the configured value for a gate, falling back to the
// hardcoded default when the admin has never set one.
func (s *transferService) expectedCode(ctx context.Context, step models.Step) (string, error) {
	val, err := s.settingsRepo.Get(ctx, verification.SettingKey(step))
	if stderrors.Is(err, pkgerrors.ErrSettingNotFound) {
		return verification.DefaultCodes[step], nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read code for step %s: %w", step, err)
	}
	return val, nil
}

func (s *transferService) notify(ctx context.Context, userID int32, message, redirect string) {
	n := &models.Notification{UserID: userID, Message: message, Redirect: redirect}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		slog.Error("failed to create notification", "user_id", userID, "error", err)
	}
}

func (s *transferService) InitiateTransfer(ctx context.Context, userID int32, in InitiateTransferInput) (*models.Transfer, error) {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "InitiateTransfer")
	span.SetAttributes(attribute.Int("user_id", int(userID)), attribute.String("region", string(in.Region)))
	defer span.End()

	if !in.Amount.IsPositive() || in.Currency == "" {
		span.SetStatus(codes.Error, "invalid input")
		return nil, pkgerrors.ErrInvalidInput
	}
	if in.Region != models.RegionLocal && in.Region != models.RegionInternational {
		span.SetStatus(codes.Error, "invalid region")
		return nil, pkgerrors.ErrInvalidInput
	}

	if in.RequestID != "" {
		requestKey := fmt.Sprintf("request:%s", in.RequestID)
		if _, err := s.redisClient.Get(ctx, requestKey); err == nil {
			slog.Error("request already processed", "request_id", in.RequestID, "user_id", userID)
			span.SetStatus(codes.Error, "request already processed")
			return nil, pkgerrors.ErrRequestAlreadyProcessed
		}
		if err := s.redisClient.Set(ctx, requestKey, "pending", 24*time.Hour); err != nil {
			slog.Error("failed to set request key", "request_id", in.RequestID, "error", err)
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sender not found")
		return nil, err
	}

	if !user.CanTransfer ||
		(in.Region == models.RegionLocal && !user.CanLocalTransfer) ||
		(in.Region == models.RegionInternational && !user.CanInternationalTransfer) {
		slog.Warn("transfer not permitted", "user_id", userID, "region", in.Region)
		span.SetStatus(codes.Error, "transfer not permitted")
		return nil, pkgerrors.ErrUnauthorized
	}

	if !s.transfersEnabled(ctx) {
		span.SetStatus(codes.Error, "transfers disabled")
		return nil, pkgerrors.ErrTransfersDisabled
	}

	t := &models.Transfer{
		TxRef:         newTxRef(),
		UserID:        userID,
		Amount:        in.Amount,
		Charge:        s.transferCharge(ctx),
		Currency:      in.Currency,
		Region:        in.Region,
		Status:        models.StatusPending,
		Type:          models.TypeDebit,
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		HolderName:    in.HolderName,
	}

	if in.Region == models.RegionLocal {
		t.OTP = newOTP()
		expiry := time.Now().Add(otpTTL)
		t.OTPExpiry = &expiry
	}

	if err := s.transferRepo.Create(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer creation failed")
		return nil, err
	}

	s.notify(ctx, userID, fmt.Sprintf("Transfer %s of %s %s initiated.", t.TxRef, t.Amount, t.Currency), "/transfers/"+t.TxRef)
	if in.Region == models.RegionLocal {
		sendEmailAsync(s.kafkaProducer, user.Email, "Your transfer confirmation code",
			fmt.Sprintf("Use code %s to confirm transfer %s. It expires in %d minutes.", t.OTP, t.TxRef, int(otpTTL.Minutes())))
	} else {
		sendEmailAsync(s.kafkaProducer, user.Email, "International transfer initiated",
			fmt.Sprintf("Transfer %s of %s %s requires security code verification before release.", t.TxRef, t.Amount, t.Currency))
	}

	slog.Info("transfer initiated", "tx_ref", t.TxRef, "user_id", userID, "region", t.Region, "amount", t.Amount)
	return t, nil
}

// ownedTransfer loads a transfer and hides its existence from non-owners.
func (s *transferService) ownedTransfer(ctx context.Context, userID int32, txRef string) (*models.Transfer, error) {
	t, err := s.transferRepo.GetByTxRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, pkgerrors.ErrTransferNotFound
	}
	return t, nil
}

func (s *transferService) GetTransfer(ctx context.Context, userID int32, txRef string) (*models.Transfer, error) {
	return s.ownedTransfer(ctx, userID, txRef)
}

func (s *transferService) SubmitVerificationCode(ctx context.Context, userID int32, txRef string, step models.Step, code string) (*VerificationResult, error) {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "SubmitVerificationCode")
	span.SetAttributes(attribute.String("tx_ref", txRef), attribute.String("step", string(step)))
	defer span.End()

	t, err := s.ownedTransfer(ctx, userID, txRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer lookup failed")
		return nil, err
	}
	if t.Region != models.RegionInternational {
		span.SetStatus(codes.Error, "wrong region")
		return nil, pkgerrors.ErrWrongRegion
	}
	if t.Status != models.StatusPending {
		span.SetStatus(codes.Error, "transfer not pending")
		return nil, pkgerrors.ErrTransferNotPending
	}
	if !s.transfersEnabled(ctx) {
		span.SetStatus(codes.Error, "transfers disabled")
		return nil, pkgerrors.ErrTransfersDisabled
	}

	expected, err := s.expectedCode(ctx, step)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settings read failed")
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.fsm.Apply(&t.Steps, step, code, expected, now); err != nil {
		slog.Warn("verification step rejected", "tx_ref", txRef, "step", step, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	completed := s.fsm.Complete(&t.Steps)
	if completed {
		t.CompletedAt = &now
	}

	if err := s.transferRepo.UpdateSteps(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step persist failed")
		return nil, err
	}

	result := &VerificationResult{TxRef: txRef, Completed: completed}
	if completed {
		s.notify(ctx, userID, fmt.Sprintf("Transfer %s passed all security checks and awaits approval.", txRef), "/transfers/"+txRef)
		if user, uerr := s.userRepo.GetByID(ctx, userID); uerr == nil {
			sendEmailAsync(s.kafkaProducer, user.Email, "Transfer verification complete",
				fmt.Sprintf("Transfer %s is fully verified and pending final approval.", txRef))
		}
		slog.Info("verification chain complete", "tx_ref", txRef, "user_id", userID)
	} else {
		next, _ := s.fsm.Next(&t.Steps)
		result.NextStep = next
		slog.Info("verification step accepted", "tx_ref", txRef, "step", step, "next_step", next)
	}
	return result, nil
}

func (s *transferService) ConfirmOTP(ctx context.Context, userID int32, txRef, otp string) (*models.Transfer, error) {
	tracer := otel.Tracer("bank-service")
	ctx, span := tracer.Start(ctx, "ConfirmOTP")
	span.SetAttributes(attribute.String("tx_ref", txRef))
	defer span.End()

	t, err := s.ownedTransfer(ctx, userID, txRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer lookup failed")
		return nil, err
	}
	if t.Region != models.RegionLocal {
		span.SetStatus(codes.Error, "wrong region")
		return nil, pkgerrors.ErrWrongRegion
	}
	if t.Status != models.StatusPending {
		span.SetStatus(codes.Error, "transfer not pending")
		return nil, pkgerrors.ErrTransferNotPending
	}
	if otp == "" || otp != t.OTP {
		span.SetStatus(codes.Error, "invalid otp")
		return nil, pkgerrors.ErrInvalidOtp
	}
	if t.OTPExpiry == nil || time.Now().After(*t.OTPExpiry) {
		span.SetStatus(codes.Error, "otp expired")
		return nil, pkgerrors.ErrOtpExpired
	}

	// Serialize confirmations per transfer and per balance; two concurrent
	// confirmations on the same txRef must not both settle.
	lockKeys := []string{
		fmt.Sprintf("transfer:%s:lock", txRef),
		fmt.Sprintf("user:%d:%s:lock", userID, t.Currency),
	}
	var held []string
	release := func() {
		for _, lk := range held {
			if err := s.redisClient.Del(ctx, lk); err != nil {
				slog.Error("failed to release lock", "lock_key", lk, "error", err)
			}
		}
	}
	for _, lockKey := range lockKeys {
		ok, err := s.redisClient.SetNX(ctx, lockKey, "locked", 3*time.Second)
		if err != nil || !ok {
			release()
			slog.Error("balance is locked", "lock_key", lockKey, "error", err)
			span.SetStatus(codes.Error, "balance is locked")
			return nil, pkgerrors.ErrBalanceLocked
		}
		held = append(held, lockKey)
	}
	defer release()

	newBalance, err := s.transferRepo.Settle(ctx, t)
	if err != nil {
		observability.SettlementsTotal.WithLabelValues(string(t.Region), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		slog.Error("settlement failed", "tx_ref", txRef, "user_id", userID, "error", err)
		return nil, err
	}
	observability.SettlementsTotal.WithLabelValues(string(t.Region), "success").Inc()

	s.notify(ctx, userID, fmt.Sprintf("Transfer %s of %s %s completed.", txRef, t.Amount, t.Currency), "/transfers/"+txRef)
	if user, uerr := s.userRepo.GetByID(ctx, userID); uerr == nil {
		sendEmailAsync(s.kafkaProducer, user.Email, "Transfer completed",
			fmt.Sprintf("Transfer %s was debited for %s %s. New balance: %s %s.", txRef, t.Total(), t.Currency, newBalance, t.Currency))
	}

	slog.Info("local transfer settled", "tx_ref", txRef, "user_id", userID, "total", t.Total(), "new_balance", newBalance)
	return t, nil
}

func (s *transferService) ListTransfers(ctx context.Context, userID int32) ([]models.Transfer, error) {
	return s.transferRepo.ListByUser(ctx, userID)
}

func (s *transferService) GetBalance(ctx context.Context, userID int32, currency string) (decimal.Decimal, error) {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	balance, err := s.userRepo.GetBalance(ctx, userID, currency)
	if err != nil {
		slog.Error("failed to get balance", "user_id", userID, "currency", currency, "error", err)
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *transferService) History(ctx context.Context, userID int32) ([]models.TransferMeta, error) {
	metas, err := s.transferRepo.ListMetaByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to get transfer history", "user_id", userID, "error", err)
		return nil, err
	}
	return metas, nil
}
