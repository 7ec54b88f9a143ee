package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/finbright/bankcore/internal/models"
	service "github.com/finbright/bankcore/internal/services"
	"github.com/finbright/bankcore/internal/verification"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type transferFixture struct {
	userRepo         *MockUserRepository
	transferRepo     *MockTransferRepository
	settingsRepo     *MockSettingsRepository
	notificationRepo *MockNotificationRepository
	redisClient      *MockRedisClient
	svc              service.TransferService
}

func newTransferFixture() *transferFixture {
	f := &transferFixture{
		userRepo:         new(MockUserRepository),
		transferRepo:     new(MockTransferRepository),
		settingsRepo:     new(MockSettingsRepository),
		notificationRepo: new(MockNotificationRepository),
		redisClient:      new(MockRedisClient),
	}
	f.svc = service.NewTransferService(f.userRepo, f.transferRepo, f.settingsRepo, f.notificationRepo, f.redisClient, &stubProducer{})
	return f
}

// noSettings makes every settings lookup fall back to its default.
func (f *transferFixture) noSettings() {
	f.settingsRepo.On("Get", mock.Anything, mock.Anything).Return("", pkgerrors.ErrSettingNotFound)
}

func testUser() *models.User {
	return &models.User{
		ID:                       7,
		Username:                 "alice",
		Email:                    "alice@example.com",
		Role:                     models.RoleUser,
		CanTransfer:              true,
		CanLocalTransfer:         true,
		CanInternationalTransfer: true,
	}
}

func pendingInternational(userID int32) *models.Transfer {
	return &models.Transfer{
		ID:       1,
		TxRef:    "TRF-AAAABBBBCCCC",
		UserID:   userID,
		Amount:   decimal.NewFromInt(500),
		Currency: "USD",
		Region:   models.RegionInternational,
		Status:   models.StatusPending,
		Type:     models.TypeDebit,
	}
}

func pendingLocal(userID int32, otp string, expiry time.Time) *models.Transfer {
	return &models.Transfer{
		ID:        2,
		TxRef:     "TRF-DDDDEEEEFFFF",
		UserID:    userID,
		Amount:    decimal.NewFromInt(900),
		Charge:    decimal.NewFromInt(100),
		Currency:  "USD",
		Region:    models.RegionLocal,
		Status:    models.StatusPending,
		Type:      models.TypeDebit,
		OTP:       otp,
		OTPExpiry: &expiry,
	}
}

func TestInitiateTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("LocalGetsOTP", func(t *testing.T) {
		f := newTransferFixture()
		f.noSettings()
		f.userRepo.On("GetByID", mock.Anything, int32(7)).Return(testUser(), nil)
		f.transferRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Transfer")).Return(nil)
		f.notificationRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

		tr, err := f.svc.InitiateTransfer(ctx, 7, service.InitiateTransferInput{
			Amount:   decimal.NewFromInt(100),
			Currency: "USD",
			Region:   models.RegionLocal,
		})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPending, tr.Status)
		assert.Len(t, tr.OTP, 6)
		assert.NotNil(t, tr.OTPExpiry)
		assert.True(t, tr.Charge.IsZero())
		f.transferRepo.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("InternationalHasNoOTP", func(t *testing.T) {
		f := newTransferFixture()
		f.noSettings()
		f.userRepo.On("GetByID", mock.Anything, int32(7)).Return(testUser(), nil)
		f.transferRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Transfer")).Return(nil)
		f.notificationRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

		tr, err := f.svc.InitiateTransfer(ctx, 7, service.InitiateTransferInput{
			Amount:   decimal.NewFromInt(100),
			Currency: "USD",
			Region:   models.RegionInternational,
		})
		assert.NoError(t, err)
		assert.Empty(t, tr.OTP)
		assert.Nil(t, tr.OTPExpiry)
	})

	t.Run("ChargeFromSettings", func(t *testing.T) {
		f := newTransferFixture()
		f.settingsRepo.On("Get", mock.Anything, models.OptionTransfersEnabled).Return("", pkgerrors.ErrSettingNotFound)
		f.settingsRepo.On("Get", mock.Anything, models.OptionTransferCharge).Return("25.50", nil)
		f.userRepo.On("GetByID", mock.Anything, int32(7)).Return(testUser(), nil)
		f.transferRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Transfer")).Return(nil)
		f.notificationRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

		tr, err := f.svc.InitiateTransfer(ctx, 7, service.InitiateTransferInput{
			Amount:   decimal.NewFromInt(100),
			Currency: "USD",
			Region:   models.RegionLocal,
		})
		assert.NoError(t, err)
		assert.Equal(t, "25.5", tr.Charge.String())
		assert.Equal(t, "125.5", tr.Total().String())
	})

	t.Run("NotPermitted", func(t *testing.T) {
		f := newTransferFixture()
		user := testUser()
		user.CanInternationalTransfer = false
		f.userRepo.On("GetByID", mock.Anything, int32(7)).Return(user, nil)

		_, err := f.svc.InitiateTransfer(ctx, 7, service.InitiateTransferInput{
			Amount:   decimal.NewFromInt(100),
			Currency: "USD",
			Region:   models.RegionInternational,
		})
		assert.ErrorIs(t, err, pkgerrors.ErrUnauthorized)
		f.transferRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("TransfersDisabled", func(t *testing.T) {
		f := newTransferFixture()
		f.settingsRepo.On("Get", mock.Anything, models.OptionTransfersEnabled).Return("false", nil)
		f.userRepo.On("GetByID", mock.Anything, int32(7)).Return(testUser(), nil)

		_, err := f.svc.InitiateTransfer(ctx, 7, service.InitiateTransferInput{
			Amount:   decimal.NewFromInt(100),
			Currency: "USD",
			Region:   models.RegionLocal,
		})
		assert.ErrorIs(t, err, pkgerrors.ErrTransfersDisabled)
		f.transferRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("DuplicateRequestID", func(t *testing.T) {
		f := newTransferFixture()
		f.redisClient.On("Get", mock.Anything, "request:req-1").Return("pending", nil)

		_, err := f.svc.InitiateTransfer(ctx, 7, service.InitiateTransferInput{
			Amount:    decimal.NewFromInt(100),
			Currency:  "USD",
			Region:    models.RegionLocal,
			RequestID: "req-1",
		})
		assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyProcessed)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		f := newTransferFixture()
		_, err := f.svc.InitiateTransfer(ctx, 7, service.InitiateTransferInput{
			Amount:   decimal.NewFromInt(-5),
			Currency: "USD",
			Region:   models.RegionLocal,
		})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}

func TestSubmitVerificationCode(t *testing.T) {
	ctx := context.Background()

	t.Run("OutOfOrderLeavesTransferUntouched", func(t *testing.T) {
		f := newTransferFixture()
		f.noSettings()
		tr := pendingInternational(7)
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.SubmitVerificationCode(ctx, 7, tr.TxRef, models.StepIMF, verification.DefaultCodes[models.StepIMF])
		assert.ErrorIs(t, err, pkgerrors.ErrSequenceViolation)
		assert.False(t, tr.Steps.IMF.Verified)
		f.transferRepo.AssertNotCalled(t, "UpdateSteps", mock.Anything, mock.Anything)
	})

	t.Run("WrongCodeLeavesTransferUntouched", func(t *testing.T) {
		f := newTransferFixture()
		f.noSettings()
		tr := pendingInternational(7)
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.SubmitVerificationCode(ctx, 7, tr.TxRef, models.StepCOT, "COT-000000")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCode)
		assert.False(t, tr.Steps.COT.Verified)
		f.transferRepo.AssertNotCalled(t, "UpdateSteps", mock.Anything, mock.Anything)
	})

	t.Run("RepeatedStepRejected", func(t *testing.T) {
		f := newTransferFixture()
		f.noSettings()
		tr := pendingInternational(7)
		tr.Steps.COT = models.StepState{Verified: true, Code: verification.DefaultCodes[models.StepCOT]}
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.SubmitVerificationCode(ctx, 7, tr.TxRef, models.StepCOT, verification.DefaultCodes[models.StepCOT])
		assert.ErrorIs(t, err, pkgerrors.ErrStepAlreadyVerified)
		f.transferRepo.AssertNotCalled(t, "UpdateSteps", mock.Anything, mock.Anything)
	})

	t.Run("FullChainCompletesTransfer", func(t *testing.T) {
		f := newTransferFixture()
		f.noSettings()
		tr := pendingInternational(7)
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)
		f.transferRepo.On("UpdateSteps", mock.Anything, tr).Return(nil)
		f.userRepo.On("GetByID", mock.Anything, int32(7)).Return(testUser(), nil)
		f.notificationRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

		for i, step := range models.StepOrder {
			result, err := f.svc.SubmitVerificationCode(ctx, 7, tr.TxRef, step, verification.DefaultCodes[step])
			assert.NoError(t, err)
			last := i == len(models.StepOrder)-1
			assert.Equal(t, last, result.Completed)
			if !last {
				assert.Equal(t, models.StepOrder[i+1], result.NextStep)
			}
		}

		assert.NotNil(t, tr.CompletedAt)
		assert.Equal(t, models.StatusPending, tr.Status)
		for _, step := range models.StepOrder {
			assert.True(t, tr.Steps.State(step).Verified)
		}
		f.transferRepo.AssertNumberOfCalls(t, "UpdateSteps", len(models.StepOrder))
		f.notificationRepo.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("LocalTransferRejected", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingLocal(7, "123456", time.Now().Add(time.Minute))
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.SubmitVerificationCode(ctx, 7, tr.TxRef, models.StepCOT, verification.DefaultCodes[models.StepCOT])
		assert.ErrorIs(t, err, pkgerrors.ErrWrongRegion)
	})

	t.Run("ForeignTransferHidden", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingInternational(99)
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.SubmitVerificationCode(ctx, 7, tr.TxRef, models.StepCOT, verification.DefaultCodes[models.StepCOT])
		assert.ErrorIs(t, err, pkgerrors.ErrTransferNotFound)
	})
}

func TestConfirmOTP(t *testing.T) {
	ctx := context.Background()

	lockMocks := func(f *transferFixture) {
		f.redisClient.On("SetNX", mock.Anything, mock.Anything, "locked", 3*time.Second).Return(true, nil)
		f.redisClient.On("Del", mock.Anything, mock.Anything).Return(nil)
	}

	t.Run("SettlesTransfer", func(t *testing.T) {
		f := newTransferFixture()
		lockMocks(f)
		tr := pendingLocal(7, "123456", time.Now().Add(time.Minute))
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)
		f.transferRepo.On("Settle", mock.Anything, tr).Run(func(args mock.Arguments) {
			settled := args.Get(1).(*models.Transfer)
			settled.Status = models.StatusSuccess
			settled.Type = models.TypeDebit
		}).Return(decimal.NewFromInt(0), nil)
		f.userRepo.On("GetByID", mock.Anything, int32(7)).Return(testUser(), nil)
		f.notificationRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

		got, err := f.svc.ConfirmOTP(ctx, 7, tr.TxRef, "123456")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, got.Status)
		assert.Equal(t, "1000", got.Total().String())
		f.transferRepo.AssertNumberOfCalls(t, "Settle", 1)
		f.notificationRepo.AssertNumberOfCalls(t, "Create", 1)
		f.redisClient.AssertNumberOfCalls(t, "Del", 2)
	})

	t.Run("WrongOTP", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingLocal(7, "123456", time.Now().Add(time.Minute))
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.ConfirmOTP(ctx, 7, tr.TxRef, "999999")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidOtp)
		f.transferRepo.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
	})

	t.Run("ExpiredOTP", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingLocal(7, "123456", time.Now().Add(-time.Minute))
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.ConfirmOTP(ctx, 7, tr.TxRef, "123456")
		assert.ErrorIs(t, err, pkgerrors.ErrOtpExpired)
		f.transferRepo.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
	})

	t.Run("InsufficientFundsReleasesLocks", func(t *testing.T) {
		f := newTransferFixture()
		lockMocks(f)
		tr := pendingLocal(7, "123456", time.Now().Add(time.Minute))
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)
		f.transferRepo.On("Settle", mock.Anything, tr).Return(decimal.Decimal{}, pkgerrors.ErrInsufficientFunds)

		_, err := f.svc.ConfirmOTP(ctx, 7, tr.TxRef, "123456")
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.Equal(t, models.StatusPending, tr.Status)
		f.redisClient.AssertNumberOfCalls(t, "Del", 2)
	})

	t.Run("BalanceLocked", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingLocal(7, "123456", time.Now().Add(time.Minute))
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)
		f.redisClient.On("SetNX", mock.Anything, mock.Anything, "locked", 3*time.Second).Return(false, nil)

		_, err := f.svc.ConfirmOTP(ctx, 7, tr.TxRef, "123456")
		assert.ErrorIs(t, err, pkgerrors.ErrBalanceLocked)
		f.transferRepo.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
	})

	t.Run("InternationalRejected", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingInternational(7)
		f.transferRepo.On("GetByTxRef", mock.Anything, tr.TxRef).Return(tr, nil)

		_, err := f.svc.ConfirmOTP(ctx, 7, tr.TxRef, "123456")
		assert.ErrorIs(t, err, pkgerrors.ErrWrongRegion)
	})
}

func TestGetBalance(t *testing.T) {
	f := newTransferFixture()
	f.userRepo.On("GetBalance", mock.Anything, int32(7), models.DefaultCurrency).Return(decimal.NewFromInt(150), nil)

	balance, err := f.svc.GetBalance(context.Background(), 7, "")
	assert.NoError(t, err)
	assert.Equal(t, "150", balance.String())
}
