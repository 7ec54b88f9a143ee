package verification_test

import (
	"testing"
	"time"

	"github.com/finbright/bankcore/internal/models"
	"github.com/finbright/bankcore/internal/verification"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func applyDefault(t *testing.T, m *verification.Machine, steps *models.VerificationSteps, step models.Step) error {
	t.Helper()
	return m.Apply(steps, step, verification.DefaultCodes[step], verification.DefaultCodes[step], time.Now())
}

func TestMachine_Apply(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("UnknownStep", func(t *testing.T) {
		m := verification.New()
		var steps models.VerificationSteps
		err := m.Apply(&steps, models.Step("xyz"), "code", "code", now)
		assert.ErrorIs(t, err, pkgerrors.ErrUnknownStep)
	})

	t.Run("OutOfOrderRejectedWithoutMutation", func(t *testing.T) {
		m := verification.New()
		var steps models.VerificationSteps

		err := m.Apply(&steps, models.StepIMF, verification.DefaultCodes[models.StepIMF], verification.DefaultCodes[models.StepIMF], now)
		assert.ErrorIs(t, err, pkgerrors.ErrSequenceViolation)
		assert.False(t, steps.IMF.Verified)
		assert.Empty(t, steps.IMF.Code)
		assert.Nil(t, steps.IMF.VerifiedAt)
		assert.Equal(t, -1, m.MaxVerifiedIndex(&steps))
	})

	t.Run("WrongCodeRejectedWithoutMutation", func(t *testing.T) {
		m := verification.New()
		var steps models.VerificationSteps

		err := m.Apply(&steps, models.StepCOT, "WRONG-000000", verification.DefaultCodes[models.StepCOT], now)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCode)
		assert.False(t, steps.COT.Verified)
		assert.Nil(t, steps.COT.VerifiedAt)
	})

	t.Run("EmptyCodeRejected", func(t *testing.T) {
		m := verification.New()
		var steps models.VerificationSteps

		err := m.Apply(&steps, models.StepCOT, "", verification.DefaultCodes[models.StepCOT], now)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCode)
		assert.False(t, steps.COT.Verified)
	})

	t.Run("RepeatedVerifiedStepRejected", func(t *testing.T) {
		m := verification.New()
		var steps models.VerificationSteps

		assert.NoError(t, applyDefault(t, m, &steps, models.StepCOT))
		err := applyDefault(t, m, &steps, models.StepCOT)
		assert.ErrorIs(t, err, pkgerrors.ErrStepAlreadyVerified)
		assert.True(t, steps.COT.Verified)
	})

	t.Run("FullChain", func(t *testing.T) {
		m := verification.New()
		var steps models.VerificationSteps

		for i, step := range models.StepOrder {
			next, ok := m.Next(&steps)
			assert.True(t, ok)
			assert.Equal(t, step, next)
			assert.False(t, m.Complete(&steps))

			assert.NoError(t, applyDefault(t, m, &steps, step))
			assert.Equal(t, i, m.MaxVerifiedIndex(&steps))
		}

		assert.True(t, m.Complete(&steps))
		_, ok := m.Next(&steps)
		assert.False(t, ok)

		for _, step := range models.StepOrder {
			state := steps.State(step)
			assert.True(t, state.Verified)
			assert.Equal(t, verification.DefaultCodes[step], state.Code)
			assert.NotNil(t, state.VerifiedAt)
		}
	})

	t.Run("SkippingAheadAfterPartialChain", func(t *testing.T) {
		m := verification.New()
		var steps models.VerificationSteps

		assert.NoError(t, applyDefault(t, m, &steps, models.StepCOT))
		assert.NoError(t, applyDefault(t, m, &steps, models.StepIMF))

		err := applyDefault(t, m, &steps, models.StepDCO)
		assert.ErrorIs(t, err, pkgerrors.ErrSequenceViolation)
		assert.False(t, steps.DCO.Verified)

		assert.NoError(t, applyDefault(t, m, &steps, models.StepESI))
	})
}

func TestMachine_Index(t *testing.T) {
	m := verification.New()
	assert.Equal(t, 0, m.Index(models.StepCOT))
	assert.Equal(t, 5, m.Index(models.StepTAC))
	assert.Equal(t, -1, m.Index(models.Step("nope")))
}

func TestSettingKey(t *testing.T) {
	assert.Equal(t, "verify.code.cot", verification.SettingKey(models.StepCOT))
	assert.Equal(t, "verify.code.tac", verification.SettingKey(models.StepTAC))
}
