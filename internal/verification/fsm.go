// Package verification holds the state machine gating international
// transfers. A transfer moves through six ordered code checks
// (cot, imf, esi, dco, tax, tac); the final gate hands the transfer over
// to admin approval.
package verification

import (
	"time"

	"github.com/finbright/bankcore/internal/models"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
)

// SettingKey is the settings-store key holding the expected code for a gate.
func SettingKey(step models.Step) string {
	return "verify.code." + string(step)
}

// DefaultCodes is used when an admin has not configured a code yet.
var DefaultCodes = map[models.Step]string{
	models.StepCOT: "COT-184650",
	models.StepIMF: "IMF-772910",
	models.StepESI: "ESI-903114",
	models.StepDCO: "DCO-335728",
	models.StepTAX: "TAX-569041",
	models.StepTAC: "TAC-410266",
}

// Machine enforces the fixed gate ordering. It is stateless; the state lives
// in the transfer's verification sub-record.
type Machine struct {
	order []models.Step
}

func New() *Machine {
	return &Machine{order: models.StepOrder}
}

// Index returns a gate's position in the sequence, or -1 for unknown steps.
func (m *Machine) Index(step models.Step) int {
	for i, s := range m.order {
		if s == step {
			return i
		}
	}
	return -1
}

// MaxVerifiedIndex returns the index of the last verified gate, -1 when none
// are verified. Gates are only ever verified front-to-back, so the verified
// prefix fully describes the machine's state.
func (m *Machine) MaxVerifiedIndex(steps *models.VerificationSteps) int {
	max := -1
	for i, s := range m.order {
		if steps.State(s).Verified {
			max = i
		}
	}
	return max
}

// Next returns the first unverified gate. ok is false once every gate is
// verified.
func (m *Machine) Next(steps *models.VerificationSteps) (step models.Step, ok bool) {
	for _, s := range m.order {
		if !steps.State(s).Verified {
			return s, true
		}
	}
	return "", false
}

// Complete reports whether all gates, including the final tac authorization,
// are verified.
func (m *Machine) Complete(steps *models.VerificationSteps) bool {
	_, ok := m.Next(steps)
	return !ok
}

// Apply attempts to verify one gate. It mutates steps only when every
// precondition holds: the step exists, all prior gates are verified, the gate
// itself is not, and the submitted code matches the expected one.
func (m *Machine) Apply(steps *models.VerificationSteps, step models.Step, code, expected string, now time.Time) error {
	idx := m.Index(step)
	if idx < 0 {
		return pkgerrors.ErrUnknownStep
	}
	state := steps.State(step)
	if state.Verified {
		return pkgerrors.ErrStepAlreadyVerified
	}
	if m.MaxVerifiedIndex(steps) < idx-1 {
		return pkgerrors.ErrSequenceViolation
	}
	if code == "" || code != expected {
		return pkgerrors.ErrInvalidCode
	}
	state.Verified = true
	state.Code = code
	state.VerifiedAt = &now
	return nil
}
