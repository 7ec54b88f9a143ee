package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Region string

const (
	RegionLocal         Region = "local"
	RegionInternational Region = "international"
)

type TransferStatus string

const (
	StatusPending TransferStatus = "pending"
	StatusSuccess TransferStatus = "success"
	StatusFailed  TransferStatus = "failed"
)

type TransferType string

const (
	TypeCredit TransferType = "credit"
	TypeDebit  TransferType = "debit"
)

// Step names the six security-code gates an international transfer
// passes through, in fixed order.
type Step string

const (
	StepCOT Step = "cot"
	StepIMF Step = "imf"
	StepESI Step = "esi"
	StepDCO Step = "dco"
	StepTAX Step = "tax"
	StepTAC Step = "tac"
)

// StepOrder is the canonical gate sequence. A gate may only be verified
// once every gate before it is verified.
var StepOrder = []Step{StepCOT, StepIMF, StepESI, StepDCO, StepTAX, StepTAC}

type StepState struct {
	Verified   bool       `json:"verified"`
	Code       string     `json:"code,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

type VerificationSteps struct {
	COT StepState `json:"cot"`
	IMF StepState `json:"imf"`
	ESI StepState `json:"esi"`
	DCO StepState `json:"dco"`
	TAX StepState `json:"tax"`
	TAC StepState `json:"tac"`
}

// State returns the sub-record for a gate, or nil for an unknown step.
func (v *VerificationSteps) State(step Step) *StepState {
	switch step {
	case StepCOT:
		return &v.COT
	case StepIMF:
		return &v.IMF
	case StepESI:
		return &v.ESI
	case StepDCO:
		return &v.DCO
	case StepTAX:
		return &v.TAX
	case StepTAC:
		return &v.TAC
	}
	return nil
}

type Transfer struct {
	ID            int32             `json:"id"`
	TxRef         string            `json:"tx_ref"`
	UserID        int32             `json:"user_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Charge        decimal.Decimal   `json:"charge"`
	Currency      string            `json:"currency"`
	Region        Region            `json:"region"`
	Status        TransferStatus    `json:"status"`
	Type          TransferType      `json:"type"`
	BankName      string            `json:"bank_name"`
	AccountNumber string            `json:"account_number"`
	HolderName    string            `json:"holder_name"`
	OTP           string            `json:"-"`
	OTPExpiry     *time.Time        `json:"otp_expiry,omitempty"`
	Steps         VerificationSteps `json:"steps"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	Version       int32             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Total is the amount the sender's balance is debited by on settlement.
func (t *Transfer) Total() decimal.Decimal {
	return t.Amount.Add(t.Charge)
}

// TransferMeta is the write-once audit record produced by settlement and
// by admin balance adjustments. Never updated.
type TransferMeta struct {
	ID        int32           `json:"id"`
	TxRef     string          `json:"tx_ref"`
	UserID    int32           `json:"user_id"`
	Type      TransferType    `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Success   bool            `json:"success"`
	CreatedAt time.Time       `json:"created_at"`
}
