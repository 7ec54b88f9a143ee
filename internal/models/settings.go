package models

import "time"

// SystemOption is an admin-configured key/value setting. Epoch increases on
// every write so callers can tell which generation of a value they saw.
type SystemOption struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Epoch     int64     `json:"epoch"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known settings keys.
const (
	OptionTransfersEnabled = "transfers.enabled"
	OptionTransferCharge   = "transfer.charge"
)
