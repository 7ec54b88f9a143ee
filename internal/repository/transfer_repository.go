package repository

import (
	"context"

	"github.com/finbright/bankcore/internal/models"
	"github.com/shopspring/decimal"
)

type TransferRepository interface {
	Create(ctx context.Context, t *models.Transfer) error
	GetByTxRef(ctx context.Context, txRef string) (*models.Transfer, error)
	ListByUser(ctx context.Context, userID int32) ([]models.Transfer, error)

	// UpdateSteps persists the verification sub-record, status and
	// completion stamp. The write is guarded by the transfer's version;
	// a concurrent writer surfaces as ErrVersionConflict.
	UpdateSteps(ctx context.Context, t *models.Transfer) error

	// Settle atomically debits amount+charge from the owner's balance,
	// flips the transfer to success/debit and writes the TransferMeta
	// audit row. All three writes share one database transaction.
	Settle(ctx context.Context, t *models.Transfer) (newBalance decimal.Decimal, err error)

	MarkFailed(ctx context.Context, txRef string) error

	CreateMeta(ctx context.Context, m *models.TransferMeta) error
	ListMetaByUser(ctx context.Context, userID int32) ([]models.TransferMeta, error)
}
