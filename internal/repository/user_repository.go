package repository

import (
	"context"

	"github.com/finbright/bankcore/internal/models"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int32) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetBalance(ctx context.Context, userID int32, currency string) (decimal.Decimal, error)
	ChangeBalance(ctx context.Context, userID int32, currency string, delta decimal.Decimal) (newBalance decimal.Decimal, err error)
}
