package repository

import (
	"context"

	"github.com/finbright/bankcore/internal/models"
)

type LoanRepository interface {
	Create(ctx context.Context, l *models.Loan) error
	GetByID(ctx context.Context, id int32) (*models.Loan, error)
	HasPending(ctx context.Context, userID int32) (bool, error)
	UpdateDecision(ctx context.Context, l *models.Loan) error
	ListByUser(ctx context.Context, userID int32) ([]models.Loan, error)
}
