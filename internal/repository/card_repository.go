package repository

import (
	"context"

	"github.com/finbright/bankcore/internal/models"
)

type CardRepository interface {
	Create(ctx context.Context, c *models.Card) error
	GetByID(ctx context.Context, id int32) (*models.Card, error)
	HasPending(ctx context.Context, userID int32) (bool, error)
	UpdateStatus(ctx context.Context, id int32, status models.ApplicationStatus) error
	ListByUser(ctx context.Context, userID int32) ([]models.Card, error)
}
