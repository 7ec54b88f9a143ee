package repository

import (
	"context"

	"github.com/finbright/bankcore/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID int32) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID int32) error
}
