package service

import (
	"context"
	"log/slog"

	"github.com/finbright/bankcore/internal/models"
	"github.com/finbright/bankcore/internal/repository"
)

type NotificationService interface {
	List(ctx context.Context, userID int32) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID int32) error
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) *notificationService {
	return &notificationService{notificationRepo: notificationRepo}
}

func (s *notificationService) List(ctx context.Context, userID int32) ([]models.Notification, error) {
	notifications, err := s.notificationRepo.ListByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to list notifications", "user_id", userID, "error", err)
		return nil, err
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID int32) error {
	return s.notificationRepo.MarkRead(ctx, id, userID)
}
