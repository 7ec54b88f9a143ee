package models

import "time"

type Card struct {
	ID        int32             `json:"id"`
	UserID    int32             `json:"user_id"`
	CardType  string            `json:"card_type"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}
