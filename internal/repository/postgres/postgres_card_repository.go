package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finbright/bankcore/internal/models"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
)

type PostgresCardRepository struct {
	db *sql.DB
}

func NewPostgresCardRepository(db *sql.DB) *PostgresCardRepository {
	return &PostgresCardRepository{db: db}
}

func (r *PostgresCardRepository) Create(ctx context.Context, c *models.Card) error {
	query := `INSERT INTO cards (user_id, card_type, status) VALUES ($1, $2, $3) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, c.UserID, c.CardType, c.Status).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card application: %w", err)
	}
	return nil
}

func (r *PostgresCardRepository) GetByID(ctx context.Context, id int32) (*models.Card, error) {
	query := `SELECT id, user_id, card_type, status, created_at FROM cards WHERE id = $1`
	var c models.Card
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.CardType, &c.Status, &c.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrCardNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &c, nil
}

func (r *PostgresCardRepository) HasPending(ctx context.Context, userID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM cards WHERE user_id = $1 AND status = $2)`
	if err := r.db.QueryRowContext(ctx, query, userID, models.ApplicationPending).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending cards: %w", err)
	}
	return exists, nil
}

func (r *PostgresCardRepository) UpdateStatus(ctx context.Context, id int32, status models.ApplicationStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cards SET status = $1 WHERE id = $2 AND status = $3`, status, id, models.ApplicationPending)
	if err != nil {
		return fmt.Errorf("failed to update card status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update card status: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrCardNotFound
	}
	return nil
}

func (r *PostgresCardRepository) ListByUser(ctx context.Context, userID int32) ([]models.Card, error) {
	query := `SELECT id, user_id, card_type, status, created_at FROM cards WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.CardType, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
