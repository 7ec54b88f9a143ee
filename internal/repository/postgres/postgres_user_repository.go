package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finbright/bankcore/internal/models"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/shopspring/decimal"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create inserts the user and seeds a zero balance in the default currency,
// both in one transaction.
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.ErrNilUser
	}
	if user.Username == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: username and password are required", pkgerrors.ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO users (username, email, password_hash, role, can_transfer, can_local_transfer, can_international_transfer)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at
	`
	err = tx.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CanTransfer,
		user.CanLocalTransfer,
		user.CanInternationalTransfer,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (user_id, currency, balance) VALUES ($1, $2, 0)`,
		user.ID, models.DefaultCurrency,
	)
	if err != nil {
		return fmt.Errorf("failed to seed balance: %w", err)
	}

	return tx.Commit()
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int32) (*models.User, error) {
	query := `SELECT id, username, email, role, can_transfer, can_local_transfer, can_international_transfer, created_at FROM users WHERE id = $1`
	var user models.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.CanTransfer,
		&user.CanLocalTransfer,
		&user.CanInternationalTransfer,
		&user.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrInvalidInput)
	}

	query := `SELECT id, username, email, password_hash, role, can_transfer, can_local_transfer, can_international_transfer, created_at FROM users WHERE username = $1`

	var user models.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CanTransfer,
		&user.CanLocalTransfer,
		&user.CanInternationalTransfer,
		&user.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &user, nil
}

// GetBalance returns the balance in a currency. A user with no row for the
// currency simply has a zero balance.
func (r *PostgresUserRepository) GetBalance(ctx context.Context, userID int32, currency string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `SELECT balance FROM balances WHERE user_id = $1 AND currency = $2`
	err := r.db.QueryRowContext(ctx, query, userID, currency).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return decimal.Zero, nil
	case err != nil:
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// ChangeBalance applies a signed delta to one currency entry. Debits are
// guarded in SQL so the balance can never go below zero; credits upsert the
// currency row.
func (r *PostgresUserRepository) ChangeBalance(ctx context.Context, userID int32, currency string, delta decimal.Decimal) (newBalance decimal.Decimal, err error) {
	if delta.IsNegative() {
		query := `
		UPDATE balances
		SET balance = balance + $1
		WHERE user_id = $2 AND currency = $3
		AND (balance + $1) >= 0
		RETURNING balance
		`
		err = r.db.QueryRowContext(ctx, query, delta, userID, currency).Scan(&newBalance)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, pkgerrors.ErrInsufficientFunds
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to debit balance: %w", err)
		}
		return newBalance, nil
	}

	query := `
	INSERT INTO balances (user_id, currency, balance)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, currency)
	DO UPDATE SET balance = balances.balance + EXCLUDED.balance
	RETURNING balance
	`
	err = r.db.QueryRowContext(ctx, query, userID, currency, delta).Scan(&newBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit balance: %w", err)
	}
	return newBalance, nil
}
