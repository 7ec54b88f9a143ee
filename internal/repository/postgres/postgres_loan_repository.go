package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finbright/bankcore/internal/models"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
)

type PostgresLoanRepository struct {
	db *sql.DB
}

func NewPostgresLoanRepository(db *sql.DB) *PostgresLoanRepository {
	return &PostgresLoanRepository{db: db}
}

func (r *PostgresLoanRepository) Create(ctx context.Context, l *models.Loan) error {
	query := `
	INSERT INTO loans (user_id, amount, interest_rate, duration_months, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, l.UserID, l.Amount, l.InterestRate, l.DurationMonths, l.Status).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (r *PostgresLoanRepository) GetByID(ctx context.Context, id int32) (*models.Loan, error) {
	query := `SELECT id, user_id, amount, interest_rate, duration_months, monthly_payment, total_amount, due_date, status, created_at FROM loans WHERE id = $1`
	var l models.Loan
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.UserID, &l.Amount, &l.InterestRate, &l.DurationMonths,
		&l.MonthlyPayment, &l.TotalAmount, &l.DueDate, &l.Status, &l.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrLoanNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return &l, nil
}

func (r *PostgresLoanRepository) HasPending(ctx context.Context, userID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM loans WHERE user_id = $1 AND status = $2)`
	if err := r.db.QueryRowContext(ctx, query, userID, models.ApplicationPending).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending loans: %w", err)
	}
	return exists, nil
}

func (r *PostgresLoanRepository) UpdateDecision(ctx context.Context, l *models.Loan) error {
	query := `
	UPDATE loans
	SET status = $1, monthly_payment = $2, total_amount = $3, due_date = $4
	WHERE id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, l.Status, l.MonthlyPayment, l.TotalAmount, l.DueDate, l.ID, models.ApplicationPending)
	if err != nil {
		return fmt.Errorf("failed to update loan decision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update loan decision: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrLoanNotFound
	}
	return nil
}

func (r *PostgresLoanRepository) ListByUser(ctx context.Context, userID int32) ([]models.Loan, error) {
	query := `SELECT id, user_id, amount, interest_rate, duration_months, monthly_payment, total_amount, due_date, status, created_at FROM loans WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		var l models.Loan
		err := rows.Scan(
			&l.ID, &l.UserID, &l.Amount, &l.InterestRate, &l.DurationMonths,
			&l.MonthlyPayment, &l.TotalAmount, &l.DueDate, &l.Status, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}
