package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finbright/bankcore/internal/infrastructure/observability"
	"github.com/finbright/bankcore/internal/models"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresTransferRepository struct {
	db *sql.DB
}

func NewPostgresTransferRepository(db *sql.DB) *PostgresTransferRepository {
	return &PostgresTransferRepository{db: db}
}

const transferColumns = `id, tx_ref, user_id, amount, charge, currency, region, status, tx_type, bank_name, account_number, holder_name, otp, otp_expiry, steps, completed_at, version, created_at`

func scanTransfer(row *sql.Row) (*models.Transfer, error) {
	var t models.Transfer
	var stepsRaw []byte
	err := row.Scan(
		&t.ID, &t.TxRef, &t.UserID, &t.Amount, &t.Charge, &t.Currency,
		&t.Region, &t.Status, &t.Type, &t.BankName, &t.AccountNumber,
		&t.HolderName, &t.OTP, &t.OTPExpiry, &stepsRaw, &t.CompletedAt,
		&t.Version, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepsRaw, &t.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode verification steps: %w", err)
	}
	return &t, nil
}

func (r *PostgresTransferRepository) Create(ctx context.Context, t *models.Transfer) (err error) {
	tracer := otel.Tracer("transfer-repository")
	ctx, span := tracer.Start(ctx, "CreateTransfer")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateTransfer", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateTransfer").Observe(time.Since(start).Seconds())
	}()

	if t == nil {
		err = pkgerrors.ErrNilTransfer
		return err
	}
	if t.Region != models.RegionLocal && t.Region != models.RegionInternational {
		err = fmt.Errorf("%w: region %q", pkgerrors.ErrInvalidInput, t.Region)
		return err
	}
	if !t.Amount.IsPositive() {
		err = fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
		return err
	}

	span.SetAttributes(
		attribute.String("tx_ref", t.TxRef),
		attribute.Int("user_id", int(t.UserID)),
		attribute.String("region", string(t.Region)),
		attribute.String("currency", t.Currency),
	)

	stepsRaw, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode verification steps: %w", err)
	}

	query := `
	INSERT INTO transfers (tx_ref, user_id, amount, charge, currency, region, status, tx_type, bank_name, account_number, holder_name, otp, otp_expiry, steps, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		t.TxRef, t.UserID, t.Amount, t.Charge, t.Currency, t.Region,
		t.Status, t.Type, t.BankName, t.AccountNumber, t.HolderName,
		t.OTP, t.OTPExpiry, stepsRaw,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		slog.Error("failed to create transfer", "tx_ref", t.TxRef, "user_id", t.UserID, "error", err)
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	t.Version = 0

	slog.Info("transfer created", "tx_ref", t.TxRef, "user_id", t.UserID, "region", t.Region, "amount", t.Amount)
	return nil
}

func (r *PostgresTransferRepository) GetByTxRef(ctx context.Context, txRef string) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE tx_ref = $1`
	t, err := scanTransfer(r.db.QueryRowContext(ctx, query, txRef))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer by tx_ref: %w", err)
	}
	return t, nil
}

func (r *PostgresTransferRepository) ListByUser(ctx context.Context, userID int32) ([]models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var t models.Transfer
		var stepsRaw []byte
		err := rows.Scan(
			&t.ID, &t.TxRef, &t.UserID, &t.Amount, &t.Charge, &t.Currency,
			&t.Region, &t.Status, &t.Type, &t.BankName, &t.AccountNumber,
			&t.HolderName, &t.OTP, &t.OTPExpiry, &stepsRaw, &t.CompletedAt,
			&t.Version, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if err := json.Unmarshal(stepsRaw, &t.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode verification steps: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// UpdateSteps persists the verification sub-record under optimistic
// versioning: the row is only written when nobody else has bumped the
// version since this transfer was read.
func (r *PostgresTransferRepository) UpdateSteps(ctx context.Context, t *models.Transfer) (err error) {
	tracer := otel.Tracer("transfer-repository")
	ctx, span := tracer.Start(ctx, "UpdateSteps")
	span.SetAttributes(attribute.String("tx_ref", t.TxRef), attribute.Int("version", int(t.Version)))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("UpdateSteps", status).Inc()
		observability.RepositoryDuration.WithLabelValues("UpdateSteps").Observe(time.Since(start).Seconds())
	}()

	stepsRaw, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode verification steps: %w", err)
	}

	query := `
	UPDATE transfers
	SET steps = $1, status = $2, completed_at = $3, version = version + 1
	WHERE tx_ref = $4 AND version = $5
	RETURNING version
	`
	err = r.db.QueryRowContext(ctx, query, stepsRaw, t.Status, t.CompletedAt, t.TxRef, t.Version).Scan(&t.Version)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrVersionConflict
		slog.Error("concurrent transfer update", "tx_ref", t.TxRef, "version", t.Version)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update verification steps: %w", err)
	}
	return nil
}

// Settle performs the balance-affecting step of a transfer: debit the
// owner's currency balance by amount+charge, flip the record to success and
// write the audit row. The three writes commit or roll back together.
func (r *PostgresTransferRepository) Settle(ctx context.Context, t *models.Transfer) (newBalance decimal.Decimal, err error) {
	tracer := otel.Tracer("transfer-repository")
	ctx, span := tracer.Start(ctx, "SettleTransfer")
	span.SetAttributes(
		attribute.String("tx_ref", t.TxRef),
		attribute.Int("user_id", int(t.UserID)),
		attribute.String("currency", t.Currency),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("SettleTransfer", status).Inc()
		observability.RepositoryDuration.WithLabelValues("SettleTransfer").Observe(time.Since(start).Seconds())
	}()

	total := t.Total()

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := dbTx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
				err = stderrors.Join(err, rbErr)
			}
		}
	}()

	debit := `
	UPDATE balances
	SET balance = balance - $1
	WHERE user_id = $2 AND currency = $3
	AND (balance - $1) >= 0
	RETURNING balance
	`
	err = dbTx.QueryRowContext(ctx, debit, total, t.UserID, t.Currency).Scan(&newBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrInsufficientFunds
		return decimal.Zero, err
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit balance: %w", err)
	}

	flip := `
	UPDATE transfers
	SET status = $1, tx_type = $2, version = version + 1
	WHERE tx_ref = $3 AND status = $4
	RETURNING version
	`
	err = dbTx.QueryRowContext(ctx, flip, models.StatusSuccess, models.TypeDebit, t.TxRef, models.StatusPending).Scan(&t.Version)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrTransferNotPending
		return decimal.Zero, err
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update transfer status: %w", err)
	}

	meta := `INSERT INTO transfer_meta (tx_ref, user_id, tx_type, amount, currency, success) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = dbTx.ExecContext(ctx, meta, t.TxRef, t.UserID, models.TypeDebit, total, t.Currency, true); err != nil {
		return decimal.Zero, fmt.Errorf("failed to write transfer meta: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit settlement: %w", err)
	}

	t.Status = models.StatusSuccess
	t.Type = models.TypeDebit
	slog.Info("transfer settled", "tx_ref", t.TxRef, "user_id", t.UserID, "total", total, "new_balance", newBalance)
	return newBalance, nil
}

func (r *PostgresTransferRepository) MarkFailed(ctx context.Context, txRef string) error {
	query := `UPDATE transfers SET status = $1, version = version + 1 WHERE tx_ref = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, models.StatusFailed, txRef, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark transfer failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark transfer failed: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrTransferNotPending
	}
	return nil
}

func (r *PostgresTransferRepository) CreateMeta(ctx context.Context, m *models.TransferMeta) error {
	query := `INSERT INTO transfer_meta (tx_ref, user_id, tx_type, amount, currency, success) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, m.TxRef, m.UserID, m.Type, m.Amount, m.Currency, m.Success).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transfer meta: %w", err)
	}
	return nil
}

func (r *PostgresTransferRepository) ListMetaByUser(ctx context.Context, userID int32) ([]models.TransferMeta, error) {
	query := `SELECT id, tx_ref, user_id, tx_type, amount, currency, success, created_at FROM transfer_meta WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer meta: %w", err)
	}
	defer rows.Close()

	var metas []models.TransferMeta
	for rows.Next() {
		var m models.TransferMeta
		if err := rows.Scan(&m.ID, &m.TxRef, &m.UserID, &m.Type, &m.Amount, &m.Currency, &m.Success, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer meta: %w", err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}
