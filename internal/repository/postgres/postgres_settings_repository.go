package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	pkgerrors "github.com/finbright/bankcore/pkg/errors"
)

type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	query := `SELECT value FROM system_options WHERE key = $1`
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", pkgerrors.ErrSettingNotFound
	case err != nil:
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return value, nil
}

func (r *PostgresSettingsRepository) Set(ctx context.Context, key, value string) (int64, error) {
	query := `
	INSERT INTO system_options (key, value, epoch, updated_at)
	VALUES ($1, $2, 1, now())
	ON CONFLICT (key)
	DO UPDATE SET value = EXCLUDED.value, epoch = system_options.epoch + 1, updated_at = now()
	RETURNING epoch
	`
	var epoch int64
	if err := r.db.QueryRowContext(ctx, query, key, value).Scan(&epoch); err != nil {
		return 0, fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return epoch, nil
}
