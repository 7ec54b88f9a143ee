package repository

import "context"

type SettingsRepository interface {
	// Get returns the current value for key, or ErrSettingNotFound.
	// Values are read per operation; nothing is cached in-process.
	Get(ctx context.Context, key string) (string, error)
	// Set upserts key and bumps its epoch. Returns the new epoch.
	Set(ctx context.Context, key, value string) (int64, error)
}
