package sqlite

import (
	"context"
	"time"

	"github.com/lamplight/frontsession/internal/session/domain"
)

type recoveryKeysRepo struct {
	db dbtx
}

func (r *recoveryKeysRepo) SetRecoveryKey(ctx context.Context, k domain.RecoveryKey) error {
	// One outstanding key per user; a new request replaces the old key.
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_keys WHERE user_id = ?`, k.UserID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recovery_keys (key, user_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		k.Key, k.UserID, k.CreatedAt, k.ExpiresAt,
	)
	return mapConflict(err)
}

func (r *recoveryKeysRepo) GetRecoveryKey(ctx context.Context, key string) (domain.RecoveryKey, error) {
	var k domain.RecoveryKey
	err := r.db.QueryRowContext(ctx,
		`SELECT key, user_id, created_at, expires_at
		 FROM recovery_keys WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC()).Scan(
		&k.Key, &k.UserID, &k.CreatedAt, &k.ExpiresAt,
	)
	if err != nil {
		return domain.RecoveryKey{}, mapNotFound(err)
	}
	return k, nil
}

func (r *recoveryKeysRepo) DeleteRecoveryKey(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM recovery_keys WHERE key = ?`, key)
	return err
}

func (r *recoveryKeysRepo) DeleteExpiredRecoveryKeys(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_keys WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
