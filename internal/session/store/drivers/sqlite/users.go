package sqlite

import (
	"context"
	"time"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, firstname, displayname, email, url, password_hash,
	status, super_admin, must_change_password, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	var u domain.User
	var status int
	err := row.Scan(
		&u.ID, &u.Firstname, &u.Displayname, &u.Email, &u.URL, &u.PasswordHash,
		&status, &u.SuperAdmin, &u.MustChangePassword, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Status = domain.UserStatus(status)
	return u, nil
}

func (r *usersRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Firstname, u.Displayname, u.Email, u.URL, u.PasswordHash,
		int(u.Status), u.SuperAdmin, u.MustChangePassword, now, now,
	)
	return mapConflict(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return r.exec(ctx,
		`UPDATE users
		 SET password_hash = ?, must_change_password = 0, updated_at = ?
		 WHERE id = ?`,
		newHash, time.Now().UTC(), userID,
	)
}

func (r *usersRepo) UpdateProfileURL(ctx context.Context, userID, url string) error {
	return r.exec(ctx,
		`UPDATE users SET url = ?, updated_at = ? WHERE id = ?`,
		url, time.Now().UTC(), userID,
	)
}

func (r *usersRepo) SetMustChangePassword(ctx context.Context, userID string, must bool) error {
	return r.exec(ctx,
		`UPDATE users SET must_change_password = ?, updated_at = ? WHERE id = ?`,
		must, time.Now().UTC(), userID,
	)
}

func (r *usersRepo) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	return r.exec(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		int(status), time.Now().UTC(), userID,
	)
}

func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
