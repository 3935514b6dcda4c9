package store

import (
	"context"
	"errors"

	"github.com/lamplight/frontsession/internal/session/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns tidy
// and testable.
type Store interface {
	Users() Users
	Permissions() Permissions
	Tenants() Tenants
	Sessions() Sessions
	RecoveryKeys() RecoveryKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id (the id doubles as the login).
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// Exists reports whether a user id is already taken.
	Exists(ctx context.Context, id string) (bool, error)

	// CreateUser inserts a new user record.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password hash, clears the forced-change
	// flag and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateProfileURL mutates the public profile URL and bumps updated_at.
	UpdateProfileURL(ctx context.Context, userID, url string) error

	// SetMustChangePassword flips the forced password change flag.
	SetMustChangePassword(ctx context.Context, userID string, must bool) error

	// UpdateStatus changes the account status (admin validation path).
	UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) error
}

type Permissions interface {
	// Has reports whether the user holds the frontend-session permission on
	// the tenant, or is a super admin.
	Has(ctx context.Context, userID, tenantID string) (bool, error)

	// Grant gives the user the frontend-session permission on a tenant.
	Grant(ctx context.Context, id, userID, tenantID string) error

	// ListUserTenants returns every tenant id the user holds the permission
	// on. Login/logout propagates the zero-cache signal to all of them.
	ListUserTenants(ctx context.Context, userID string) ([]string, error)
}

type Tenants interface {
	// GetTenantByID fetches one tenant (blog).
	GetTenantByID(ctx context.Context, id string) (domain.Tenant, error)

	// GetTenantByHost resolves the tenant serving a request host.
	GetTenantByHost(ctx context.Context, host string) (domain.Tenant, error)

	// CreateTenant inserts a tenant record.
	CreateTenant(ctx context.Context, t domain.Tenant) error

	// Touch bumps the tenant's cache epoch. Authentication state affects
	// page rendering, so any login/logout must invalidate cached pages.
	Touch(ctx context.Context, id string) error
}

type Sessions interface {
	// CreateSession stores a new server-side session row.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns a session by its cookie-carried id.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// DeleteSession destroys the server-side session state.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

type RecoveryKeys interface {
	// SetRecoveryKey stores a fresh single-use key, replacing any previous
	// key for the same user.
	SetRecoveryKey(ctx context.Context, k domain.RecoveryKey) error

	// GetRecoveryKey returns a not-expired key.
	GetRecoveryKey(ctx context.Context, key string) (domain.RecoveryKey, error)

	// DeleteRecoveryKey consumes a key.
	DeleteRecoveryKey(ctx context.Context, key string) error

	// DeleteExpiredRecoveryKeys is housekeeping.
	DeleteExpiredRecoveryKeys(ctx context.Context) error
}
