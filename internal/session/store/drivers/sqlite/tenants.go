package sqlite

import (
	"context"
	"time"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
)

type tenantsRepo struct {
	db dbtx
}

const tenantColumns = `id, name, url, host, updated_at`

func (r *tenantsRepo) GetTenantByID(ctx context.Context, id string) (domain.Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)
}

func (r *tenantsRepo) GetTenantByHost(ctx context.Context, host string) (domain.Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE host = ?`, host)
}

func (r *tenantsRepo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.URL, t.Host, time.Now().UTC(),
	)
	return mapConflict(err)
}

// Touch bumps the tenant's cache epoch so no stale page survives a login or
// logout.
func (r *tenantsRepo) Touch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *tenantsRepo) get(ctx context.Context, query string, arg any) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&t.ID, &t.Name, &t.URL, &t.Host, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Tenant{}, mapNotFound(err)
	}
	return t, nil
}
