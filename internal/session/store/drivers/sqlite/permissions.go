package sqlite

import "context"

type permissionsRepo struct {
	db dbtx
}

func (r *permissionsRepo) Has(ctx context.Context, userID, tenantID string) (bool, error) {
	// Super admins hold every permission implicitly.
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users
		 WHERE id = ? AND super_admin = 1`, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM permissions
		 WHERE user_id = ? AND tenant_id = ?`, userID, tenantID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *permissionsRepo) Grant(ctx context.Context, id, userID, tenantID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO permissions (id, user_id, tenant_id)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id, tenant_id) DO NOTHING`,
		id, userID, tenantID,
	)
	return err
}

func (r *permissionsRepo) ListUserTenants(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id FROM permissions WHERE user_id = ? ORDER BY tenant_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}
