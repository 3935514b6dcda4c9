package service

import (
	"context"
	"testing"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/internal/session/store/drivers/sqlite"
	"github.com/lamplight/frontsession/pkg/cryptox"
	"github.com/lamplight/frontsession/pkg/idx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-server-secret")

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestChecker(t *testing.T) (store.Store, *DirectoryService, *Checker) {
	t.Helper()

	st := newTestStore(t)
	dir := &DirectoryService{Store: st, Secret: testSecret}
	checker := &Checker{Store: st, Directory: dir, Secret: testSecret}
	return st, dir, checker
}

func seedTenant(t *testing.T, st store.Store, id, host string) domain.Tenant {
	t.Helper()

	tenant := domain.Tenant{
		ID:   id,
		Name: "Test Blog " + id,
		URL:  "https://" + host + "/",
		Host: host,
	}
	require.NoError(t, st.Tenants().CreateTenant(context.Background(), tenant))

	loaded, err := st.Tenants().GetTenantByID(context.Background(), id)
	require.NoError(t, err)
	return loaded
}

// seedUser creates an account directly with the wanted status and grants the
// permission on the tenant.
func seedUser(t *testing.T, st store.Store, login, password, tenantID string, status domain.UserStatus) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           login,
		Displayname:  login,
		Email:        login + "@example.test",
		PasswordHash: hash,
		Status:       status,
	}
	ctx := context.Background()
	require.NoError(t, st.Users().CreateUser(ctx, u))
	if tenantID != "" {
		require.NoError(t, st.Permissions().Grant(ctx, idx.New().String(), login, tenantID))
	}

	loaded, err := st.Users().GetUserByID(ctx, login)
	require.NoError(t, err)
	return loaded
}

func strptr(s string) *string { return &s }
