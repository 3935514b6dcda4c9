package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/service"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/internal/session/store/drivers/sqlite"
	"github.com/lamplight/frontsession/pkg/cryptox"
	"github.com/lamplight/frontsession/pkg/idx"
	"github.com/lamplight/frontsession/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testHost      = "blog1.example.test"
	testUserAgent = "Mozilla/5.0 (test)"

	// testCheckToken stands in for the random double-submit token a browser
	// would have been handed on its first visit.
	testCheckToken = "0123456789abcdef0123456789abcdef"
)

var testSecret = []byte("test-server-secret")

type testEnv struct {
	store   store.Store
	router  *Router
	handler *SessionHandler
	tenant  domain.Tenant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	ctx := context.Background()
	tenant := domain.Tenant{
		ID:   "blog-1",
		Name: "Test Blog",
		URL:  "https://" + testHost + "/",
		Host: testHost,
	}
	require.NoError(t, st.Tenants().CreateTenant(ctx, tenant))
	loaded, err := st.Tenants().GetTenantByID(ctx, tenant.ID)
	require.NoError(t, err)

	dir := &service.DirectoryService{Store: st, Secret: testSecret}
	checker := &service.Checker{Store: st, Directory: dir, Secret: testSecret}

	handler := &SessionHandler{
		Checker:   checker,
		Directory: dir,
		Mailer:    &service.Mailer{Notifier: &service.LogNotifier{Logger: slogx.Discard()}},
		Store:     st,
		Secret:    testSecret,

		Active:            true,
		Registration:      true,
		Recovery:          true,
		PasswordMinLength: 6,
		Cookies: CookieConfig{
			SessionName:  "frontsession",
			RememberName: "frontsession_remember",
		},
	}

	router := NewRouter("test", st, slogx.Discard())
	router.SessionHandler = handler
	router.ApplyRoutes()

	return &testEnv{store: st, router: router, handler: handler, tenant: loaded}
}

func (e *testEnv) seedUser(t *testing.T, login, password string, status domain.UserStatus) {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, e.store.Users().CreateUser(ctx, domain.User{
		ID:           login,
		Displayname:  login,
		Email:        login + "@example.test",
		PasswordHash: hash,
		Status:       status,
	}))
	require.NoError(t, e.store.Permissions().Grant(ctx, idx.New().String(), login, e.tenant.ID))
}

// get and post issue browser-like requests carrying the double-submit check
// cookie alongside any explicitly passed cookies.
func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = testHost
	req.Header.Set("User-Agent", testUserAgent)
	req.AddCookie(&http.Cookie{Name: "frontsession_check", Value: testCheckToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) post(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Host = testHost
	req.Header.Set("User-Agent", testUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "frontsession_check", Value: testCheckToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// nonce computes the anti-forgery value the state page would have served to a
// browser holding testCheckToken.
func (e *testEnv) nonce() string {
	return cryptox.KeyedHash(testSecret, "check:"+testCheckToken)
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) statePage {
	t.Helper()
	var page statePage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return page
}

func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range (&http.Response{Header: rec.Header()}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionPageRendersNonce(t *testing.T) {
	e := newTestEnv(t)

	rec := e.get("/session")
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodePage(t, rec)
	require.Equal(t, e.nonce(), page.Check)
	require.Nil(t, page.User)

	t.Run("a browser without the check cookie gets one minted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Host = testHost
		req.Header.Set("User-Agent", testUserAgent)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)

		minted := sessionCookie(rec, "frontsession_check")
		require.NotNil(t, minted)
		require.NotEmpty(t, minted.Value)
		require.NotEqual(t, testCheckToken, minted.Value)
		require.Equal(t, cryptox.KeyedHash(testSecret, "check:"+minted.Value), decodePage(t, rec).Check)
	})
}

func TestInactiveFeatureIs404(t *testing.T) {
	e := newTestEnv(t)
	e.handler.Active = false

	rec := e.get("/session")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownHostIs404(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Host = "unknown.example.test"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingNonceIs412(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)

	form := url.Values{
		"action":   {"signin"},
		"login":    {"alice"},
		"password": {"hunter2secret"},
	}
	rec := e.post("/session", form)
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	require.Nil(t, sessionCookie(rec, "frontsession"))
}

func TestNonceFromAnotherBrowserIsRejected(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)

	signin := e.post("/session", url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"alice"},
		"password": {"hunter2secret"},
	})
	sc := sessionCookie(signin, "frontsession")
	require.NotNil(t, sc)

	// A cookie-less request with the same user agent reads the page nonce.
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Host = testHost
	req.Header.Set("User-Agent", testUserAgent)
	harvest := httptest.NewRecorder()
	e.router.ServeHTTP(harvest, req)
	harvested := decodePage(t, harvest).Check
	require.NotEmpty(t, harvested)

	// A forged cross-site POST rides on the victim's cookies but can only
	// carry that harvested value; it must not pass the gate.
	rec := e.post("/session", url.Values{
		"action": {"signout"},
		"check":  {harvested},
	}, &http.Cookie{Name: "frontsession", Value: sc.Value})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	// The session survived.
	_, err := e.store.Sessions().GetSession(context.Background(), sc.Value)
	require.NoError(t, err)
}

func TestSigninWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "bob", "hunter2secret", domain.StatusEnabled)

	form := url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"bob"},
		"password": {"wrong"},
	}
	rec := e.post("/session", form)
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodePage(t, rec)
	require.Contains(t, page.Errors, "Wrong username or password.")
	require.Nil(t, sessionCookie(rec, "frontsession"))
}

func TestSigninSuccess(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)

	form := url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"alice"},
		"password": {"hunter2secret"},
		"remember": {"1"},
	}
	rec := e.post("/session", form)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, e.tenant.URL, rec.Header().Get("Location"))

	sc := sessionCookie(rec, "frontsession")
	require.NotNil(t, sc)
	require.NotEmpty(t, sc.Value)
	require.True(t, sc.HttpOnly)
	require.True(t, sc.Secure)

	rc := sessionCookie(rec, "frontsession_remember")
	require.NotNil(t, rc)
	require.Len(t, rc.Value, 104)

	t.Run("session cookie resumes on the state page", func(t *testing.T) {
		rec := e.get("/session", &http.Cookie{Name: "frontsession", Value: sc.Value})
		require.Equal(t, http.StatusOK, rec.Code)

		page := decodePage(t, rec)
		require.Equal(t, "connected", page.State)
		require.NotNil(t, page.User)
		require.Equal(t, "alice", page.User.ID)
	})

	t.Run("remember cookie alone signs back in", func(t *testing.T) {
		rec := e.get("/session", &http.Cookie{Name: "frontsession_remember", Value: rc.Value})
		require.Equal(t, http.StatusOK, rec.Code)

		page := decodePage(t, rec)
		require.NotNil(t, page.User)
		require.Equal(t, "alice", page.User.ID)

		// A fresh session row was minted and the cookie re-issued verbatim.
		require.NotNil(t, sessionCookie(rec, "frontsession"))
		reissued := sessionCookie(rec, "frontsession_remember")
		require.NotNil(t, reissued)
		require.Equal(t, rc.Value, reissued.Value)
	})
}

func TestSigninPendingRedirects(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "penny", "hunter2secret", domain.StatusPending)

	form := url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"penny"},
		"password": {"hunter2secret"},
	}
	rec := e.post("/session", form)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://"+testHost+"/session/pending", rec.Header().Get("Location"))

	t.Run("pending page explains the state", func(t *testing.T) {
		rec := e.get("/session/pending")
		page := decodePage(t, rec)
		require.Equal(t, "pending", page.State)
		require.NotEmpty(t, page.Errors)
	})
}

func TestSignout(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)

	signin := e.post("/session", url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"alice"},
		"password": {"hunter2secret"},
	})
	sc := sessionCookie(signin, "frontsession")
	require.NotNil(t, sc)

	rec := e.post("/session", url.Values{
		"action": {"signout"},
		"check":  {e.nonce()},
	}, &http.Cookie{Name: "frontsession", Value: sc.Value})

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, e.tenant.URL, rec.Header().Get("Location"))

	cleared := sessionCookie(rec, "frontsession")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.True(t, cleared.Expires.Unix() <= 0)

	clearedRemember := sessionCookie(rec, "frontsession_remember")
	require.NotNil(t, clearedRemember)
	require.Empty(t, clearedRemember.Value)

	_, err := e.store.Sessions().GetSession(context.Background(), sc.Value)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSignupValidation(t *testing.T) {
	e := newTestEnv(t)

	t.Run("short login creates nothing", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"signup"},
			"check":     {e.nonce()},
			"login":     {"ab"},
			"email":     {"ab@example.test"},
			"vemail":    {"ab@example.test"},
			"password":  {"longenough"},
			"vpassword": {"longenough"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		page := decodePage(t, rec)
		require.Contains(t, page.Errors, "This username is not valid.")

		exists, err := e.store.Users().Exists(context.Background(), "ab")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("all failures accumulate in one response", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"signup"},
			"check":     {e.nonce()},
			"login":     {"x!"},
			"email":     {"a@example.test"},
			"vemail":    {"b@example.test"},
			"password":  {"one"},
			"vpassword": {"two"},
		})
		page := decodePage(t, rec)
		require.Contains(t, page.Errors, "This username is not valid.")
		require.Contains(t, page.Errors, "Emails missmatch.")
		require.Contains(t, page.Errors, "Passwords missmatch.")
	})

	t.Run("short password rejected", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"signup"},
			"check":     {e.nonce()},
			"login":     {"carol"},
			"email":     {"carol@example.test"},
			"vemail":    {"carol@example.test"},
			"password":  {"abc"},
			"vpassword": {"abc"},
		})
		page := decodePage(t, rec)
		require.Contains(t, page.Errors, "Password must be at least 6 characters long.")
	})

	t.Run("valid signup creates a pending account", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"signup"},
			"check":     {e.nonce()},
			"login":     {"carol"},
			"email":     {"carol@example.test"},
			"vemail":    {"carol@example.test"},
			"password":  {"longenough"},
			"vpassword": {"longenough"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		page := decodePage(t, rec)
		require.Empty(t, page.Errors)
		require.NotEmpty(t, page.Success)

		u, err := e.store.Users().GetUserByID(context.Background(), "carol")
		require.NoError(t, err)
		require.Equal(t, domain.StatusPending, u.Status)
	})

	t.Run("registration disabled is 404", func(t *testing.T) {
		e.handler.Registration = false
		defer func() { e.handler.Registration = true }()

		rec := e.post("/session", url.Values{
			"action": {"signup"},
			"check":  {e.nonce()},
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRecoverFlow(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)

	t.Run("request is oracle-free", func(t *testing.T) {
		match := e.post("/session", url.Values{
			"action": {"recover"},
			"check":  {e.nonce()},
			"login":  {"alice"},
			"email":  {"alice@example.test"},
		})
		noMatch := e.post("/session", url.Values{
			"action": {"recover"},
			"check":  {e.nonce()},
			"login":  {"alice"},
			"email":  {"stranger@example.test"},
		})
		require.Equal(t, decodePage(t, match).Success, decodePage(t, noMatch).Success)
	})

	t.Run("mailed key is consumed by the link", func(t *testing.T) {
		dir := e.handler.Directory
		key, err := dir.SetRecoveryKey(context.Background(), "alice", "alice@example.test")
		require.NoError(t, err)

		rec := e.get("/session/recover/" + key)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decodePage(t, rec)
		require.Equal(t, "Your new password is in your mailbox.", page.Success)

		again := e.get("/session/recover/" + key)
		require.Contains(t, decodePage(t, again).Errors, "This recovery key is invalid or has expired.")
	})
}

func TestForcedChangeFlow(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)
	require.NoError(t, e.store.Users().SetMustChangePassword(context.Background(), "alice", true))

	signin := e.post("/session", url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"alice"},
		"password": {"hunter2secret"},
		"remember": {"1"},
	})
	require.Equal(t, http.StatusFound, signin.Code)

	loc, err := url.Parse(signin.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/session/change", loc.Path)
	data := loc.Query().Get("data")
	require.NotEmpty(t, data)

	t.Run("reusing the old password is rejected", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"change"},
			"check":     {e.nonce()},
			"data":      {data},
			"password":  {"hunter2secret"},
			"vpassword": {"hunter2secret"},
		})
		require.Contains(t, decodePage(t, rec).Errors, "You didn't change your password.")
	})

	t.Run("a fresh password signs straight in with remember carried over", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"change"},
			"check":     {e.nonce()},
			"data":      {data},
			"password":  {"brand-new-password"},
			"vpassword": {"brand-new-password"},
		})
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, e.tenant.URL, rec.Header().Get("Location"))
		require.NotNil(t, sessionCookie(rec, "frontsession"))

		remember := sessionCookie(rec, "frontsession_remember")
		require.NotNil(t, remember)
		require.Len(t, remember.Value, 104)
	})

	t.Run("the payload is now stale", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"change"},
			"check":     {e.nonce()},
			"data":      {data},
			"password":  {"yet-another-pw"},
			"vpassword": {"yet-another-pw"},
		})
		require.Contains(t, decodePage(t, rec).Errors, "Unable to retrieve user informations.")
	})
}

func TestUpdatePassword(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)

	signin := e.post("/session", url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"alice"},
		"password": {"hunter2secret"},
	})
	sc := sessionCookie(signin, "frontsession")
	require.NotNil(t, sc)
	auth := &http.Cookie{Name: "frontsession", Value: sc.Value}

	t.Run("requires the current password", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"updpass"},
			"check":     {e.nonce()},
			"current":   {"wrong"},
			"password":  {"new-password"},
			"vpassword": {"new-password"},
		}, auth)
		require.Contains(t, decodePage(t, rec).Errors, "Password verification failed.")
	})

	t.Run("updates with the current password", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action":    {"updpass"},
			"check":     {e.nonce()},
			"current":   {"hunter2secret"},
			"password":  {"new-password"},
			"vpassword": {"new-password"},
		}, auth)
		page := decodePage(t, rec)
		require.Empty(t, page.Errors)
		require.Equal(t, "Password successfully updated.", page.Success)
	})

	t.Run("unauthenticated is redirected to the session page", func(t *testing.T) {
		rec := e.post("/session", url.Values{
			"action": {"updpass"},
			"check":  {e.nonce()},
		})
		require.Equal(t, http.StatusFound, rec.Code)
	})
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "hunter2secret", domain.StatusEnabled)

	signin := e.post("/session", url.Values{
		"action":   {"signin"},
		"check":    {e.nonce()},
		"login":    {"alice"},
		"password": {"hunter2secret"},
	})
	sc := sessionCookie(signin, "frontsession")
	require.NotNil(t, sc)

	rec := e.post("/session", url.Values{
		"action": {"updprofile"},
		"check":  {e.nonce()},
		"url":    {"https://alice.example.test/"},
	}, &http.Cookie{Name: "frontsession", Value: sc.Value})

	page := decodePage(t, rec)
	require.Equal(t, "Profil successfully updated.", page.Success)
	require.NotNil(t, page.User)
	require.Equal(t, "https://alice.example.test/", page.User.URL)
}
