package service

import (
	"context"
	"errors"
	"time"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/pkg/cryptox"
	"github.com/lamplight/frontsession/pkg/tokenx"
)

// RememberTTL is the lifetime of the remember-me cookie.
const RememberTTL = 15 * 24 * time.Hour

// DefaultSessionTTL bounds a server-side session when no TTL is configured.
const DefaultSessionTTL = 2 * time.Hour

// Outcome is the result of one credential check.
type Outcome int

const (
	// OutcomeNone means no credentials were presented; stay unauthenticated
	// without touching the directory.
	OutcomeNone Outcome = iota

	// OutcomeRejected covers failed verification and missing tenant
	// permission, indistinguishably.
	OutcomeRejected

	// OutcomePending redirects to the sign-in page with the pending state.
	OutcomePending

	// OutcomeDisabled redirects with the disabled state.
	OutcomeDisabled

	// OutcomeChangePassword redirects to the password change form carrying
	// an encoded change payload.
	OutcomeChangePassword

	// OutcomeAuthenticated established a session.
	OutcomeAuthenticated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomePending:
		return "pending"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeChangePassword:
		return "change_password"
	case OutcomeAuthenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// Credentials is one sign-in attempt. Exactly one of Password or Fingerprint
// is set; presenting neither is rejected by the directory.
type Credentials struct {
	UserID      string
	Password    *string
	Fingerprint *string
	Remember    bool

	// PresentedCookie carries the inbound 104-char remember cookie so a
	// cookie-based sign-in re-issues it verbatim.
	PresentedCookie string
}

// CheckResult carries the outcome plus the side effects the caller must
// apply: cookies to set or clear and the change payload to redirect with.
type CheckResult struct {
	Outcome        Outcome
	User           domain.User
	Session        domain.Session
	RememberCookie string
	ClearRemember  bool
	ChangePayload  string
}

// Checker is the credential check state machine invoked on every request and
// on explicit sign-in.
type Checker struct {
	Store      store.Store
	Directory  Directory
	Secret     []byte
	SessionTTL time.Duration
}

// Check runs the decision procedure for one set of credentials against the
// tenant currently being served.
//
// Ordering is deliberate: directory verification and the tenant permission
// check are evaluated together, then account status, and only then is a
// session established. A pending or disabled account never authenticates no
// matter how correct its credentials are, and an account without rights on
// this tenant is rejected exactly like a wrong password.
func (c *Checker) Check(ctx context.Context, tenant domain.Tenant, userAgent string, creds Credentials) (CheckResult, error) {
	if creds.UserID == "" ||
		(creds.Password != nil && *creds.Password == "") ||
		(creds.Fingerprint != nil && *creds.Fingerprint == "") {
		return CheckResult{Outcome: OutcomeNone}, nil
	}

	u, err := c.Directory.Verify(ctx, creds.UserID, creds.Password, creds.Fingerprint)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			return CheckResult{Outcome: OutcomeRejected, ClearRemember: true}, nil
		}
		return CheckResult{}, err
	}

	ok, err := c.Store.Permissions().Has(ctx, u.ID, tenant.ID)
	if err != nil {
		return CheckResult{}, err
	}
	if !ok {
		return CheckResult{Outcome: OutcomeRejected, ClearRemember: true}, nil
	}

	switch {
	case u.Status == domain.StatusPending:
		return CheckResult{Outcome: OutcomePending, User: u, ClearRemember: true}, nil

	case u.Status.Restricted():
		return CheckResult{Outcome: OutcomeDisabled, User: u, ClearRemember: true}, nil

	case u.MustChangePassword:
		secret, err := c.Directory.PasswordSecret(ctx, u.ID)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{
			Outcome:       OutcomeChangePassword,
			User:          u,
			ClearRemember: true,
			ChangePayload: tokenx.EncodeChangePayload(u.ID, secret, c.Secret, creds.Remember),
		}, nil
	}

	sess, err := c.establishSession(ctx, tenant, userAgent, u)
	if err != nil {
		return CheckResult{}, err
	}

	result := CheckResult{Outcome: OutcomeAuthenticated, User: u, Session: sess}

	if creds.Remember {
		if creds.PresentedCookie != "" {
			result.RememberCookie = creds.PresentedCookie
		} else {
			secret, err := c.Directory.PasswordSecret(ctx, u.ID)
			if err != nil {
				return CheckResult{}, err
			}
			result.RememberCookie = tokenx.EncodeRememberToken(u.ID, secret, c.Secret)
		}
	}

	if err := c.PropagateZeroCache(ctx, tenant.ID, u.ID); err != nil {
		return CheckResult{}, err
	}

	return result, nil
}

func (c *Checker) establishSession(ctx context.Context, tenant domain.Tenant, userAgent string, u domain.User) (domain.Session, error) {
	ss := NewSessionStore(c.Store.Sessions(), c.SessionTTL, "")
	if err := ss.Start(ctx); err != nil {
		return domain.Session{}, err
	}
	ss.Set(SessionValues{
		UserID:     u.ID,
		BrowserUID: cryptox.BrowserUID(c.Secret, userAgent),
		TenantID:   tenant.ID,
	})
	return ss.Commit(ctx)
}

// PropagateZeroCache bumps the cache epoch of the current tenant and of
// every tenant the user has rights on. Authentication state affects rendering
// everywhere the user can sign in, so none of those tenants may serve a
// cached page after a login or logout.
func (c *Checker) PropagateZeroCache(ctx context.Context, currentTenantID, userID string) error {
	touched := map[string]bool{}

	if userID != "" {
		tenants, err := c.Store.Permissions().ListUserTenants(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range tenants {
			if err := c.Store.Tenants().Touch(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			touched[id] = true
		}
	}

	if !touched[currentTenantID] {
		if err := c.Store.Tenants().Touch(ctx, currentTenantID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}
