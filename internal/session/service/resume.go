package service

import (
	"context"
	"errors"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/pkg/cryptox"
	"github.com/lamplight/frontsession/pkg/tokenx"
)

// ResumeResult is the state a request starts in after session validation.
type ResumeResult struct {
	Authenticated bool
	User          domain.User
	Session       domain.Session

	// Invalidate instructs the caller to clear the session cookie, clear
	// the remember cookie and redirect to the tenant home. Set on browser
	// fingerprint mismatch, tenant mismatch and permission revocation.
	Invalidate bool

	// ClearRemember is set when only the remember cookie must go.
	ClearRemember bool

	// SetRemember re-issues the remember cookie (cookie-based sign-in).
	SetRemember string

	// Redirect carries a pending/disabled/change outcome produced while
	// authenticating from the remember cookie.
	Redirect *CheckResult
}

// Resume validates an inbound request's session cookie and, failing that,
// its remember cookie. It is invoked before any action dispatch.
func (c *Checker) Resume(ctx context.Context, tenant domain.Tenant, userAgent, sessionID, rememberCookie string) (ResumeResult, error) {
	if sessionID != "" {
		res, valid, err := c.resumeSession(ctx, tenant, userAgent, sessionID)
		if err != nil {
			return ResumeResult{}, err
		}
		if valid {
			return res, nil
		}
		if res.Invalidate {
			return res, nil
		}
		// Stale session id: fall through to the cookie, treating the
		// session as absent.
	}

	// A malformed or wrong-length cookie is treated as absent, never as an
	// error.
	userID, fingerprint, err := tokenx.DecodeRememberToken(rememberCookie)
	if err != nil {
		return ResumeResult{}, nil
	}

	check, err := c.Check(ctx, tenant, userAgent, Credentials{
		UserID:          userID,
		Fingerprint:     &fingerprint,
		Remember:        true,
		PresentedCookie: rememberCookie,
	})
	if err != nil {
		return ResumeResult{}, err
	}

	switch check.Outcome {
	case OutcomeAuthenticated:
		return ResumeResult{
			Authenticated: true,
			User:          check.User,
			Session:       check.Session,
			SetRemember:   check.RememberCookie,
		}, nil
	case OutcomePending, OutcomeDisabled, OutcomeChangePassword:
		return ResumeResult{ClearRemember: true, Redirect: &check}, nil
	default:
		return ResumeResult{ClearRemember: check.ClearRemember}, nil
	}
}

func (c *Checker) resumeSession(ctx context.Context, tenant domain.Tenant, userAgent, sessionID string) (ResumeResult, bool, error) {
	ss := NewSessionStore(c.Store.Sessions(), c.SessionTTL, sessionID)
	if err := ss.Start(ctx); err != nil {
		return ResumeResult{}, false, err
	}
	if !ss.Exists() {
		return ResumeResult{}, false, nil
	}
	sess := ss.Session()

	// A session replayed from a different browser context or served for a
	// different tenant is destroyed outright.
	uid := cryptox.BrowserUID(c.Secret, userAgent)
	if !cryptox.FingerprintEqual(sess.BrowserUID, uid) || sess.TenantID != tenant.ID {
		return c.invalidate(ctx, tenant, sess)
	}

	ok, err := c.Store.Permissions().Has(ctx, sess.UserID, tenant.ID)
	if err != nil {
		return ResumeResult{}, false, err
	}
	if !ok {
		return c.invalidate(ctx, tenant, sess)
	}

	u, err := c.Directory.UserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.invalidate(ctx, tenant, sess)
		}
		return ResumeResult{}, false, err
	}
	if u.Status != domain.StatusEnabled {
		return c.invalidate(ctx, tenant, sess)
	}

	return ResumeResult{Authenticated: true, User: u, Session: sess}, true, nil
}

func (c *Checker) invalidate(ctx context.Context, tenant domain.Tenant, sess domain.Session) (ResumeResult, bool, error) {
	if err := NewSessionStore(c.Store.Sessions(), c.SessionTTL, sess.ID).Destroy(ctx); err != nil {
		return ResumeResult{}, false, err
	}
	if err := c.PropagateZeroCache(ctx, tenant.ID, sess.UserID); err != nil {
		return ResumeResult{}, false, err
	}
	return ResumeResult{Invalidate: true}, false, nil
}

// SignOut destroys the session and propagates the zero-cache signal. The
// caller pairs it with clearing both cookies; destroying server-side state
// alone would let the remember cookie resurrect the session on the next
// visit.
func (c *Checker) SignOut(ctx context.Context, tenant domain.Tenant, sess domain.Session) error {
	if sess.ID != "" {
		if err := NewSessionStore(c.Store.Sessions(), c.SessionTTL, sess.ID).Destroy(ctx); err != nil {
			return err
		}
	}
	return c.PropagateZeroCache(ctx, tenant.ID, sess.UserID)
}

// DecodeChangePayload parses a password-change payload, re-verifying the
// embedded fingerprint against the directory's current password secret. A
// stale or forged payload resolves to an empty user id.
func (c *Checker) DecodeChangePayload(ctx context.Context, payload string) tokenx.ChangeData {
	return tokenx.DecodeChangePayload(payload, func(userID, fingerprint string) bool {
		secret, err := c.Directory.PasswordSecret(ctx, userID)
		if err != nil {
			return false
		}
		return cryptox.FingerprintEqual(fingerprint, cryptox.KeyedHash(c.Secret, userID+secret))
	})
}
