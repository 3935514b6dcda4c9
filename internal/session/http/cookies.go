package http

import (
	"net/http"
	"time"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/service"
)

// CookieConfig names the two cookies and the optional shared domain that lets
// one sign-in cover every subdomain tenant.
type CookieConfig struct {
	SessionName  string
	RememberName string
	Domain       string
}

func (h *SessionHandler) cookie(tenant domain.Tenant, name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.Cookies.Domain,
		Expires:  expires,
		Secure:   tenant.Secure(),
		HttpOnly: true,
	}
}

func (h *SessionHandler) setSessionCookie(w http.ResponseWriter, tenant domain.Tenant, sess domain.Session) {
	http.SetCookie(w, h.cookie(tenant, h.Cookies.SessionName, sess.ID, sess.ExpiresAt))
}

func (h *SessionHandler) clearSessionCookie(w http.ResponseWriter, tenant domain.Tenant) {
	http.SetCookie(w, h.cookie(tenant, h.Cookies.SessionName, "", time.Unix(0, 0)))
}

func (h *SessionHandler) setRememberCookie(w http.ResponseWriter, tenant domain.Tenant, value string) {
	http.SetCookie(w, h.cookie(tenant, h.Cookies.RememberName, value, time.Now().Add(service.RememberTTL)))
}

func (h *SessionHandler) clearRememberCookie(w http.ResponseWriter, tenant domain.Tenant) {
	http.SetCookie(w, h.cookie(tenant, h.Cookies.RememberName, "", time.Unix(0, 0)))
}

// checkCookieName derives the double-submit cookie from the session cookie
// name so renaming one renames both.
func (h *SessionHandler) checkCookieName() string {
	return h.Cookies.SessionName + "_check"
}

func (h *SessionHandler) checkCookieValue(r *http.Request) string {
	if c, err := r.Cookie(h.checkCookieName()); err == nil {
		return c.Value
	}
	return ""
}

func (h *SessionHandler) setCheckCookie(w http.ResponseWriter, tenant domain.Tenant, token string) {
	http.SetCookie(w, h.cookie(tenant, h.checkCookieName(), token, time.Now().Add(service.RememberTTL)))
}
