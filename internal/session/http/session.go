package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/service"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/pkg/cryptox"
	"github.com/lamplight/frontsession/pkg/httpx"
	"github.com/lamplight/frontsession/pkg/slogx"
)

// Recognized POST action values.
const (
	actionSignin     = "signin"
	actionSignout    = "signout"
	actionSignup     = "signup"
	actionRecover    = "recover"
	actionChange     = "change"
	actionUpdProfile = "updprofile"
	actionUpdPass    = "updpass"
)

// State markers round-tripped through redirects.
const (
	statePending  = "pending"
	stateDisabled = "disabled"
	stateChange   = "change"
)

const (
	msgWrongCredentials = "Wrong username or password."
	msgSomethingWrong   = "Something went wrong, please try again later."
	msgAccountPending   = "Your account is not yet activated. An administrator will review your account and validate it soon."
	msgAccountDisabled  = "This account is disabled."
	msgAdminBackend     = "You are an admin, you must change password from backend."
	msgUnknownUser      = "Unable to retrieve user informations."
)

// SessionHandler serves the whole /session endpoint family: the state page
// and the signin/signout/signup/recover/change/updprofile/updpass actions.
type SessionHandler struct {
	Checker   *service.Checker
	Directory service.Directory
	Mailer    *service.Mailer
	Store     store.Store
	Sinks     []service.AuthEventSink
	Secret    []byte

	Active            bool
	Registration      bool
	Recovery          bool
	PasswordMinLength int

	Cookies CookieConfig
}

// requestState is everything one dispatched action needs.
type requestState struct {
	tenant     domain.Tenant
	resume     service.ResumeResult
	checkToken string
}

// statePage is the JSON rendering of the session page. The host CMS owns the
// real templates; this surface exposes the same data.
type statePage struct {
	State   string    `json:"state"`
	Check   string    `json:"check"`
	User    *userInfo `json:"user,omitempty"`
	Success string    `json:"success,omitempty"`
	Errors  []string  `json:"errors,omitempty"`
}

type userInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	URL         string `json:"url,omitempty"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slogx.FromContext(ctx)

	if !h.Active {
		http.NotFound(w, r)
		return
	}

	tenant, err := h.resolveTenant(ctx, r)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logger.Error("tenant resolution failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resume, err := h.Checker.Resume(ctx, tenant, r.UserAgent(), h.sessionCookieValue(r), h.rememberCookieValue(r))
	if err != nil {
		logger.Error("session resume failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// Apply the cookie side effects before anything else renders.
	if resume.Invalidate {
		h.clearSessionCookie(w, tenant)
		h.clearRememberCookie(w, tenant)
		http.Redirect(w, r, tenant.URL, http.StatusFound)
		return
	}
	if resume.ClearRemember {
		h.clearRememberCookie(w, tenant)
	}
	if resume.SetRemember != "" {
		h.setRememberCookie(w, tenant, resume.SetRemember)
	}
	if resume.Authenticated && h.sessionCookieValue(r) != resume.Session.ID {
		// Cookie sign-in minted a new session row.
		h.setSessionCookie(w, tenant, resume.Session)
	}
	if resume.Redirect != nil {
		h.redirectOutcome(w, r, tenant, *resume.Redirect)
		return
	}

	// The anti-forgery value served on the page only verifies together with
	// the token riding in the check cookie, so a browser without that cookie
	// gets one minted here.
	checkToken := h.checkCookieValue(r)
	if checkToken == "" {
		checkToken = uuid.NewString()
		h.setCheckCookie(w, tenant, checkToken)
	}

	st := requestState{tenant: tenant, resume: resume, checkToken: checkToken}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, st)
	case http.MethodPost:
		h.handlePost(w, r, st)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request, st requestState) {
	switch r.PathValue("action") {
	case "":
		h.renderState(w, r, st, "", "", nil)
	case statePending:
		h.renderState(w, r, st, statePending, "", []string{msgAccountPending})
	case stateDisabled:
		h.renderState(w, r, st, stateDisabled, "", []string{msgAccountDisabled})
	case stateChange:
		h.getChange(w, r, st)
	case actionRecover:
		h.getRecover(w, r, st)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionHandler) handlePost(w http.ResponseWriter, r *http.Request, st requestState) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Every mutating action requires the anti-forgery nonce before any side
	// effect.
	if !h.verifyNonce(r, st) {
		http.Error(w, http.StatusText(http.StatusPreconditionFailed), http.StatusPreconditionFailed)
		return
	}

	// The form field overrides the path segment.
	action := r.PathValue("action")
	if v := r.Form.Get("action"); v != "" {
		action = v
	}

	switch action {
	case actionSignin:
		h.postSignin(w, r, st)
	case actionSignout:
		h.postSignout(w, r, st)
	case actionSignup:
		h.postSignup(w, r, st)
	case actionRecover:
		h.postRecover(w, r, st)
	case actionChange:
		h.postChange(w, r, st)
	case actionUpdProfile:
		h.postUpdateProfile(w, r, st)
	case actionUpdPass:
		h.postUpdatePassword(w, r, st)
	default:
		http.NotFound(w, r)
	}
}

// nonce keys the anti-forgery value off the random token held by this browser
// in the check cookie (double submit). A value read from the page without that
// cookie verifies nothing, so a forged cross-site POST riding on the victim's
// cookies cannot carry a usable nonce.
func (h *SessionHandler) nonce(checkToken string) string {
	return cryptox.KeyedHash(h.Secret, "check:"+checkToken)
}

func (h *SessionHandler) verifyNonce(r *http.Request, st requestState) bool {
	return cryptox.FingerprintEqual(h.nonce(st.checkToken), r.Form.Get("check"))
}

func (h *SessionHandler) resolveTenant(ctx context.Context, r *http.Request) (domain.Tenant, error) {
	host := r.Host
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return h.Store.Tenants().GetTenantByHost(ctx, host)
}

func (h *SessionHandler) sessionCookieValue(r *http.Request) string {
	if c, err := r.Cookie(h.Cookies.SessionName); err == nil {
		return c.Value
	}
	return ""
}

func (h *SessionHandler) rememberCookieValue(r *http.Request) string {
	if c, err := r.Cookie(h.Cookies.RememberName); err == nil {
		return c.Value
	}
	return ""
}

// sessionURL is the session page base for the tenant.
func (h *SessionHandler) sessionURL(tenant domain.Tenant) string {
	return tenant.PageURL("session")
}

// redirectOutcome maps a non-authenticated check outcome onto the redirect
// the browser should follow.
func (h *SessionHandler) redirectOutcome(w http.ResponseWriter, r *http.Request, tenant domain.Tenant, check service.CheckResult) {
	if check.ClearRemember {
		h.clearRememberCookie(w, tenant)
	}

	switch check.Outcome {
	case service.OutcomePending:
		http.Redirect(w, r, h.sessionURL(tenant)+"/"+statePending, http.StatusFound)
	case service.OutcomeDisabled:
		http.Redirect(w, r, h.sessionURL(tenant)+"/"+stateDisabled, http.StatusFound)
	case service.OutcomeChangePassword:
		http.Redirect(w, r, h.sessionURL(tenant)+"/"+stateChange+"?data="+url.QueryEscape(check.ChangePayload), http.StatusFound)
	default:
		http.Redirect(w, r, tenant.URL, http.StatusFound)
	}
}

// completeSignin applies an authenticated check result and sends the user to
// the tenant home.
func (h *SessionHandler) completeSignin(w http.ResponseWriter, r *http.Request, tenant domain.Tenant, check service.CheckResult) {
	h.setSessionCookie(w, tenant, check.Session)
	if check.RememberCookie != "" {
		h.setRememberCookie(w, tenant, check.RememberCookie)
	}
	http.Redirect(w, r, tenant.URL, http.StatusFound)
}

func (h *SessionHandler) renderState(w http.ResponseWriter, r *http.Request, st requestState, state, success string, errs []string) {
	page := statePage{
		State:   state,
		Check:   h.nonce(st.checkToken),
		Success: success,
		Errors:  errs,
	}
	if st.resume.Authenticated {
		u := st.resume.User
		page.User = &userInfo{
			ID:          u.ID,
			DisplayName: u.DisplayName(),
			Email:       u.Email,
			URL:         u.URL,
		}
		if page.State == "" {
			page.State = "connected"
		}
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}
