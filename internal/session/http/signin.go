package http

import (
	"net/http"

	"github.com/lamplight/frontsession/internal/session/service"
	"github.com/lamplight/frontsession/pkg/slogx"
)

func (h *SessionHandler) postSignin(w http.ResponseWriter, r *http.Request, st requestState) {
	if st.resume.Authenticated {
		http.Redirect(w, r, st.tenant.URL, http.StatusFound)
		return
	}

	// A state marker round-tripped from a prior redirect short-circuits to
	// its message without a directory call.
	switch r.Form.Get("state") {
	case statePending:
		h.renderState(w, r, st, statePending, "", []string{msgAccountPending})
		return
	case stateDisabled:
		h.renderState(w, r, st, stateDisabled, "", []string{msgAccountDisabled})
		return
	}

	login := r.Form.Get("login")
	password := r.Form.Get("password")
	remember := r.Form.Get("remember") == "1"

	check, err := h.Checker.Check(r.Context(), st.tenant, r.UserAgent(), service.Credentials{
		UserID:   login,
		Password: &password,
		Remember: remember,
	})
	if err != nil {
		slogx.FromContext(r.Context()).Error("sign-in check failed", "error", err)
		h.renderState(w, r, st, "", "", []string{msgSomethingWrong})
		return
	}

	switch check.Outcome {
	case service.OutcomeAuthenticated:
		h.completeSignin(w, r, st.tenant, check)
	case service.OutcomePending, service.OutcomeDisabled, service.OutcomeChangePassword:
		h.redirectOutcome(w, r, st.tenant, check)
	default:
		// Rejected and empty credentials share one message so field-level
		// failures stay indistinguishable.
		if check.ClearRemember {
			h.clearRememberCookie(w, st.tenant)
		}
		h.renderState(w, r, st, "", "", []string{msgWrongCredentials})
	}
}

func (h *SessionHandler) postSignout(w http.ResponseWriter, r *http.Request, st requestState) {
	if st.resume.Authenticated {
		if err := h.Checker.SignOut(r.Context(), st.tenant, st.resume.Session); err != nil {
			slogx.FromContext(r.Context()).Error("sign-out failed", "error", err)
		}
	}
	h.clearSessionCookie(w, st.tenant)
	h.clearRememberCookie(w, st.tenant)
	http.Redirect(w, r, st.tenant.URL, http.StatusFound)
}
