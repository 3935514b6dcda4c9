package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lamplight/frontsession/internal/session/service"
	"github.com/lamplight/frontsession/pkg/slogx"
)

const (
	msgMustSetPassword   = "You must set a new password."
	msgPasswordUnchanged = "You didn't change your password."
)

// getChange renders the forced password change form state. The payload rides
// in the `data` query parameter; a stale or forged payload sends the browser
// home instead of admitting anything about the account.
func (h *SessionHandler) getChange(w http.ResponseWriter, r *http.Request, st requestState) {
	data := r.URL.Query().Get("data")
	cd := h.Checker.DecodeChangePayload(r.Context(), data)
	if cd.UserID == "" {
		http.Redirect(w, r, st.tenant.URL, http.StatusFound)
		return
	}
	h.renderState(w, r, st, stateChange, "", []string{msgMustSetPassword})
}

func (h *SessionHandler) postChange(w http.ResponseWriter, r *http.Request, st requestState) {
	ctx := r.Context()
	logger := slogx.FromContext(ctx)

	cd := h.Checker.DecodeChangePayload(ctx, r.Form.Get("data"))
	if cd.UserID == "" {
		h.renderState(w, r, st, stateChange, "", []string{msgUnknownUser})
		return
	}

	u, err := h.Directory.UserByID(ctx, cd.UserID)
	if err != nil {
		logger.Error("change-password lookup failed", "error", err)
		h.renderState(w, r, st, stateChange, "", []string{msgUnknownUser})
		return
	}
	if u.SuperAdmin {
		h.renderState(w, r, st, stateChange, "", []string{msgAdminBackend})
		return
	}

	password := r.Form.Get("password")
	vpassword := r.Form.Get("vpassword")

	var errs []string
	if password == "" || password != vpassword {
		errs = append(errs, msgPasswordsMismatch)
	} else if len(password) < h.PasswordMinLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters long.", h.PasswordMinLength))
	}
	if len(errs) > 0 {
		h.renderState(w, r, st, stateChange, "", errs)
		return
	}

	if err := h.Directory.UpdatePassword(ctx, u.ID, password); err != nil {
		if errors.Is(err, service.ErrPasswordUnchanged) {
			h.renderState(w, r, st, stateChange, "", []string{msgPasswordUnchanged})
			return
		}
		logger.Error("password update failed", "error", err, "user_id", u.ID)
		h.renderState(w, r, st, stateChange, "", []string{msgSomethingWrong})
		return
	}

	// Sign the user straight in, carrying the remember choice made before
	// the forced change interrupted it.
	check, err := h.Checker.Check(ctx, st.tenant, r.UserAgent(), service.Credentials{
		UserID:   u.ID,
		Password: &password,
		Remember: cd.Remember,
	})
	if err != nil {
		logger.Error("post-change sign-in failed", "error", err)
		h.renderState(w, r, st, "", "", []string{msgSomethingWrong})
		return
	}

	if check.Outcome == service.OutcomeAuthenticated {
		h.completeSignin(w, r, st.tenant, check)
		return
	}
	h.redirectOutcome(w, r, st.tenant, check)
}
