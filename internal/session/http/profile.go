package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lamplight/frontsession/internal/session/service"
	"github.com/lamplight/frontsession/pkg/slogx"
)

const (
	msgProfileUpdated    = "Profil successfully updated."
	msgPasswordUpdated   = "Password successfully updated."
	msgPasswordBadVerify = "Password verification failed."
)

// postUpdateProfile mutates the signed-in user's public profile.
func (h *SessionHandler) postUpdateProfile(w http.ResponseWriter, r *http.Request, st requestState) {
	if !st.resume.Authenticated {
		http.Redirect(w, r, h.sessionURL(st.tenant), http.StatusFound)
		return
	}

	ctx := r.Context()
	u := st.resume.User

	if err := h.Directory.UpdateProfileURL(ctx, u.ID, r.Form.Get("url")); err != nil {
		slogx.FromContext(ctx).Error("profile update failed", "error", err, "user_id", u.ID)
		h.renderState(w, r, st, "", "", []string{msgSomethingWrong})
		return
	}

	// Reload so the rendered state reflects the update.
	if fresh, err := h.Directory.UserByID(ctx, u.ID); err == nil {
		st.resume.User = fresh
	}
	h.renderState(w, r, st, "", msgProfileUpdated, nil)
}

// postUpdatePassword changes the signed-in user's password after verifying
// possession of the current one.
func (h *SessionHandler) postUpdatePassword(w http.ResponseWriter, r *http.Request, st requestState) {
	if !st.resume.Authenticated {
		http.Redirect(w, r, h.sessionURL(st.tenant), http.StatusFound)
		return
	}

	ctx := r.Context()
	logger := slogx.FromContext(ctx)
	u := st.resume.User

	current := r.Form.Get("current")
	if _, err := h.Directory.Verify(ctx, u.ID, &current, nil); err != nil {
		if errors.Is(err, service.ErrBadCredentials) {
			h.renderState(w, r, st, "", "", []string{msgPasswordBadVerify})
			return
		}
		logger.Error("password verification failed", "error", err, "user_id", u.ID)
		h.renderState(w, r, st, "", "", []string{msgSomethingWrong})
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
		h.renderState(w, r, st, "", "", errs)
		return
	}

	if err := h.Directory.UpdatePassword(ctx, u.ID, password); err != nil {
		if errors.Is(err, service.ErrPasswordUnchanged) {
			h.renderState(w, r, st, "", "", []string{msgPasswordUnchanged})
			return
		}
		logger.Error("password update failed", "error", err, "user_id", u.ID)
		h.renderState(w, r, st, "", "", []string{msgSomethingWrong})
		return
	}

	// Remember tokens are keyed off the password hash; the one in the
	// browser just went stale.
	h.clearRememberCookie(w, st.tenant)
	h.renderState(w, r, st, "", msgPasswordUpdated, nil)
}
