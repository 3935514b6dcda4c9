package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/pkg/slogx"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{3,}$`)

const (
	msgUsernameInvalid   = "This username is not valid."
	msgUsernameTaken     = "This username is not available."
	msgEmailsMismatch    = "Emails missmatch."
	msgEmailInvalid      = "Email is not valid."
	msgPasswordsMismatch = "Passwords missmatch."
	msgSignupDone        = "Thank you for your registration. An administrator will validate your request soon."
	msgSignupFailed      = "Something went wrong while trying to register user."
)

func (h *SessionHandler) postSignup(w http.ResponseWriter, r *http.Request, st requestState) {
	if !h.Registration {
		http.NotFound(w, r)
		return
	}
	if st.resume.Authenticated {
		http.Redirect(w, r, st.tenant.URL, http.StatusFound)
		return
	}

	ctx := r.Context()
	logger := slogx.FromContext(ctx)

	login := r.Form.Get("login")
	firstname := r.Form.Get("firstname")
	displayname := r.Form.Get("displayname")
	email := r.Form.Get("email")
	vemail := r.Form.Get("vemail")
	password := r.Form.Get("password")
	vpassword := r.Form.Get("vpassword")

	// All checks run; every failure lands in the list. Nothing is created
	// unless the whole set passes.
	var errs []string

	if !usernameRe.MatchString(login) {
		errs = append(errs, msgUsernameInvalid)
	} else if taken, err := h.Directory.Exists(ctx, login); err != nil {
		logger.Error("signup uniqueness check failed", "error", err)
		h.renderState(w, r, st, "", "", []string{msgSignupFailed})
		return
	} else if taken {
		errs = append(errs, msgUsernameTaken)
	}

	if email == "" || email != vemail {
		errs = append(errs, msgEmailsMismatch)
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, msgEmailInvalid)
	}

	if password == "" || password != vpassword {
		errs = append(errs, msgPasswordsMismatch)
	} else if len(password) < h.PasswordMinLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters long.", h.PasswordMinLength))
	}

	if len(errs) > 0 {
		h.renderState(w, r, st, "", "", errs)
		return
	}

	u := domain.User{
		ID:          login,
		Firstname:   firstname,
		Displayname: displayname,
		Email:       email,
	}
	if err := h.Directory.Create(ctx, u, password, st.tenant.ID); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			h.renderState(w, r, st, "", "", []string{msgUsernameTaken})
			return
		}
		logger.Error("signup failed", "error", err)
		h.renderState(w, r, st, "", "", []string{msgSignupFailed})
		return
	}

	for _, sink := range h.Sinks {
		sink.OnAfterSignup(ctx, st.tenant, u)
	}

	if err := h.Mailer.SendRegistrationMail(ctx, st.tenant, u, password); err != nil {
		logger.Error("registration mail failed", "error", err, "user_id", u.ID)
		h.renderState(w, r, st, "", "", []string{msgSignupFailed})
		return
	}

	h.renderState(w, r, st, "", msgSignupDone, nil)
}
