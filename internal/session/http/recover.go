package http

import (
	"errors"
	"net/http"

	"github.com/lamplight/frontsession/internal/session/service"
	"github.com/lamplight/frontsession/pkg/slogx"
)

const (
	msgRecoverySent     = "If the information matches an account, a recovery email has been sent to your mailbox."
	msgNewPasswordSent  = "Your new password is in your mailbox."
	msgRecoveryKeyStale = "This recovery key is invalid or has expired."
)

// postRecover mails a single-use recovery key. The response is identical
// whether or not the login/email pair matched an account, so the form cannot
// be used to probe for accounts. Super admins are the one exception: they are
// told to use the back-office.
func (h *SessionHandler) postRecover(w http.ResponseWriter, r *http.Request, st requestState) {
	if !h.Recovery {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	logger := slogx.FromContext(ctx)

	login := r.Form.Get("login")
	email := r.Form.Get("email")

	key, err := h.Directory.SetRecoveryKey(ctx, login, email)
	switch {
	case errors.Is(err, service.ErrAdminAccount):
		h.renderState(w, r, st, "", "", []string{msgAdminBackend})
		return
	case errors.Is(err, service.ErrUnknownRecovery):
		// Fall through to the generic success message.
	case err != nil:
		logger.Error("recovery key creation failed", "error", err)
		h.renderState(w, r, st, "", "", []string{msgSomethingWrong})
		return
	default:
		if err := h.Mailer.SendRecoveryMail(ctx, st.tenant, login, key, email); err != nil {
			logger.Error("recovery mail failed", "error", err, "user_id", login)
			h.renderState(w, r, st, "", "", []string{msgSomethingWrong})
			return
		}
	}

	h.renderState(w, r, st, "", msgRecoverySent, nil)
}

// getRecover consumes the mailed key: the account gets a generated password,
// flagged for change on first sign-in, and the password is mailed back.
func (h *SessionHandler) getRecover(w http.ResponseWriter, r *http.Request, st requestState) {
	if !h.Recovery {
		http.NotFound(w, r)
		return
	}

	key := r.PathValue("arg")
	if key == "" {
		h.renderState(w, r, st, actionRecover, "", nil)
		return
	}

	ctx := r.Context()
	logger := slogx.FromContext(ctx)

	userID, email, newPassword, err := h.Directory.ConsumeRecoveryKey(ctx, key)
	if err != nil {
		if errors.Is(err, service.ErrUnknownRecovery) {
			h.renderState(w, r, st, actionRecover, "", []string{msgRecoveryKeyStale})
			return
		}
		logger.Error("recovery key consumption failed", "error", err)
		h.renderState(w, r, st, actionRecover, "", []string{msgSomethingWrong})
		return
	}

	if err := h.Mailer.SendPasswordMail(ctx, st.tenant, userID, newPassword, email); err != nil {
		logger.Error("new password mail failed", "error", err, "user_id", userID)
		h.renderState(w, r, st, actionRecover, "", []string{msgSomethingWrong})
		return
	}

	h.renderState(w, r, st, actionRecover, msgNewPasswordSent, nil)
}
