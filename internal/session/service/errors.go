package service

import "errors"

var (
	// ErrBadCredentials covers wrong password, wrong fingerprint, unknown
	// user and missing tenant permission alike. Callers surface one generic
	// message so nothing leaks about which check failed.
	ErrBadCredentials = errors.New("bad_credentials")

	// ErrAdminAccount marks operations refused for (super)admin accounts on
	// the public surface; those go through the back office.
	ErrAdminAccount = errors.New("admin_account")

	// ErrUnknownRecovery covers unknown login/email pairs and unknown or
	// expired recovery keys.
	ErrUnknownRecovery = errors.New("unknown_recovery")

	// ErrPasswordUnchanged is returned when a forced change submits the
	// current password again.
	ErrPasswordUnchanged = errors.New("password_unchanged")
)
