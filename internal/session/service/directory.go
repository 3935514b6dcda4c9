package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/pkg/cryptox"
	"github.com/lamplight/frontsession/pkg/idx"
)

// RecoveryKeyTTL bounds how long a mailed recovery key stays valid.
const RecoveryKeyTTL = 48 * time.Hour

// Directory is the identity directory consumed by the credential check and
// the action dispatcher. The sqlite-backed DirectoryService below implements
// it against the platform's user tables; a host CMS may substitute its own.
type Directory interface {
	// Verify checks a user id against either a plaintext password or a
	// remember-token fingerprint. Exactly one of password/fingerprint is
	// non-nil. Unknown users, failed verification and a nil credential pair
	// all return ErrBadCredentials.
	Verify(ctx context.Context, userID string, password, fingerprint *string) (domain.User, error)

	// UserByID returns the account record.
	UserByID(ctx context.Context, userID string) (domain.User, error)

	// Exists reports whether a login is taken.
	Exists(ctx context.Context, userID string) (bool, error)

	// Create registers a new account with status Pending and grants the
	// frontend-session permission on the tenant.
	Create(ctx context.Context, u domain.User, password, tenantID string) error

	// UpdatePassword replaces the password and clears the forced-change
	// flag. Submitting the current password again returns
	// ErrPasswordUnchanged.
	UpdatePassword(ctx context.Context, userID, newPassword string) error

	// UpdateProfileURL mutates the public profile URL.
	UpdateProfileURL(ctx context.Context, userID, url string) error

	// PasswordSecret derives the remember-token keying material from the
	// user's current password hash. Changing the password changes the
	// secret and thereby invalidates every outstanding remember token.
	PasswordSecret(ctx context.Context, userID string) (string, error)

	// SetRecoveryKey mints a single-use recovery key for a login/email
	// pair. An unknown pair returns ErrUnknownRecovery; super admin
	// accounts return ErrAdminAccount since they recover through the back
	// office.
	SetRecoveryKey(ctx context.Context, userID, email string) (string, error)

	// ConsumeRecoveryKey exchanges a key for a freshly generated password,
	// exactly once. The new password carries the forced-change flag.
	ConsumeRecoveryKey(ctx context.Context, key string) (userID, email, newPassword string, err error)
}

// DirectoryService implements Directory on top of the Store.
type DirectoryService struct {
	Store  store.Store
	Secret []byte
}

func (s *DirectoryService) Verify(ctx context.Context, userID string, password, fingerprint *string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrBadCredentials
		}
		return domain.User{}, err
	}

	switch {
	case password != nil:
		if cryptox.VerifyPassword(*password, u.PasswordHash) != nil {
			return domain.User{}, ErrBadCredentials
		}
	case fingerprint != nil:
		expected := cryptox.KeyedHash(s.Secret, u.ID+s.passwordSecret(u))
		if !cryptox.FingerprintEqual(expected, *fingerprint) {
			return domain.User{}, ErrBadCredentials
		}
	default:
		// Presenting no credential at all never authenticates.
		return domain.User{}, ErrBadCredentials
	}

	return u, nil
}

func (s *DirectoryService) UserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

func (s *DirectoryService) Exists(ctx context.Context, userID string) (bool, error) {
	return s.Store.Users().Exists(ctx, userID)
}

func (s *DirectoryService) Create(ctx context.Context, u domain.User, password, tenantID string) error {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.Status = domain.StatusPending

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		return tx.Permissions().Grant(ctx, idx.New().String(), u.ID, tenantID)
	})
}

func (s *DirectoryService) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if cryptox.VerifyPassword(newPassword, u.PasswordHash) == nil {
		return ErrPasswordUnchanged
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

func (s *DirectoryService) UpdateProfileURL(ctx context.Context, userID, url string) error {
	return s.Store.Users().UpdateProfileURL(ctx, userID, url)
}

func (s *DirectoryService) PasswordSecret(ctx context.Context, userID string) (string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.passwordSecret(u), nil
}

// passwordSecret never exposes the hash itself on the wire.
func (s *DirectoryService) passwordSecret(u domain.User) string {
	return cryptox.KeyedHash(s.Secret, u.PasswordHash)
}

func (s *DirectoryService) SetRecoveryKey(ctx context.Context, userID, email string) (string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownRecovery
		}
		return "", err
	}
	if u.Email == "" || u.Email != email {
		return "", ErrUnknownRecovery
	}
	if u.SuperAdmin {
		return "", ErrAdminAccount
	}

	now := time.Now().UTC()
	key := uuid.NewString()
	err = s.Store.RecoveryKeys().SetRecoveryKey(ctx, domain.RecoveryKey{
		Key:       key,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(RecoveryKeyTTL),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *DirectoryService) ConsumeRecoveryKey(ctx context.Context, key string) (string, string, string, error) {
	newPassword, err := cryptox.GeneratePassword()
	if err != nil {
		return "", "", "", err
	}
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return "", "", "", err
	}

	var userID, email string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		k, err := tx.RecoveryKeys().GetRecoveryKey(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnknownRecovery
			}
			return err
		}

		u, err := tx.Users().GetUserByID(ctx, k.UserID)
		if err != nil {
			return fmt.Errorf("recovery key without user: %w", err)
		}
		userID, email = u.ID, u.Email

		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			return err
		}
		// The mailed password is temporary; force a change on first sign-in.
		if err := tx.Users().SetMustChangePassword(ctx, u.ID, true); err != nil {
			return err
		}
		return tx.RecoveryKeys().DeleteRecoveryKey(ctx, key)
	})
	if err != nil {
		return "", "", "", err
	}
	return userID, email, newPassword, nil
}
