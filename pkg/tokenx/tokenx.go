// Package tokenx implements the two fixed-shape wire formats used by the
// frontend session service: the long-lived "remember me" cookie value and the
// password-change payload carried in URLs and hidden form fields.
//
// Both formats are preserved byte-for-byte from the historical deployment so
// cookies issued before a migration keep working. A remember token is the
// 40-character keyed fingerprint of (user id + password secret) followed by
// the user id packed into a fixed 32-byte field and hex encoded, 104
// characters in total. The fingerprint is keyed material derived from the
// current password hash, so changing the password invalidates every
// outstanding token.
package tokenx

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/lamplight/frontsession/pkg/cryptox"
)

const (
	// TokenLength is the exact length of a remember-me cookie value.
	// Anything else is rejected without further parsing.
	TokenLength = 104

	// userIDFieldSize is the fixed packed width of the user id.
	userIDFieldSize = 32
)

// ErrMalformedToken reports a cookie value that does not parse. Callers treat
// it as an absent cookie, never as a hard failure.
var ErrMalformedToken = errors.New("tokenx: malformed token")

// ChangeData is the decoded form of a password-change payload.
type ChangeData struct {
	UserID   string
	Remember bool
}

// EncodeRememberToken builds the 104-character remember cookie value for a
// user. passwordSecret is the directory's keying material derived from the
// user's current password hash.
func EncodeRememberToken(userID, passwordSecret string, secret []byte) string {
	fp := cryptox.KeyedHash(secret, userID+passwordSecret)
	return fp + hex.EncodeToString(packUserID(userID))
}

// DecodeRememberToken splits a cookie value into its embedded user id and
// fingerprint. The fingerprint is NOT verified here; the caller must check it
// against the directory's current password secret for that user.
func DecodeRememberToken(token string) (userID, fingerprint string, err error) {
	if len(token) != TokenLength {
		return "", "", ErrMalformedToken
	}

	fingerprint = token[:cryptox.FingerprintLength]

	raw, err := hex.DecodeString(token[cryptox.FingerprintLength:])
	if err != nil || len(raw) != userIDFieldSize {
		return "", "", ErrMalformedToken
	}

	userID = unpackUserID(raw)
	if userID == "" {
		return "", "", ErrMalformedToken
	}

	return userID, fingerprint, nil
}

// EncodeChangePayload builds the payload round-tripped through the forced
// password change flow: base64(user id), a remember token proving possession
// of a valid prior credential, and the remember flag.
func EncodeChangePayload(userID, passwordSecret string, secret []byte, remember bool) string {
	flag := "0"
	if remember {
		flag = "1"
	}
	return base64.StdEncoding.EncodeToString([]byte(userID)) + "/" +
		EncodeRememberToken(userID, passwordSecret, secret) + "/" + flag
}

// DecodeChangePayload parses a change payload and re-verifies the embedded
// fingerprint through verify before trusting the user id. The payload is
// attacker-visible: any malformed field or failed verification yields an
// empty UserID rather than an error, so a forger learns nothing.
func DecodeChangePayload(payload string, verify func(userID, fingerprint string) bool) ChangeData {
	parts := strings.SplitN(payload, "/", 3)

	data := ChangeData{}
	if len(parts) == 3 {
		data.Remember = parts[2] == "1"
	}

	if len(parts) < 2 {
		return data
	}

	raw, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return data
	}
	userID := strings.TrimSpace(string(raw))

	embedded, fingerprint, err := DecodeRememberToken(parts[1])
	if err != nil || embedded != userID {
		return data
	}

	if verify == nil || !verify(userID, fingerprint) {
		return data
	}

	data.UserID = userID
	return data
}

func packUserID(id string) []byte {
	b := make([]byte, userIDFieldSize)
	copy(b, id)
	return b
}

func unpackUserID(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00")
}
