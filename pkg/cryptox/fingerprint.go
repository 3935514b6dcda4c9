package cryptox

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - legacy 40-char fingerprint format, not collision-sensitive
	"encoding/hex"
)

// FingerprintLength is the length of the hex-encoded keyed fingerprint.
const FingerprintLength = 40

// KeyedHash computes the 40-character hex HMAC-SHA1 fingerprint of data under
// the given secret. All token and browser fingerprints in this service share
// this format.
func KeyedHash(secret []byte, data string) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// BrowserUID derives a fingerprint binding a session to the requesting
// browser. A stolen session cookie replayed from a different client context
// produces a different UID and the session is discarded.
func BrowserUID(secret []byte, userAgent string) string {
	return KeyedHash(secret, userAgent)
}

// FingerprintEqual compares two fingerprints in constant time.
func FingerprintEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
