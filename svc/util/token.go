package util

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

const sessionTokenBytes = 32

// NewSessionToken returns an opaque 256-bit token for the session cookie.
// The token carries no structure; all meaning lives server-side.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "session token entropy")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
