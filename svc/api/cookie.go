package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// CookieCodec signs the opaque session token with an HMAC so a tampered
// cookie is rejected before any store lookup. With no secret configured the
// bare token is used as the cookie value.
type CookieCodec struct {
	secret []byte
}

func NewCookieCodec(secret string) *CookieCodec {
	if secret == "" {
		return &CookieCodec{}
	}
	return &CookieCodec{secret: []byte(secret)}
}

func (c *CookieCodec) Encode(token string) string {
	if len(c.secret) == 0 {
		return token
	}
	return token + "." + c.sign(token)
}

func (c *CookieCodec) Decode(value string) (string, bool) {
	if len(c.secret) == 0 {
		return value, value != ""
	}
	i := strings.LastIndexByte(value, '.')
	if i <= 0 {
		return "", false
	}
	token, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(c.sign(token))) {
		return "", false
	}
	return token, true
}

func (c *CookieCodec) sign(token string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
