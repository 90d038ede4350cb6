package util

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenHash returns a URL-safe base62 string of the given length that the
// exists callback reports as unused. Collisions retry without bound: for a
// 6-char id the space is 62^6 (~5.7e10), so in practice the loop terminates
// on the first or second candidate. Non-termination is theoretically possible
// only with an effectively full id space, which is an accepted tradeoff.
// Store or entropy failures abort instead of retrying.
func GenHash(length int, exists func(string) (bool, error)) (string, error) {
	if length <= 0 {
		return "", errors.New("hash length must be positive")
	}
	for {
		id, err := randBase62(length)
		if err != nil {
			return "", errors.Wrap(err, "rand fail")
		}
		taken, err := exists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
}

// randBase62 draws each character by rejection sampling so the distribution
// stays uniform over the 62-char alphabet.
func randBase62(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 248 { // 248 = 62*4, highest multiple of 62 below 256
				continue
			}
			out = append(out, base62Chars[b%62])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
