package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const maxPasswordLength = 1024

// Hasher produces and verifies salted argon2id password hashes in the
// standard $argon2id$ encoded form. Passwords never leave this package in
// plaintext. An optional pepper is applied as an HMAC keyed transform before
// hashing.
type Hasher struct {
	iterations  uint32
	memory      uint32
	parallelism uint8
	keyLength   uint32
	pepper      []byte
}

func NewHasher(time, memory uint32, parallelism uint8, keyLength uint32, pepper []byte) (*Hasher, error) {
	if time == 0 || time > 100 {
		return nil, errors.New("iterations must be between 1 and 100")
	}
	if memory < 8*1024 || memory > 2*1024*1024 {
		return nil, errors.New("memory must be between 8192 and 2097152 KiB")
	}
	if parallelism == 0 {
		return nil, errors.New("parallelism must be at least 1")
	}
	if keyLength < 16 {
		return nil, errors.New("key length must be >= 16")
	}
	var pepperCopy []byte
	if len(pepper) > 0 {
		pepperCopy = make([]byte, len(pepper))
		copy(pepperCopy, pepper)
	}
	return &Hasher{
		iterations:  time,
		memory:      memory,
		parallelism: parallelism,
		keyLength:   keyLength,
		pepper:      pepperCopy,
	}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordLength {
		return "", errors.New("password too long")
	}
	input := h.applyPepper(password)
	defer wipe(input)
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "salt entropy")
	}
	hash := argon2.IDKey(input, salt, h.iterations, h.memory, h.parallelism, h.keyLength)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.iterations, h.parallelism, b64Salt, b64Hash), nil
}

// Verify compares a candidate password against an encoded hash. It always
// performs a full argon2 derivation and holds responses at a minimum duration
// so failures are indistinguishable by timing.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	start := time.Now()
	var match bool
	var err error
	if len(password) > maxPasswordLength {
		h.verifyInternal(strings.Repeat("x", 8), dummyEncoded)
		match = false
	} else {
		match, err = h.verifyInternal(password, encoded)
	}
	if elapsed := time.Since(start); elapsed < minVerifyDuration {
		time.Sleep(minVerifyDuration - elapsed)
	}
	return match, err
}

// VerifyDummy burns a full verification cycle against a throwaway hash. Used
// when the username is unknown so login timing does not leak existence.
func (h *Hasher) VerifyDummy() {
	h.verifyInternal("dummy-password", dummyEncoded)
}

const (
	minVerifyDuration = 100 * time.Millisecond
	dummyEncoded      = "$argon2id$v=19$m=65536,t=1,p=1$ZHVtbXlzYWx0MDAwMA$ZHVtbXloYXNoMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAw"
)

func (h *Hasher) verifyInternal(password, encoded string) (bool, error) {
	mem, iters, threads := h.memory, h.iterations, h.parallelism
	var salt, hash []byte
	valid := true
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		valid = false
	} else if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &threads); err != nil {
		valid = false
	} else if mem > 2*1024*1024 || iters > 1000 {
		valid = false
	} else {
		var err error
		salt, err = base64.RawStdEncoding.DecodeString(parts[4])
		if err != nil || len(salt) == 0 {
			valid = false
		}
		hash, err = base64.RawStdEncoding.DecodeString(parts[5])
		if err != nil || len(hash) == 0 || len(hash) > 256 {
			valid = false
		}
	}
	if !valid {
		mem, iters, threads = h.memory, h.iterations, h.parallelism
		salt = make([]byte, 16)
		hash = make([]byte, 32)
	}
	defer wipe(salt)
	defer wipe(hash)
	input := h.applyPepper(password)
	defer wipe(input)
	other := argon2.IDKey(input, salt, iters, mem, threads, uint32(len(hash)))
	defer wipe(other)
	match := subtle.ConstantTimeCompare(hash, other) == 1
	return valid && match, nil
}

func (h *Hasher) applyPepper(password string) []byte {
	if len(h.pepper) == 0 {
		out := []byte(password)
		return out
	}
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
