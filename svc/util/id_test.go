package util

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestGenHashLengthAndAlphabet(t *testing.T) {
	never := func(string) (bool, error) { return false, nil }
	for _, n := range []int{1, 6, 12} {
		id, err := GenHash(n, never)
		if err != nil {
			t.Fatalf("GenHash(%d) failed: %v", n, err)
		}
		if len(id) != n {
			t.Errorf("GenHash(%d) returned %d chars: %q", n, len(id), id)
		}
		for _, c := range id {
			if !strings.ContainsRune(base62Chars, c) {
				t.Errorf("GenHash produced out-of-alphabet char %q in %q", c, id)
			}
		}
	}
}

func TestGenHashRetriesOnCollision(t *testing.T) {
	calls := 0
	exists := func(string) (bool, error) {
		calls++
		return calls <= 3, nil
	}
	id, err := GenHash(6, exists)
	if err != nil {
		t.Fatalf("GenHash failed: %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 existence probes, got %d", calls)
	}
	if id == "" {
		t.Error("GenHash returned empty id after retries")
	}
}

func TestGenHashPropagatesStoreError(t *testing.T) {
	probeErr := errors.New("store down")
	_, err := GenHash(6, func(string) (bool, error) { return false, probeErr })
	if errors.Cause(err) != probeErr {
		t.Errorf("expected store error to abort, got %v", err)
	}
}

func TestGenHashRejectsBadLength(t *testing.T) {
	if _, err := GenHash(0, func(string) (bool, error) { return false, nil }); err == nil {
		t.Error("expected error for zero length")
	}
}

func TestGenHashUnique(t *testing.T) {
	seen := make(map[string]struct{})
	never := func(string) (bool, error) { return false, nil }
	for i := 0; i < 200; i++ {
		id, err := GenHash(6, never)
		if err != nil {
			t.Fatalf("GenHash failed: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d draws: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
