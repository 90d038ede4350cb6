package lim

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testRequest(remoteAddr, xff string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remoteAddr
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	return r
}

func TestCheckAllowsWithinBurst(t *testing.T) {
	l := New(60, 5, nil, nil)
	defer l.Stop()

	for i := 0; i < 5; i++ {
		res := l.Check(testRequest("10.0.0.1:1234", ""), "create")
		if !res.Allowed {
			t.Fatalf("request %d denied within burst", i)
		}
		if res.Limit != 60 {
			t.Errorf("limit = %d, want 60", res.Limit)
		}
	}
}

func TestCheckDeniesBeyondBurst(t *testing.T) {
	l := New(60, 2, nil, nil)
	defer l.Stop()

	l.Check(testRequest("10.0.0.2:1234", ""), "create")
	l.Check(testRequest("10.0.0.2:1234", ""), "create")
	res := l.Check(testRequest("10.0.0.2:1234", ""), "create")
	if res.Allowed {
		t.Error("third request admitted past a burst of 2")
	}
}

func TestCheckBucketsAreIndependent(t *testing.T) {
	l := New(60, 1, nil, nil)
	defer l.Stop()

	if !l.Check(testRequest("10.0.0.3:1", ""), "create").Allowed {
		t.Fatal("first ip denied")
	}
	if l.Check(testRequest("10.0.0.3:1", ""), "create").Allowed {
		t.Fatal("first ip not exhausted")
	}
	// A different IP and a different endpoint each get their own bucket.
	if !l.Check(testRequest("10.0.0.4:1", ""), "create").Allowed {
		t.Error("second ip shares the first ip's bucket")
	}
	if !l.Check(testRequest("10.0.0.3:1", ""), "view").Allowed {
		t.Error("second endpoint shares the first endpoint's bucket")
	}
}

func TestClientIPIgnoresSpoofedForwardedFor(t *testing.T) {
	l := New(60, 5, nil, nil)
	defer l.Stop()

	// Peer is not a trusted proxy, so the header must be ignored.
	ip := l.ClientIP(testRequest("203.0.113.9:5000", "198.51.100.1"))
	if ip != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want peer address", ip)
	}
}

func TestClientIPHonorsTrustedProxy(t *testing.T) {
	l := New(60, 5, nil, []string{"10.0.0.0/8", "192.0.2.7"})
	defer l.Stop()

	ip := l.ClientIP(testRequest("10.1.2.3:5000", "198.51.100.1, 10.1.2.3"))
	if ip != "198.51.100.1" {
		t.Errorf("ClientIP = %q, want forwarded address", ip)
	}

	// Bare-IP proxy entries are widened to /32.
	ip = l.ClientIP(testRequest("192.0.2.7:5000", "198.51.100.2"))
	if ip != "198.51.100.2" {
		t.Errorf("ClientIP = %q, want forwarded address", ip)
	}

	// Garbage in the header falls back to the peer.
	ip = l.ClientIP(testRequest("10.1.2.3:5000", "not-an-ip"))
	if ip != "10.1.2.3" {
		t.Errorf("ClientIP = %q, want peer address", ip)
	}
}

func TestInvalidProxyEntriesIgnored(t *testing.T) {
	l := New(60, 5, nil, []string{"not-a-cidr", "300.300.300.300"})
	defer l.Stop()

	ip := l.ClientIP(testRequest("203.0.113.9:5000", "198.51.100.1"))
	if ip != "203.0.113.9" {
		t.Errorf("ClientIP = %q, invalid proxy entry trusted", ip)
	}
}
