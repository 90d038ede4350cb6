package lim

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pastrio/svc/db"
	"pastrio/svc/util"
)

const (
	cleanupInterval = 5 * time.Minute
	limiterTTL      = 30 * time.Minute
	redisWindow     = time.Minute
)

// Limiter throttles per client IP. With Redis attached the count is shared
// across replicas through an atomic Lua increment; without it each process
// keeps local token buckets.
type Limiter struct {
	rdb            *db.Redis
	trustedProxies []*net.IPNet
	localLimiters  map[string]*limiterEntry
	mu             sync.Mutex
	rpm            int
	burst          int
	quit           chan struct{}
	stopOnce       sync.Once
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

func New(rpm, burst int, rdb *db.Redis, trustedProxies []string) *Limiter {
	nets := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		if !strings.Contains(proxy, "/") {
			if ip := net.ParseIP(proxy); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				proxy = ip.String() + "/" + itoa(bits)
			}
		}
		if _, n, err := net.ParseCIDR(proxy); err == nil {
			nets = append(nets, n)
		} else {
			util.Warn().Str("proxy", proxy).Msg("ignoring invalid trusted proxy")
		}
	}
	l := &Limiter{
		rdb:            rdb,
		trustedProxies: nets,
		localLimiters:  make(map[string]*limiterEntry),
		rpm:            rpm,
		burst:          burst,
		quit:           make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func itoa(n int) string {
	if n == 32 {
		return "32"
	}
	return "128"
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictExpired()
		case <-l.quit:
			return
		}
	}
}

func (l *Limiter) evictExpired() {
	now := time.Now()
	l.mu.Lock()
	for key, entry := range l.localLimiters {
		if now.Sub(entry.lastAccess) > limiterTTL {
			delete(l.localLimiters, key)
		}
	}
	remaining := len(l.localLimiters)
	l.mu.Unlock()
	util.Debug().Int("remaining", remaining).Msg("rate limiter cleanup")
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

// Check records a hit for the request's client IP against the named endpoint
// bucket and reports whether it is admitted.
func (l *Limiter) Check(r *http.Request, endpoint string) Result {
	ip := l.ClientIP(r)
	key := endpoint + ":" + ip
	if l.rdb != nil {
		usage, err := l.rdb.RateLimit(r.Context(), "rl:"+key, l.rpm, redisWindow)
		if err == nil {
			remaining := l.rpm - usage
			if remaining < 0 {
				remaining = 0
			}
			return Result{
				Allowed:   usage <= l.rpm,
				Limit:     l.rpm,
				Remaining: remaining,
				Reset:     time.Now().Add(redisWindow),
			}
		}
		util.Warn().Err(err).Msg("redis rate limit failed, falling back to local")
	}
	l.mu.Lock()
	entry, ok := l.localLimiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.rpm)/60.0), l.burst),
		}
		l.localLimiters[key] = entry
	}
	entry.lastAccess = time.Now()
	l.mu.Unlock()
	allowed := entry.limiter.Allow()
	return Result{
		Allowed:   allowed,
		Limit:     l.rpm,
		Remaining: int(entry.limiter.Tokens()),
		Reset:     time.Now().Add(time.Minute),
	}
}

// ClientIP resolves the real client address, honoring X-Forwarded-For only
// when the peer is a trusted proxy.
func (l *Limiter) ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil || !l.isTrusted(peer) {
		return host
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return host
	}
	parts := strings.Split(xff, ",")
	candidate := strings.TrimSpace(parts[0])
	if net.ParseIP(candidate) != nil {
		return candidate
	}
	return host
}

func (l *Limiter) isTrusted(ip net.IP) bool {
	for _, n := range l.trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
