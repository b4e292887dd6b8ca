package server

import (
	"container/list"
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// Restored state may point images anywhere; connect-src covers the reload socket.
			h.Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self'; "+
					"style-src 'self' 'unsafe-inline'; "+
					"img-src 'self' data: https:; "+
					"connect-src 'self'; "+
					"frame-ancestors 'none'")

			next.ServeHTTP(w, r)
		})
	}
}

const (
	// idleClientTTL is how long a client's bucket survives without requests.
	idleClientTTL = 10 * time.Minute
	// sweepInterval is how often idle buckets are dropped.
	sweepInterval = 5 * time.Minute
	// evictionLogInterval is the minimum time between eviction log messages.
	evictionLogInterval = 30 * time.Second
)

type clientBucket struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client IP, bounded by an LRU.
type clientLimiter struct {
	rps     rate.Limit
	burst   int
	maxIPs  int
	mu      sync.Mutex
	buckets map[string]*list.Element
	order   *list.List // front = most recent

	lastEvictLog time.Time
	evicted      int
}

func newClientLimiter(rps rate.Limit, burst, maxIPs int) *clientLimiter {
	if maxIPs <= 0 {
		maxIPs = 10000
	}
	return &clientLimiter{
		rps:     rps,
		burst:   burst,
		maxIPs:  maxIPs,
		buckets: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Allow reports whether the client at ip may make a request now.
func (l *clientLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if elem, ok := l.buckets[ip]; ok {
		l.order.MoveToFront(elem)
		b := elem.Value.(*clientBucket)
		b.lastSeen = now
		return b.limiter.Allow()
	}

	if l.order.Len() >= l.maxIPs {
		l.evictOldest(now)
	}
	b := &clientBucket{ip: ip, limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.buckets[ip] = l.order.PushFront(b)
	return b.limiter.Allow()
}

// evictOldest drops the least recently used bucket. Callers hold mu.
func (l *clientLimiter) evictOldest(now time.Time) {
	back := l.order.Back()
	if back == nil {
		return
	}
	l.order.Remove(back)
	delete(l.buckets, back.Value.(*clientBucket).ip)

	l.evicted++
	if now.Sub(l.lastEvictLog) >= evictionLogInterval {
		log.Printf("[RateLimit] Evicted %d least-recent client(s) (at capacity: %d)", l.evicted, l.maxIPs)
		l.lastEvictLog = now
		l.evicted = 0
	}
}

// Len returns the number of tracked clients.
func (l *clientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// dropIdle removes buckets not seen since before cutoff.
func (l *clientLimiter) dropIdle(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// LRU order tracks recency, so everything behind the first fresh entry is stale
	for e := l.order.Back(); e != nil; {
		b := e.Value.(*clientBucket)
		if !b.lastSeen.Before(cutoff) {
			return
		}
		prev := e.Prev()
		l.order.Remove(e)
		delete(l.buckets, b.ip)
		e = prev
	}
}

// sweep drops idle buckets periodically until ctx is cancelled. The
// returned channel is closed when the goroutine exits.
func (l *clientLimiter) sweep(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				l.dropIdle(now.Add(-idleClientTTL))
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}

// RateLimit wraps next so each client IP is held to the limiter's rate.
func (l *clientLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request.
// Forwarding headers are only trusted when the peer is a loopback or private
// address, i.e. a reverse proxy.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer := net.ParseIP(host)
	if peer != nil && (peer.IsLoopback() || peer.IsPrivate()) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if peer != nil {
		return peer.String()
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
