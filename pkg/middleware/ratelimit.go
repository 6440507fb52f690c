package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// client tracks a token-bucket limiter per remote IP.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientStore holds per-IP limiters and evicts entries not seen within ttl.
type clientStore struct {
	mu      sync.Mutex
	clients map[string]*client
	rps     int
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

func newClientStore(rps, burst int, ttl time.Duration) *clientStore {
	s := &clientStore{
		clients: make(map[string]*client),
		rps:     rps,
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
	go s.evictLoop()
	return s
}

func (s *clientStore) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[ip]
	if !ok {
		l := rate.NewLimiter(rate.Limit(s.rps), s.burst)
		s.clients[ip] = &client{limiter: l, lastSeen: s.now()}
		return l
	}
	c.lastSeen = s.now()
	return c.limiter
}

func (s *clientStore) evictLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for range ticker.C {
		s.evict()
	}
}

func (s *clientStore) evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	for ip, c := range s.clients {
		if c.lastSeen.Before(cutoff) {
			delete(s.clients, ip)
		}
	}
}

// RateLimit enforces a per-IP request rate with the given requests-per-second
// and burst. Stale client entries are evicted after three minutes.
func RateLimit(rps, burst int) func(http.Handler) http.Handler {
	store := newClientStore(rps, burst, 3*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !store.limiterFor(ip).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
