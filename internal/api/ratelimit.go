package api

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// ipLimiter rate-limits run submissions per remote address. Solves are
// expensive; a single client must not be able to queue unbounded work.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	return &ipLimiter{visitors: map[string]*rate.Limiter{}, rps: rate.Limit(rps), burst: burst}
}

// RATE_RPS and RATE_BURST override the defaults of 1 submission per second
// with a burst of 5.
func newIPLimiterFromEnv() *ipLimiter {
	rps := 1.0
	burst := 5
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return newIPLimiter(rps, burst)
}

func (l *ipLimiter) allow(r *http.Request) bool {
	if l == nil {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	l.mu.Lock()
	lim := l.visitors[host]
	if lim == nil {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.visitors[host] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
