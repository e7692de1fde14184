package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// HostRate overrides the request rate for one host
type HostRate struct {
	Host              string
	RequestsPerSecond float64
	Burst             int
}

// Limiter gives every evidence host its own token bucket, shared by all
// concurrent checks. Hosts without an override get the default rate.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	overrides map[string]HostRate
	every     rate.Limit
	burst     int
}

// NewLimiter creates a limiter. A non-positive rate disables limiting for
// hosts without an override.
func NewLimiter(requestsPerSecond float64, burst int, overrides ...HostRate) *Limiter {
	if burst <= 0 {
		burst = defaultBurst
	}
	every := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		every = rate.Inf
	}

	l := &Limiter{
		buckets:   make(map[string]*rate.Limiter),
		overrides: make(map[string]HostRate, len(overrides)),
		every:     every,
		burst:     burst,
	}
	for _, o := range overrides {
		host := strings.ToLower(strings.TrimSpace(o.Host))
		if host == "" || o.RequestsPerSecond <= 0 {
			continue
		}
		l.overrides[host] = o
	}
	return l
}

// Wait blocks until the host of rawURL has a free token or ctx is done.
// A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil {
		return nil
	}
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.bucket(host).Wait(ctx)
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[host]; ok {
		return b
	}

	b := rate.NewLimiter(l.every, l.burst)
	if o, ok := l.overrides[host]; ok {
		burst := o.Burst
		if burst <= 0 {
			burst = 1
		}
		b = rate.NewLimiter(rate.Limit(o.RequestsPerSecond), burst)
	}
	l.buckets[host] = b
	return b
}

// hostOf returns the lower-cased hostname of rawURL, without port
func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.ToLower(parsed.Hostname()), nil
}
