package worker

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10, -1, HostRate{Host: " NewsAPI.org ", RequestsPerSecond: 1}, HostRate{Host: "ignored.example", RequestsPerSecond: 0})

	if l.burst != defaultBurst {
		t.Errorf("expected default burst %d, got %d", defaultBurst, l.burst)
	}
	if _, ok := l.overrides["newsapi.org"]; !ok {
		t.Error("expected override keyed by lower-cased host")
	}
	if _, ok := l.overrides["ignored.example"]; ok {
		t.Error("expected zero-rate override to be dropped")
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	for _, u := range []string{"https://en.wikipedia.org/w/api.php", "https://api.duckduckgo.com/"} {
		if err := limiter.Wait(ctx, u); err != nil {
			t.Errorf("wait %s failed: %v", u, err)
		}
	}
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Wait(context.Background(), "://bad"); err != nil {
		t.Errorf("expected nil limiter to pass, got %v", err)
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 20; i++ {
		if err := limiter.Wait(ctx, "https://api.duckduckgo.com/"); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	url := "https://en.wikipedia.org/w/api.php"

	if err := limiter.Wait(context.Background(), url); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected error when the token cannot arrive before the deadline")
	}
}

func TestLimiter_HostOverride(t *testing.T) {
	limiter := NewLimiter(1000, 10, HostRate{Host: "newsapi.org", RequestsPerSecond: 0.01, Burst: 1})

	if err := limiter.Wait(context.Background(), "https://newsapi.org/v2/everything?q=a"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "https://NEWSAPI.org:443/v2/everything?q=b"); err == nil {
		t.Error("expected the overridden host to be throttled")
	}
	if err := limiter.Wait(ctx, "https://en.wikipedia.org/w/api.php"); err != nil {
		t.Errorf("expected other hosts to use the default rate, got %v", err)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"https://en.wikipedia.org/w/api.php?action=query", "en.wikipedia.org", false},
		{"http://localhost:8080/api", "localhost", false},
		{"https://API.DuckDuckGo.com/", "api.duckduckgo.com", false},
		{"not-a-url", "", true},
		{"://bad", "", true},
	}

	for _, tt := range tests {
		got, err := hostOf(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("hostOf(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
