package util

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proxyFor(t *testing.T, fn func(*http.Request) (*url.URL, error), target string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	u, err := fn(req)
	require.NoError(t, err)
	if u == nil {
		return ""
	}
	return u.String()
}

func clearProxyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "no_proxy", "REQUEST_METHOD"} {
		t.Setenv(name, "")
	}
}

func TestNewProxyFunc(t *testing.T) {
	clearProxyEnv(t)

	tests := []struct {
		name       string
		httpProxy  string
		httpsProxy string
		noProxy    string
		target     string
		want       string
	}{
		{"http uses http proxy", "http://proxy:3128", "", "", "http://api.example.org/x", "http://proxy:3128"},
		{"https falls back to http proxy", "http://proxy:3128", "", "", "https://api.example.org/x", "http://proxy:3128"},
		{"https uses https proxy", "http://proxy:3128", "http://secure:3129", "", "https://api.example.org/x", "http://secure:3129"},
		{"no_proxy bypasses", "http://proxy:3128", "", "example.org", "https://api.example.org/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := NewProxyFunc(tt.httpProxy, tt.httpsProxy, tt.noProxy)
			assert.Equal(t, tt.want, proxyFor(t, fn, tt.target))
		})
	}
}

func TestNewProxyFunc_EnvironmentNoProxy(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("NO_PROXY", "newsapi.org")

	fn := NewProxyFunc("http://proxy:3128", "", "")
	assert.Empty(t, proxyFor(t, fn, "https://newsapi.org/v2/everything"))
	assert.Equal(t, "http://proxy:3128", proxyFor(t, fn, "https://en.wikipedia.org/w/api.php"))
}
