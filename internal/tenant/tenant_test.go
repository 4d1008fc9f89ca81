package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveHeaderWins(t *testing.T) {
	r := NewResolver("", "lotwise.app", "")
	req := httptest.NewRequest("GET", "http://acme.lotwise.app/sessions", nil)
	req.Header.Set("X-Tenant-ID", "beta")
	if got := r.Resolve(req); got != "beta" {
		t.Fatalf("expected header tenant, got %q", got)
	}
}

func TestResolveSubdomain(t *testing.T) {
	r := NewResolver("", "lotwise.app", "")
	req := httptest.NewRequest("GET", "http://acme.lotwise.app:8080/sessions", nil)
	req.Host = "acme.lotwise.app:8080"
	if got := r.Resolve(req); got != "acme" {
		t.Fatalf("expected subdomain tenant, got %q", got)
	}
}

func TestResolveRootDomainHasNoTenant(t *testing.T) {
	r := NewResolver("", "lotwise.app", "")
	req := httptest.NewRequest("GET", "http://lotwise.app/sessions", nil)
	req.Host = "lotwise.app"
	if got := r.Resolve(req); got != "" {
		t.Fatalf("expected empty tenant, got %q", got)
	}
}

func TestResolveIgnoresHostWithoutRootDomain(t *testing.T) {
	r := NewResolver("", "", "")
	req := httptest.NewRequest("GET", "http://acme.evil.example/sessions", nil)
	req.Host = "acme.evil.example"
	if got := r.Resolve(req); got != "" {
		t.Fatalf("expected no tenant from host without root domain, got %q", got)
	}
}

func TestMiddlewareAppliesDefault(t *testing.T) {
	r := NewResolver("", "", "main")
	req := httptest.NewRequest("GET", "http://localhost/sessions", nil)
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen, _ = From(req.Context())
	})
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
	if seen != "main" {
		t.Fatalf("expected default tenant, got %q", seen)
	}
}
