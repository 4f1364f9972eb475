package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig(t *testing.T, password string) Config {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	return Config{
		TokenSecret:  "test-secret",
		PasswordHash: hash,
		TokenTTL:     time.Hour,
	}
}

func TestIssueAndCheckToken(t *testing.T) {
	cfg := testConfig(t, "hunter2")

	token, err := cfg.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	operator, err := cfg.CheckToken(token)
	if err != nil {
		t.Fatalf("CheckToken returned error: %v", err)
	}
	if operator != "admin" {
		t.Fatalf("operator = %q, want admin", operator)
	}
}

func TestCheckTokenRejectsWrongSecret(t *testing.T) {
	cfg := testConfig(t, "hunter2")
	token, err := cfg.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	other := cfg
	other.TokenSecret = "different-secret"
	if _, err := other.CheckToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestCheckTokenRejectsExpired(t *testing.T) {
	cfg := testConfig(t, "hunter2")
	cfg.TokenTTL = -time.Minute

	token, err := cfg.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}
	if _, err := cfg.CheckToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestMiddlewareRequiresToken(t *testing.T) {
	cfg := testConfig(t, "hunter2")
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestMiddlewarePassesOperatorThrough(t *testing.T) {
	cfg := testConfig(t, "hunter2")
	token, err := cfg.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	var seen string
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d", rec.Code)
	}
	if seen != "admin" {
		t.Fatalf("operator in context = %q, want admin", seen)
	}
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	cfg := testConfig(t, "hunter2")
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"Basic abc", "Bearer", "Bearer  "} {
		req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}
