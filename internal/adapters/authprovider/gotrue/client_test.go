package gotrue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// makeJWT arma un token sin firma válida (alcanza: acá no se verifica).
func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()

	enc := func(v any) string {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := enc(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload := enc(claims)
	return header + "." + payload + ".x"
}

func newClientFor(ts *httptest.Server) *Client {
	return NewClient(Config{BaseURL: ts.URL, APIKey: "anon-key", Timeout: time.Second})
}

func TestSignIn_FullUserPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Fatalf("unexpected request %s %s", r.URL.Path, r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer anon-key" {
			t.Fatalf("expected anon key bearer, got %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"expires_in":   3600,
			"user":         map[string]string{"id": "u1", "email": "ana@example.com"},
		})
	}))
	defer ts.Close()

	sess, err := newClientFor(ts).SignIn(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.AccessToken != "tok-123" || sess.UserID != "u1" || sess.Email != "ana@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.ExpiresAt.IsZero() {
		t.Fatal("expires_in must set ExpiresAt")
	}
}

func TestSignIn_MissingUserFallsBackToClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	var token string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": token})
	}))
	defer ts.Close()

	token = makeJWT(t, map[string]any{"sub": "u9", "exp": exp, "email": "x@example.com"})

	sess, err := newClientFor(ts).SignIn(context.Background(), "x@example.com", "secret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	// Identidad y expiry salen de los claims del token.
	if sess.UserID != "u9" || sess.Email != "x@example.com" {
		t.Fatalf("claims fallback failed: %+v", sess)
	}
	if sess.ExpiresAt.Unix() != exp {
		t.Fatalf("exp claim mismatch: %v", sess.ExpiresAt)
	}
}

func TestSignIn_BadCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))
	defer ts.Close()

	if _, err := newClientFor(ts).SignIn(context.Background(), "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
}

func TestSignIn_ValidationBeforeNetwork(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer ts.Close()
	c := newClientFor(ts)

	if _, err := c.SignIn(context.Background(), "", "secret"); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin for empty email, got %v", err)
	}
	if _, err := c.SignIn(context.Background(), "ana@example.com", ""); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin for empty password, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("invalid input must not hit the provider, got %d", hits)
	}
}

func TestSignIn_NotConfigured(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.SignIn(context.Background(), "a@example.com", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSignOut_UsesUserTokenAndTolerates401(t *testing.T) {
	var gotAuth string
	status := http.StatusNoContent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/logout" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(status)
	}))
	defer ts.Close()
	c := newClientFor(ts)

	// 1) Firma con el token del usuario, no con la api key
	if err := c.SignOut(context.Background(), "user-token"); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if gotAuth != "Bearer user-token" {
		t.Fatalf("expected user bearer, got %q", gotAuth)
	}

	// 2) 401 (token ya vencido) cuenta como sign-out concretado
	status = http.StatusUnauthorized
	if err := c.SignOut(context.Background(), "stale-token"); err != nil {
		t.Fatalf("expired-token sign out must succeed, got %v", err)
	}

	// 3) Un 500 sí es error de upstream
	status = http.StatusInternalServerError
	if err := c.SignOut(context.Background(), "user-token"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestCurrentSession_NeverPersists(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:9999", APIKey: "k"})
	_, ok, err := c.CurrentSession(context.Background())
	if ok || err != nil {
		t.Fatalf("expected no persisted session, got ok=%v err=%v", ok, err)
	}
}
