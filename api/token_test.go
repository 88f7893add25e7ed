package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTokenServer(t *testing.T, calls *atomic.Int32, token string, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing token form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %s, want client_credentials", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	}))
}

func TestTokenSourceGetCached(t *testing.T) {
	var calls atomic.Int32
	server := newTokenServer(t, &calls, "test-token-123", 3600)
	defer server.Close()

	ts := &TokenSource{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TokenURL:     server.URL,
	}
	ctx := context.Background()

	token1, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token1 != "test-token-123" {
		t.Errorf("Get() = %s, want test-token-123", token1)
	}

	token2, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token2 != token1 {
		t.Errorf("cached token = %s, want %s", token2, token1)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 exchange (cached), got %d", n)
	}
}

func TestTokenSourceRefreshAfterInvalidate(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		token := "token-1"
		if n > 1 {
			token = "token-2"
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 3600})
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: server.URL}
	ctx := context.Background()

	token1, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token1 != "token-1" {
		t.Errorf("Get() = %s, want token-1", token1)
	}

	ts.Invalidate()

	token2, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token2 != "token-2" {
		t.Errorf("Get() after Invalidate = %s, want token-2", token2)
	}
}

func TestTokenSourceExpiryBuffer(t *testing.T) {
	var calls atomic.Int32
	// Declared expiry below the refresh buffer, so every Get re-exchanges.
	server := newTokenServer(t, &calls, "short-lived", 30)
	defer server.Close()

	ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: server.URL}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := ts.Get(ctx); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 exchanges for sub-buffer expiry, got %d", n)
	}
}

func TestTokenSourceMissingCredentials(t *testing.T) {
	ts := &TokenSource{}
	_, err := ts.Get(context.Background())
	if err == nil {
		t.Fatal("Get() with missing credentials should error")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("Get() error = %T, want *AuthError", err)
	}
}

func TestTokenSourceRejectedExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "bad", ClientSecret: "bad", TokenURL: server.URL}
	_, err := ts.Get(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("Get() error = %v, want *AuthError", err)
	}
}

func TestTokenSourceEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "", "expires_in": 3600})
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: server.URL}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("Get() with empty access_token should error")
	}
}

func TestTokenSourceSingleFlight(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "shared", "expires_in": 3600})
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: server.URL}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Get(context.Background())
			if err != nil {
				t.Errorf("concurrent Get() error = %v", err)
				return
			}
			if tok != "shared" {
				t.Errorf("concurrent Get() = %s, want shared", tok)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 exchange for concurrent callers, got %d", n)
	}
}
