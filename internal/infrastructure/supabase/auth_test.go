package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

func TestSignUpAnonymousReturnsIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/v1/signup" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"expires_at":1900000000,"user":{"id":"u-1","is_anonymous":true}}`))
	}))
	defer server.Close()

	identity, err := NewAuth(server.URL, "anon", AuthOptions{}).SignUpAnonymous(context.Background())
	if err != nil {
		t.Fatalf("SignUpAnonymous() error = %v", err)
	}
	if identity.UserID != "u-1" || identity.RefreshToken != "rt" || !identity.Anonymous {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if identity.ExpiresAt.Unix() != 1900000000 {
		t.Fatalf("unexpected expiry %v", identity.ExpiresAt)
	}
}

func TestRefreshUsesRefreshGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "refresh_token" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "rt" {
			t.Errorf("unexpected refresh body %v", body)
		}
		_, _ = w.Write([]byte(`{"access_token":"at2","refresh_token":"rt2","expires_in":60,"user":{"id":"u-1","is_anonymous":true}}`))
	}))
	defer server.Close()

	identity, err := NewAuth(server.URL, "anon", AuthOptions{}).Refresh(context.Background(), "rt")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if identity.AccessToken != "at2" || identity.ExpiresAt.IsZero() {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestSignUpSurfacesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"msg":"Anonymous sign-ins are disabled"}`))
	}))
	defer server.Close()

	_, err := NewAuth(server.URL, "anon", AuthOptions{}).SignUpAnonymous(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := domain.DisplayMessage(err); got != "Anonymous sign-ins are disabled" {
		t.Fatalf("unexpected display message %q", got)
	}
}
