package auth_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stellar/go/keypair"

	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/clock"
	"github.com/xraph/orbit/types"
)

func TestContextAuthorizer(t *testing.T) {
	const (
		alice  = types.Address("alice")
		bob    = types.Address("bob")
		keeper = types.Address("keeper")
	)
	a := auth.NewContextAuthorizer(auth.WithDelegate(keeper))

	tests := []struct {
		name     string
		ctx      context.Context
		identity types.Address
		wantErr  bool
	}{
		{"no caller", context.Background(), alice, true},
		{"caller matches", auth.WithCaller(context.Background(), alice), alice, false},
		{"caller mismatch", auth.WithCaller(context.Background(), bob), alice, true},
		{"delegate", auth.WithCaller(context.Background(), keeper), alice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Require(tt.ctx, tt.identity)
			if tt.wantErr && !errors.Is(err, auth.ErrNotAuthorized) {
				t.Fatalf("err = %v, want ErrNotAuthorized", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSignatureMiddleware(t *testing.T) {
	kp, err := keypair.Random()
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(1_700_000_000, 0)
	v := auth.NewSignatureVerifier(auth.WithVerifierClock(clock.Fake(now)))

	var seen types.Address
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.CallerFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	body := []byte(`{"amount":"10"}`)

	t.Run("valid signature", func(t *testing.T) {
		seen = ""
		req := httptest.NewRequest(http.MethodPost, "/streams", bytes.NewReader(body))
		if err := auth.Sign(req, kp, body, now); err != nil {
			t.Fatal(err)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if seen != types.Address(kp.Address()) {
			t.Fatalf("caller = %q, want %q", seen, kp.Address())
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/streams", bytes.NewReader([]byte(`{"amount":"99"}`)))
		if err := auth.Sign(req, kp, body, now); err != nil {
			t.Fatal(err)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/streams", bytes.NewReader(body))
		if err := auth.Sign(req, kp, body, now.Add(-time.Hour)); err != nil {
			t.Fatal(err)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("anonymous passes through", func(t *testing.T) {
		seen = "unset"
		req := httptest.NewRequest(http.MethodGet, "/streams/1", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent || seen != "" {
			t.Fatalf("status = %d caller = %q", rec.Code, seen)
		}
	})
}
