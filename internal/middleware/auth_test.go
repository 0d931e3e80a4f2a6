package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifyJWT(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	valid, _ := SignJWT("secret", TokenClaims{Sub: "owner-1", Exp: now.Add(time.Hour).Unix()})
	expired, _ := SignJWT("secret", TokenClaims{Sub: "owner-1", Exp: now.Add(-time.Hour).Unix()})
	noSubject, _ := SignJWT("secret", TokenClaims{Exp: now.Add(time.Hour).Unix()})

	cases := []struct {
		name    string
		secret  string
		token   string
		wantErr error
	}{
		{name: "valid", secret: "secret", token: valid},
		{name: "wrong secret", secret: "other", token: valid, wantErr: ErrBadSignature},
		{name: "expired", secret: "secret", token: expired, wantErr: ErrTokenExpired},
		{name: "malformed", secret: "secret", token: "abc", wantErr: ErrMalformedToken},
		{name: "no subject", secret: "secret", token: noSubject, wantErr: ErrMalformedToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := VerifyJWT(tc.secret, tc.token, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil || claims.Sub != "owner-1" {
				t.Fatalf("claims=%+v err=%v", claims, err)
			}
		})
	}
}

func TestAuthJWTSetsUserID(t *testing.T) {
	token, _ := SignJWT("secret", TokenClaims{Sub: "owner-1", Exp: time.Now().Add(time.Hour).Unix()})
	var seen string
	handler := AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "owner-1" {
		t.Fatalf("code=%d user=%q", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token code = %d", rec.Code)
	}
}

func TestRequireSecret(t *testing.T) {
	handler := RequireSecret("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "header", header: RecoverySecretHeader, value: "s3cret", want: http.StatusAccepted},
		{name: "bearer", header: "Authorization", value: "Bearer s3cret", want: http.StatusAccepted},
		{name: "wrong", header: RecoverySecretHeader, value: "nope", want: http.StatusUnauthorized},
		{name: "prefix", header: RecoverySecretHeader, value: "s3c", want: http.StatusUnauthorized},
		{name: "missing", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/recovery/sweep", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("code = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRequireSecretRejectsWhenUnset(t *testing.T) {
	handler := RequireSecret("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/execute", nil)
	req.Header.Set(RecoverySecretHeader, "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/jobs/job-1", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("preflight code=%d headers=%v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected origin allowed")
	}
}
