package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medsched/pkg/logger"
	"medsched/pkg/model"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
}

func signToken(t *testing.T, subject string, roles []string, secret string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestAuthenticate(t *testing.T) {
	var captured *model.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Authenticate(testSecret, testLogger())(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + signToken(t, "pat-1", []string{"patient"}, testSecret), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc123", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "pat-1", []string{"patient"}, "other-secret"), http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/timetables/doctor/doc-1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusOK && captured == nil {
				t.Fatal("expected principal in request context")
			}
		})
	}
}

func TestAuthenticate_RolesMapped(t *testing.T) {
	var captured *model.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = PrincipalFrom(r.Context())
	})
	handler := Authenticate(testSecret, testLogger())(next)

	token := signToken(t, "admin-1", []string{"Admin", " doctor "}, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured == nil {
		t.Fatal("expected principal in request context")
	}
	if captured.ID != "admin-1" {
		t.Errorf("expected subject as principal ID, got %q", captured.ID)
	}
	if !captured.HasRole(model.RoleAdmin) || !captured.HasRole(model.RoleDoctor) {
		t.Errorf("role names should be trimmed and lowercased, got %v", captured.Roles)
	}
	if !captured.CanSchedule() {
		t.Error("admin principal should be able to schedule")
	}

	expired := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "pat-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Roles: []string{"patient"},
	}
	expiredToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expiredToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected expired token to be rejected, got %d", rec.Code)
	}
}
