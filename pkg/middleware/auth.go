package middleware

import (
	"context"
	"net/http"
	"strings"

	"medsched/pkg/logger"
	"medsched/pkg/model"

	"github.com/golang-jwt/jwt/v4"
)

const PrincipalKey contextKey = "principal"

// Claims is the token shape issued by the account service: subject carries
// the principal id, roles the enumerated role names.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Authenticate verifies the bearer token and attaches the resulting
// model.Principal to the request context. Token issuance happens in the
// account service; this side only verifies the shared-secret signature.
func Authenticate(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				rejectUnauthenticated(w, log, r, "missing bearer token")
				return
			}

			principal, err := parsePrincipal(token, secret)
			if err != nil {
				rejectUnauthenticated(w, log, r, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the authenticated principal attached by Authenticate.
func PrincipalFrom(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*model.Principal)
	return p, ok
}

func parsePrincipal(token, secret string) (*model.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	roles := make([]model.Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		roles = append(roles, model.Role(strings.ToLower(strings.TrimSpace(r))))
	}
	return model.NewPrincipal(claims.Subject, roles...), nil
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func rejectUnauthenticated(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Unauthenticated request rejected",
		"request_id", requestIDFrom(r.Context()),
		"path", r.URL.Path,
		"method", r.Method,
		"reason", reason,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
}
