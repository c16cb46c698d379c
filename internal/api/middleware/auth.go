package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/clubledger/internal/api/problem"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	traceContextKey     contextKey = "trace_id"
)

// Principal is the authenticated caller. Members act for themselves, admins
// for any member or organisation.
type Principal struct {
	MemberID uuid.UUID
	Role     string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanActFor reports whether the caller may read or move money for memberID.
func (p Principal) CanActFor(memberID uuid.UUID) bool {
	return p.IsAdmin() || p.MemberID == memberID
}

var errNoSecret = errors.New("jwt secret not configured")

type tokenConfig struct {
	mu       sync.RWMutex
	secret   []byte
	issuer   string
	audience string
}

var tokens tokenConfig

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	tokens.mu.Lock()
	tokens.secret = []byte(secret)
	tokens.mu.Unlock()
}

func SetJWTValidation(issuer, audience string) {
	tokens.mu.Lock()
	tokens.issuer = strings.TrimSpace(issuer)
	tokens.audience = strings.TrimSpace(audience)
	tokens.mu.Unlock()
}

func (c *tokenConfig) snapshot() ([]byte, string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secret, c.issuer, c.audience
}

type authClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken mints an HS256 token for p that AuthMiddleware accepts.
func IssueToken(p Principal, ttl time.Duration) (string, error) {
	secret, issuer, audience := tokens.snapshot()
	if len(secret) == 0 {
		return "", errNoSecret
	}
	now := time.Now()
	claims := authClaims{
		UserID: p.MemberID.String(),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.MemberID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parsePrincipal(tokenString string) (Principal, string, error) {
	secret, issuer, audience := tokens.snapshot()
	if len(secret) == 0 {
		return Principal{}, "auth/misconfigured", errNoSecret
	}

	claims := &authClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, "auth/invalid-token", errors.New("invalid token")
	}

	if claims.Subject != "" && claims.Subject != claims.UserID {
		return Principal{}, "auth/invalid-token-claims", errors.New("subject does not match user_id")
	}
	memberID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, "auth/invalid-token-claims", errors.New("user_id is not a member id")
	}
	switch claims.Role {
	case RoleMember, RoleAdmin:
	default:
		return Principal{}, "auth/invalid-token-claims", fmt.Errorf("unknown role %q", claims.Role)
	}
	return Principal{MemberID: memberID, Role: claims.Role}, "", nil
}

// AuthMiddleware validates the bearer token and stores the Principal in the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), "", "Authorization header required")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), "", "Invalid token format")
			return
		}

		p, slug, err := parsePrincipal(tokenString)
		if errors.Is(err, errNoSecret) {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type(slug), "", "auth is not configured")
			return
		}
		if err != nil {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type(slug), "", "Invalid token")
			return
		}
		recordPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireRole rejects callers whose role differs from requiredRole.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || p.Role != requiredRole {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), "", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the caller set by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// UserIDFromContext returns the authenticated member id, or "" outside AuthMiddleware.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.MemberID.String()
	}
	return ""
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
