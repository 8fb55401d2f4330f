package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenParam is the query parameter carrying the access token on websocket
// requests, where browsers cannot set headers.
const TokenParam = "access_token"

// Claims is the payload of console access tokens.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.StandardClaims
}

// Identity is the signed-in admin of a request.
type Identity struct {
	UserID    int64
	Role      string
	SessionID string
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// IssueToken signs an access token for id.
func IssueToken(secret []byte, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    id.UserID,
		Role:      id.Role,
		SessionID: id.SessionID,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an access token.
func ParseToken(secret []byte, raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid || claims.UserID == 0 || claims.Role == "" {
		return Identity{}, fmt.Errorf("invalid token claims")
	}
	return Identity{UserID: claims.UserID, Role: claims.Role, SessionID: claims.SessionID}, nil
}

// JWTMiddleware rejects requests without a valid bearer token and stores the
// identity in the request context.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimPrefix(h, "Bearer ")
			} else if v := r.URL.Query().Get(TokenParam); v != "" {
				raw = v
			}
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "authorization header missing or invalid")
				return
			}
			id, err := ParseToken(secret, raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// IdentifyAdmin resolves the admin user ID of a request for the
// notification hub.
func IdentifyAdmin(r *http.Request) (int64, bool) {
	id, ok := IdentityFrom(r.Context())
	return id.UserID, ok
}
