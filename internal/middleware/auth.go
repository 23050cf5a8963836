package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Varun5711/shortqr/internal/auth"
	"github.com/Varun5711/shortqr/internal/logger"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Auth verifies bearer tokens issued by the user service.
type Auth struct {
	jwt *auth.JWTManager
	log *logger.Logger
}

func NewAuth(jwt *auth.JWTManager, log *logger.Logger) *Auth {
	return &Auth{jwt: jwt, log: log}
}

// Optional lets anonymous requests through. A present but invalid token is
// still rejected.
func (a *Auth) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		a.serveWithToken(w, r, token, next)
	}
}

func (a *Auth) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		a.serveWithToken(w, r, token, next)
	}
}

func (a *Auth) serveWithToken(w http.ResponseWriter, r *http.Request, token string, next http.HandlerFunc) {
	claims, err := a.jwt.ValidateToken(token)
	if err != nil {
		a.log.Debug("Rejected token: %v", err)
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	ctx := WithUserID(r.Context(), claims.Subject())
	next.ServeHTTP(w, r.WithContext(ctx))
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		header = strings.TrimSpace(header[7:])
	}
	return header, header != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
