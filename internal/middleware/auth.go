package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/services"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey int

const (
	userKey contextKey = iota
	claimsKey
	tokenKey
)

type TokenParser interface {
	Parse(token string) (*services.Claims, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Auth authenticates bearer tokens and loads the calling user.
type Auth struct {
	tokens TokenParser
	redis  *redis.Client
	users  UserFinder
	logger *zap.Logger
}

func NewAuth(tokens TokenParser, redisClient *redis.Client, users UserFinder, logger *zap.Logger) *Auth {
	return &Auth{
		tokens: tokens,
		redis:  redisClient,
		users:  users,
		logger: logger.Named("auth"),
	}
}

func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Access denied. No token provided.", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}
		token := strings.TrimSpace(parts[1])

		revoked, err := services.IsBlacklisted(r.Context(), a.redis, token)
		if err != nil {
			a.logger.Error("blacklist lookup failed", zap.Error(err))
			services.SendErrorResponse(w, "Server error", http.StatusInternalServerError, nil)
			return
		}
		if revoked {
			services.SendErrorResponse(w, "Token has been revoked", http.StatusUnauthorized, nil)
			return
		}

		claims, err := a.tokens.Parse(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				services.SendErrorResponse(w, "Token expired", http.StatusUnauthorized, nil)
				return
			}
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		user, err := a.users.FindByID(r.Context(), claims.UserID)
		if errors.Is(err, services.ErrUserNotFound) {
			services.SendErrorResponse(w, "User not found", http.StatusUnauthorized, nil)
			return
		}
		if err != nil {
			a.logger.Error("load user for token", zap.String("user_id", claims.UserID), zap.Error(err))
			services.SendErrorResponse(w, "Server error", http.StatusInternalServerError, nil)
			return
		}
		if !user.IsActive {
			services.SendErrorResponse(w, "Account is deactivated", http.StatusUnauthorized, nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
			return
		}
		if !user.IsAdmin() {
			services.SendErrorResponse(w, "Admin access required", http.StatusForbidden, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
			return
		}
		if !user.IsVerified {
			services.SendErrorResponse(w, "Phone number verification required", http.StatusForbidden, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

func ClaimsFromContext(ctx context.Context) (*services.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*services.Claims)
	return claims, ok
}

// TokenFromContext returns the raw bearer token of the request.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
