/**
 * @description
 * Custom middleware for the HTTP router: bearer-token authentication and request
 * correlation for logs.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: HS256 token validation.
 * - github.com/go-chi/chi/v5/middleware: request id propagation.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dummybank/payment-service/internal/platform/logger"
)

// UserIDContextKey is a custom type for the context key to avoid collisions.
type UserIDContextKey string

const userIDKey UserIDContextKey = "userID"

// JWTAuthMiddleware validates HS256 bearer tokens signed with secret and puts the
// numeric user id from the 'sub' claim on the request context.
func JWTAuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// Extract the token from "Bearer <token>"
			tokenString, found := cutPrefixFold(authHeader, "Bearer ")
			if !found || strings.TrimSpace(tokenString) == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, ok := subjectUserID(claims["sub"])
			if !ok {
				writeError(w, http.StatusUnauthorized, "User ID not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = logger.With(ctx, "user_id", userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subjectUserID accepts 'sub' as a JSON number or a numeric string.
func subjectUserID(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 || v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// GetUserID retrieves the authenticated user id from the request context.
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

// RequestLogContext copies chi's request id into the logging context so every
// record of a request can be correlated.
func RequestLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logger.With(r.Context(), "request_id", id))
		}
		next.ServeHTTP(w, r)
	})
}
