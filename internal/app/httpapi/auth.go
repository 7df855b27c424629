package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

type contextKey string

const callerContextKey contextKey = "caller"

// caller returns the authenticated caller identity, empty when auth is
// disabled and no identity was presented.
func caller(r *http.Request) string {
	if v, ok := r.Context().Value(callerContextKey).(string); ok {
		return v
	}
	return ""
}

// wrapWithAuth authenticates requests with an HS256 bearer token whose
// subject claim names the caller. Health and metrics stay open. With an empty
// secret auth is disabled and the caller comes from the X-Caller header,
// which is only acceptable for local development.
func wrapWithAuth(next http.Handler, secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		if secret == "" {
			ctx := context.WithValue(r.Context(), callerContextKey, r.Header.Get("X-Caller"))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing bearer token"))
			return
		}

		subject, err := verifyToken(token, secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid token: %w", err))
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[len("Bearer "):]
	}
	return r.URL.Query().Get("token")
}

func verifyToken(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token invalid")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// wrapWithRateLimit applies a process-wide request budget. Zero disables it.
func wrapWithRateLimit(next http.Handler, perSecond float64, burst int) http.Handler {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = int(perSecond)
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
