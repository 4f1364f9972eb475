// Package auth guards the mutating control API routes. The panel has a
// single operator credential: a password exchanged at login for a signed
// session token that names the operator it was issued to.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer = "threadcast"

	defaultTokenSecret = "threadcast-dev-secret"
	defaultPassword    = "threadcast"
	defaultTokenTTL    = 24 * time.Hour
)

type contextKey int

const operatorContextKey contextKey = 0

// Config carries the session token settings for the control API.
type Config struct {
	TokenSecret  string
	PasswordHash string
	TokenTTL     time.Duration
}

// FromEnv reads the auth settings from THREADCAST_TOKEN_SECRET and
// THREADCAST_ADMIN_PASSWORD. Unset variables fall back to development
// defaults that must be overridden in any real deployment; the password is
// hashed at load so only its bcrypt digest stays in memory.
func FromEnv() (Config, error) {
	secret := os.Getenv("THREADCAST_TOKEN_SECRET")
	if secret == "" {
		secret = defaultTokenSecret
	}

	password := os.Getenv("THREADCAST_ADMIN_PASSWORD")
	if password == "" {
		password = defaultPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Config{}, fmt.Errorf("hash operator password: %w", err)
	}

	return Config{
		TokenSecret:  secret,
		PasswordHash: hash,
		TokenTTL:     defaultTokenTTL,
	}, nil
}

// UsingDefaultSecret reports whether the signing secret was never configured.
func (c Config) UsingDefaultSecret() bool {
	return c.TokenSecret == defaultTokenSecret
}

// Claims is the session token payload: which operator the session belongs to.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for the operator, valid for the configured
// TTL.
func (c Config) IssueToken(operator string) (string, error) {
	now := time.Now()
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TokenTTL)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.TokenSecret))
}

// CheckToken verifies a session token and returns the operator it was issued
// to.
func (c Config) CheckToken(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(c.TokenSecret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("token rejected")
	}
	return claims.Operator, nil
}

// HashPassword produces the bcrypt digest stored for the operator password.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(digest), err
}

// CheckPassword reports whether the candidate matches the stored digest.
func CheckPassword(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// Middleware rejects requests without a valid Bearer session token. CORS
// headers go out before the check so a browser can read the 401.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			raw, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			operator, err := cfg.CheckToken(raw)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), operator)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

// WithOperator stamps the operator name onto the context.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorContextKey, operator)
}

// OperatorFromContext extracts the operator a validated request belongs to.
func OperatorFromContext(ctx context.Context) (string, bool) {
	operator, ok := ctx.Value(operatorContextKey).(string)
	return operator, ok
}
