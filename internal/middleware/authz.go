package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"task-management-api/internal/apierr"
	"task-management-api/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const subjectKey = "subject"

type AuthConfig struct {
	Secret string
	Issuer string
}

var errMissingToken = errors.New("missing bearer token")

// Auth requires an HMAC signed JWT issued by cfg.Issuer. The token subject is
// exposed to handlers through GetSubject.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.Secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		claims, err := parseBearer(c.GetHeader("Authorization"), parser, secret)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("rejected request", "reason", err)
			apierr.Abort(c, http.StatusUnauthorized, nil)
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

func parseBearer(header string, parser *jwt.Parser, secret []byte) (*jwt.RegisteredClaims, error) {
	if header == "" {
		return nil, errMissingToken
	}
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenStr) == "" {
		return nil, errMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// GetSubject returns the authenticated subject, or "" when auth is off.
func GetSubject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

// IssueToken signs an HS256 token that Auth accepts until ttl elapses.
func IssueToken(cfg AuthConfig, subject string, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
