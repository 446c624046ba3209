package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the gin context key holding the authenticated user id
const UserIDKey = "user_id"

var errMissingBearer = errors.New("missing bearer token")

// Identity verifies the HS256 bearer token and stores its subject as the user id.
// The issuer is checked only when configured.
func Identity(secret, issuer string, logger *slog.Logger) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)

	return func(c *gin.Context) {
		userID, err := subjectOf(parser, key, c.GetHeader("Authorization"))
		if err != nil {
			logger.Debug("Rejected request without valid identity", "path", c.Request.URL.Path, "error", err, "correlation_id", GetCorrelationID(c))
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "a valid bearer token is required")
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func subjectOf(parser *jwt.Parser, key []byte, header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingBearer
	}

	var claims jwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// GetUserID returns the authenticated user id, or "" outside the Identity middleware
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
