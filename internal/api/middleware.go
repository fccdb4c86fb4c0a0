package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	jwtSecretKey = "jwtSecret"
	userIDKey    = "userId"
)

// JWTSecret makes the signing secret available to AuthMiddleware
func JWTSecret(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(jwtSecretKey, secret)
		c.Next()
	}
}

// AuthMiddleware returns a Gin middleware for authentication. Tokens are
// issued by the upstream auth service; the subject claim is the user ID.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the JWT token from the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token format")
			return
		}

		// Parse the JWT token
		jwtSecret := c.MustGet(jwtSecretKey).([]byte)
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		userID, err := claims.GetSubject()
		if err != nil || userID == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user ID in token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
