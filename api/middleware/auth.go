package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "user_id"

// Claims are the access token claims issued by the account service. The user
// id travels in "user_id" or, failing that, in the subject.
type Claims struct {
	UserID int64 `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) userID() (int64, error) {
	if c.UserID > 0 {
		return c.UserID, nil
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("token carries no user id")
	}
	return id, nil
}

// JWT validates HS256 bearer tokens and stores the user id in the context.
func JWT(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || raw == "" {
			abort(c, "missing or invalid authorization header")
			return
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			abort(c, "invalid or expired token")
			return
		}
		userID, err := claims.userID()
		if err != nil {
			abort(c, err.Error())
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// UserID returns the id stored by JWT.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"code":    "UNAUTHORIZED",
		"error":   msg,
	})
}
