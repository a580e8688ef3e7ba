package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-debate/internal/auth"
	"github.com/suPer8Hu/ai-debate/internal/common"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
)

// AuthRequired accepts "Authorization: Bearer <jwt>" and answers 401 with
// {"detail": ...} otherwise.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			common.Abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := auth.ParseJWT(strings.TrimSpace(token), secret)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			common.Abort(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Next()
	}
}

func UserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
