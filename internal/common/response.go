package common

import "github.com/gin-gonic/gin"

// OK writes data as the response body. The debate API returns bare JSON
// objects, not an envelope.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Fail writes {"detail": msg}, the error shape clients read messages from.
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

// Abort is Fail for middleware.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
