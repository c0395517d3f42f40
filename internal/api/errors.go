package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/julianstephens/streakd/internal/errors"
)

func statusOf(err error) int {
	switch errors.KindOf(err) {
	case errors.Unauthenticated:
		return http.StatusUnauthorized
	case errors.InvalidInput:
		return http.StatusBadRequest
	case errors.NotFound:
		return http.StatusNotFound
	case errors.AlreadyCompleted, errors.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg}. Internal errors never expose their cause.
func respondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": errors.MessageOf(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
