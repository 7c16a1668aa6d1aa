// api/util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/veritas-grc/veritas/api/logging"
)

// Context keys set by the actor middleware.
const (
	ContextActorID    = "actorID"
	ContextActorName  = "actorName"
	ContextActorEmail = "actorEmail"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// GetActorFromContext returns the identity the actor middleware resolved
// for this request: id, display name, email. ok is false when no actor was
// resolved and the caller should fall back to the system actor.
func GetActorFromContext(c *gin.Context) (id, name, email string, ok bool) {
	v, exists := c.Get(ContextActorID)
	if !exists {
		return "", "", "", false
	}
	id, _ = v.(string)
	if n, exists := c.Get(ContextActorName); exists {
		name, _ = n.(string)
	}
	if e, exists := c.Get(ContextActorEmail); exists {
		email, _ = e.(string)
	}
	return id, name, email, id != ""
}
