// api/middleware/actor.go

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/veritas-grc/veritas/api/util"
)

// ActorContext resolves the acting principal from the identity headers the
// authenticating gateway sets. Requests without an identity fall through to
// the system actor at append time; authentication itself is not this
// service's concern.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-User-Id"); id != "" {
			c.Set(util.ContextActorID, id)
			c.Set(util.ContextActorName, c.GetHeader("X-User-Name"))
			c.Set(util.ContextActorEmail, c.GetHeader("X-User-Email"))
		}
		c.Next()
	}
}
