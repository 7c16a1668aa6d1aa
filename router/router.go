// api/router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veritas-grc/veritas/api/controller"
	"github.com/veritas-grc/veritas/api/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))
	router.Use(middleware.ActorContext())

	api := router.Group("/api/v1")

	controllers.Audit.RegisterRoutes(api)

	return router
}
