package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/proptrack-api/internal/middleware"
)

// Routes - обработчики и middleware, из которых собирается API
type Routes struct {
	Identity    *middleware.IdentityMiddleware
	RateLimiter *middleware.RateLimiter

	Auth    *AuthHandler
	IDs     *IdentityHandler
	Records *RecordsHandler
	Admin   *AdminHandler
	WS      *WSHandler
	Health  *HealthHandler
	Metrics http.Handler
}

// Register подключает маршруты к роутеру. Nil-зависимости пропускаются
func (r Routes) Register(router *gin.Engine) {
	if r.Health != nil {
		router.GET("/health", r.Health.Health)
	}
	if r.Metrics != nil {
		router.GET("/metrics", gin.WrapH(r.Metrics))
	}

	identityChain := []gin.HandlerFunc{r.Identity.Device(), r.Identity.Session(), r.Identity.Controller()}

	if r.WS != nil {
		router.GET("/ws/identity", append(identityChain, r.WS.HandleConnection)...)
	}

	api := router.Group("/api", identityChain...)
	{
		api.GET("/identity", r.IDs.GetIdentity)
		api.GET("/gating/:action", r.IDs.CheckGate)

		authGroup := api.Group("/auth")
		if r.RateLimiter != nil {
			authGroup.Use(r.RateLimiter.Limit(middleware.AuthRateLimitConfig()))
		}
		{
			authGroup.POST("/signup", r.Auth.SignUp)
			authGroup.POST("/signin", r.Auth.SignIn)
			authGroup.POST("/signout", r.Auth.SignOut)
			authGroup.POST("/session", r.Auth.SessionEvent)
		}

		records := api.Group("")
		if r.RateLimiter != nil {
			records.Use(r.RateLimiter.LimitByDevice(middleware.DeviceRateLimitConfig()))
		}
		{
			records.GET("/pins", r.Records.ListPins)
			records.POST("/pins", r.Records.CreatePin)
			records.DELETE("/pins/:id", middleware.ExtractUintParam("id", RecordIDKey), r.Records.DeletePin)

			records.GET("/collections", r.Records.ListCollections)
			records.POST("/collections", r.Records.CreateCollection)
			records.DELETE("/collections/:id", middleware.ExtractUintParam("id", RecordIDKey), r.Records.DeleteCollection)
		}

		if r.Admin != nil {
			admin := api.Group("/admin", middleware.AdminOnly())
			admin.GET("/merges/export", r.Admin.ExportMerges)
		}
	}
}
