package server

import (
	"github.com/Digital-Creators-Team/spin-rewards/docs"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterSwagger serves the operator API docs at /swagger/index.html. The
// documented host follows the request so the UI works behind a proxy.
func (a *App) RegisterSwagger() {
	handler := ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.DefaultModelsExpandDepth(-1),
	)

	a.router.GET("/swagger/*any", func(c *gin.Context) {
		// Get host from request (supports X-Forwarded-Host for reverse proxy)
		host := c.GetHeader("X-Forwarded-Host")
		if host == "" {
			host = c.Request.Host
		}
		docs.SwaggerInfo.Host = host
		handler(c)
	})

	a.logger.Info().
		Str("path", "/swagger/index.html").
		Msg("Swagger UI registered with dynamic host")
}
