// Package routes wires the HTTP surface of the reconciliation service.
package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"finrecon/bankrecon/internal/handlers"
	"finrecon/bankrecon/internal/matcher"
)

// Register builds the gin engine with all reconciliation routes attached.
func Register(service *matcher.Service, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	h := handlers.NewReconHandler(service)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	statements := api.Group("/statements")
	statements.POST("/import", h.ImportStatement)
	statements.POST("/:id/automatch", h.AutoMatch)
	statements.POST("/:id/post", h.PostStatement)
	statements.GET("/:id/report", h.Report)

	tx := api.Group("/transactions")
	tx.GET("/:id/suggestions", h.Suggestions)
	tx.POST("/:id/match", h.ManualMatch)
	tx.POST("/:id/ignore", h.Ignore)
	tx.POST("/:id/unmatch", h.Unmatch)

	return r
}
