package http

import (
	"github.com/eugeneleychenko/vyb-marine-demo/config"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.GET("/:sku", handler.GetProduct)
			products.POST("/search", handler.SearchProducts)
			products.POST("/filter", handler.FilterProducts)
		}

		cart := v1.Group("/cart")
		{
			cart.GET("", handler.GetCart)
			cart.POST("/items", handler.AddCartItem)
			cart.PATCH("/items/:sku", handler.UpdateCartItem)
			cart.DELETE("/items/:sku", handler.RemoveCartItem)
		}

		uploads := v1.Group("/uploads")
		{
			uploads.POST("/match", handler.MatchUpload)
		}

		voice := v1.Group("/voice")
		{
			voice.POST("/sessions", handler.StartVoiceSession)
			voice.GET("/sessions/:id", handler.GetVoiceSession)
			voice.DELETE("/sessions/:id", handler.EndVoiceSession)
			voice.POST("/sessions/:id/tool-calls", handler.DispatchToolCall)
		}

		v1.GET("/events", handler.StreamEvents)
	}

	return router
}
