package routes

import (
	"net/http"

	"auditor/internal/controllers"
	"auditor/internal/logger"
	"auditor/internal/middleware"
	"auditor/internal/pkg/solana"
	"auditor/web"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type Deps struct {
	Scans controllers.Analyzer
	Cards controllers.CardGenerator
	Log   logger.Logger
}

// SetupRouter registers the validators, middleware and routes
func SetupRouter(deps Deps) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("solana_address", solana.AddressValidator); err != nil {
			deps.Log.Errorw("failed to register solana_address validator", "err", err)
		}
	}

	scanController := controllers.ScanController{Scans: deps.Scans, Log: deps.Log}
	cardController := controllers.CardController{Cards: deps.Cards, Log: deps.Log}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.AccessLog(deps.Log), middleware.Recovery(deps.Log))

	index, err := web.Index()
	if err != nil {
		deps.Log.Errorw("embedded index.html missing", "err", err)
	}

	// Single page front end
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
	router.StaticFS("/static", http.FS(web.Static()))

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	router.POST("/analyze", scanController.Analyze)
	router.POST("/generate_ai_card", cardController.GenerateCard)

	return router
}
