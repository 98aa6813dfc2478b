package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	C "crmhub/config"
	"crmhub/ingest"
	mid "crmhub/middleware"
)

func InitRoutes(r *gin.Engine, ingestor *ingest.Ingestor) {
	// CORS
	if C.IsDevelopment() {
		log.Info("Running in development.")
		config := cors.DefaultConfig()
		config.AllowOrigins = []string{"http://localhost:8080",
			"http://localhost:3000"}
		r.Use(cors.New(config))
	}

	automation := r.Group("/automation", mid.SetScopeByAuthToken())
	automation.GET("/rules", GetAutomationRulesHandler)
	automation.POST("/rules", CreateAutomationRuleHandler)
	automation.PUT("/rules/:id", UpdateAutomationRuleHandler)
	automation.DELETE("/rules/:id", DeleteAutomationRuleHandler)
	automation.GET("/stats", GetAutomationStatsHandler)
	automation.POST("/events", CreateAutomationEventHandler(ingestor))
}
