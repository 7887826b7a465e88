package api

import (
	"github.com/gin-gonic/gin"

	"reviewbot/config"
	"reviewbot/monitor"
)

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(m *monitor.Monitor, cfg *config.Config) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	// Register resource routers
	RegisterMonitorRoutes(r, m)
	RegisterHealthRoutes(r, m, cfg)
	return r
}
