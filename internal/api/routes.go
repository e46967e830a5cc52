package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/smartlipad/smartlipad-go/internal/api/handlers"
	"github.com/smartlipad/smartlipad-go/internal/config"
	"github.com/smartlipad/smartlipad-go/internal/middleware"
)

// Handlers bundles the handler set the router mounts.
type Handlers struct {
	Health   *handlers.HealthHandler
	Forecast *handlers.ForecastHandler
	Flights  *handlers.FlightsHandler
}

// SetupRoutes mounts all endpoints. Read endpoints are public; ingestion and
// invalidation require a client JWT.
func SetupRoutes(router *gin.Engine, cfg *config.Config, h Handlers) {
	if cfg.Telemetry.Enabled {
		router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	router.GET("/health", h.Health.HealthCheck)
	router.GET("/live", h.Health.Live)
	router.GET("/ready", h.Health.Ready)

	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret)

	v1 := router.Group("/api/v1")
	{
		forecast := v1.Group("/forecast")
		{
			forecast.GET("/:origin/:destination", h.Forecast.GetForecast)
			forecast.GET("/:origin/:destination/cheapest", h.Forecast.GetCheapestMonths)
		}

		flights := v1.Group("/flights")
		{
			flights.GET("/search", h.Flights.SearchFlights)
			flights.GET("/cheapest", h.Flights.CheapestFlights)
			flights.GET("/:origin/:destination/latest", h.Flights.LatestFares)
		}

		v1.GET("/airports", h.Flights.ListAirports)
		v1.GET("/routes", h.Flights.ListRoutes)

		fares := v1.Group("/fares", auth.RequireAuth())
		{
			fares.POST("", h.Flights.IngestFares)
			fares.DELETE("/:id", h.Flights.InvalidateFare)
		}
	}
}
