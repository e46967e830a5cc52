package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/database"
	"github.com/smartlipad/smartlipad-go/internal/models"
	"github.com/smartlipad/smartlipad-go/internal/services"
	"github.com/smartlipad/smartlipad-go/internal/utils"
)

// ingester is the ingestion surface used by the handler.
type ingester interface {
	IngestBatch(ctx context.Context, observations []services.FareObservation) (*services.IngestReport, error)
}

// cacheInvalidator drops cached forecast responses for a route pair.
type cacheInvalidator interface {
	Invalidate(ctx context.Context, origin, destination string)
}

// FlightsHandler serves fare search, ingestion, and reference data endpoints.
type FlightsHandler struct {
	routes    *database.RouteRepository
	fares     *database.FareRepository
	ingestion ingester
	cache     cacheInvalidator
	logger    *logrus.Entry
}

// NewFlightsHandler creates a new flights handler. The cache may be nil.
func NewFlightsHandler(routes *database.RouteRepository, fares *database.FareRepository, ingestion ingester, cache cacheInvalidator, logger *logrus.Logger) *FlightsHandler {
	return &FlightsHandler{
		routes:    routes,
		fares:     fares,
		ingestion: ingestion,
		cache:     cache,
		logger:    logger.WithField("component", "flights_handler"),
	}
}

// IngestFares handles POST /fares. Accepts a batch of observations and
// invalidates cached forecasts for the affected route pairs.
func (h *FlightsHandler) IngestFares(c *gin.Context) {
	var body struct {
		Observations []services.FareObservation `json:"observations" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	report, err := h.ingestion.IngestBatch(c.Request.Context(), body.Observations)
	if err != nil {
		var verr *utils.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		h.logger.WithError(err).Error("Fare ingestion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if h.cache != nil && report.Inserted > 0 {
		seen := make(map[string]struct{})
		for _, obs := range body.Observations {
			key := obs.Origin + ":" + obs.Destination
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			h.cache.Invalidate(c.Request.Context(), obs.Origin, obs.Destination)
		}
	}

	c.JSON(http.StatusCreated, report)
}

// InvalidateFare handles DELETE /fares/:id. The snapshot is flagged invalid,
// not removed.
func (h *FlightsHandler) InvalidateFare(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snapshot id"})
		return
	}

	if err := h.fares.InvalidateSnapshot(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "fare snapshot not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "invalidated", "fare_snapshot_id": id})
}

// SearchFlights handles GET /flights/search.
func (h *FlightsHandler) SearchFlights(c *gin.Context) {
	origin := c.Query("origin")
	destination := c.Query("destination")
	if origin == "" || destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin and destination are required"})
		return
	}

	route, err := h.routes.Resolve(c.Request.Context(), origin, destination)
	if err != nil {
		h.logger.WithError(err).Error("Route resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	from, to := now, now.AddDate(1, 0, 0)
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	fares, err := h.fares.SearchFares(c.Request.Context(), route.ID, from, to, limit)
	if err != nil {
		h.logger.WithError(err).Error("Fare search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if fares == nil {
		fares = []models.FareSnapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"origin":      route.OriginIATA,
		"destination": route.DestinationIATA,
		"count":       len(fares),
		"fares":       fares,
	})
}

// CheapestFlights handles GET /flights/cheapest. It returns the lowest
// observed fare per route over an upcoming departure window.
func (h *FlightsHandler) CheapestFlights(c *gin.Context) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from, to := now, now.AddDate(0, 3, 0)
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	lowest, err := h.fares.CheapestPerRoute(c.Request.Context(), from, to, limit)
	if err != nil {
		h.logger.WithError(err).Error("Cheapest routes lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if lowest == nil {
		lowest = []models.RouteLowestFare{}
	}

	c.JSON(http.StatusOK, gin.H{
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
		"routes": lowest,
	})
}

// LatestFares handles GET /flights/:origin/:destination/latest.
func (h *FlightsHandler) LatestFares(c *gin.Context) {
	route, err := h.routes.Resolve(c.Request.Context(), c.Param("origin"), c.Param("destination"))
	if err != nil {
		h.logger.WithError(err).Error("Route resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = parsed
	}

	fares, err := h.fares.LatestFares(c.Request.Context(), route.ID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Latest fares lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if fares == nil {
		fares = []models.FareSnapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"origin":      route.OriginIATA,
		"destination": route.DestinationIATA,
		"fares":       fares,
	})
}

// ListAirports handles GET /airports.
func (h *FlightsHandler) ListAirports(c *gin.Context) {
	airports, err := h.routes.ListAirports(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Airport listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if airports == nil {
		airports = []models.Airport{}
	}
	c.JSON(http.StatusOK, gin.H{"airports": airports})
}

// ListRoutes handles GET /routes.
func (h *FlightsHandler) ListRoutes(c *gin.Context) {
	routes, err := h.routes.ListRoutes(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Route listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if routes == nil {
		routes = []models.Route{}
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}
