package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/logging"
	"github.com/smartlipad/smartlipad-go/internal/services"
	"github.com/smartlipad/smartlipad-go/internal/utils"
)

// forecastCache is the response cache surface the handler uses.
type forecastCache interface {
	Get(ctx context.Context, origin, destination string, months int) (*services.ForecastResult, bool)
	Set(ctx context.Context, origin, destination string, months int, result *services.ForecastResult)
}

// orchestrator abstracts the forecast pipeline for handler tests.
type orchestrator interface {
	Forecast(ctx context.Context, req services.ForecastRequest) (*services.ForecastResult, error)
}

// forecastNotifier pushes summaries of freshly computed forecasts.
type forecastNotifier interface {
	NotifyForecast(ctx context.Context, result *services.ForecastResult) error
}

// ForecastHandler serves the monthly forecast endpoints.
type ForecastHandler struct {
	orch     orchestrator
	cache    forecastCache
	notifier forecastNotifier
	logger   *logrus.Entry
}

// NewForecastHandler creates a new forecast handler. The cache and notifier
// may be nil, e.g. when Redis or Telegram is not deployed.
func NewForecastHandler(orch orchestrator, cache forecastCache, notifier forecastNotifier, logger *logrus.Logger) *ForecastHandler {
	return &ForecastHandler{
		orch:     orch,
		cache:    cache,
		notifier: notifier,
		logger:   logger.WithField("component", "forecast_handler"),
	}
}

// monthlyEntry is the wire form of one month in the forecast response.
type monthlyEntry struct {
	Month   string   `json:"month"`
	AvgFare *float64 `json:"avg_fare"`
}

// forecastResponse is the wire form of a forecast result.
type forecastResponse struct {
	Origin          string               `json:"origin"`
	Destination     string               `json:"destination"`
	MonthlyForecast []monthlyEntry       `json:"monthly_forecast"`
	BestTime        *services.MonthPrice `json:"best_time"`
	MostExpensive   *services.MonthPrice `json:"most_expensive"`
	AvgFare         float64              `json:"avg_fare"`
	Source          string               `json:"source"`
	Superseded      bool                 `json:"superseded"`
}

func toResponse(result *services.ForecastResult) forecastResponse {
	resp := forecastResponse{
		Origin:          result.Origin,
		Destination:     result.Destination,
		MonthlyForecast: make([]monthlyEntry, 0, len(result.Monthly)),
		BestTime:        result.BestTime,
		MostExpensive:   result.MostExpensive,
		AvgFare:         result.AvgFare,
		Source:          result.Source,
		Superseded:      result.Superseded,
	}
	for _, m := range result.Monthly {
		resp.MonthlyForecast = append(resp.MonthlyForecast, monthlyEntry{
			Month:   m.Month.String(),
			AvgFare: m.AvgFare,
		})
	}
	return resp
}

// GetForecast handles GET /forecast/:origin/:destination.
func (h *ForecastHandler) GetForecast(c *gin.Context) {
	origin := c.Param("origin")
	destination := c.Param("destination")

	months := 0
	if raw := c.Query("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "months must be a positive integer"})
			return
		}
		months = parsed
	}
	token := c.GetHeader("X-Request-Token")
	if token == "" {
		token = c.Query("freshness_token")
	}

	// The response cache only serves tokenless requests; a freshness token
	// signals the caller wants supersession semantics, not a cached copy.
	if h.cache != nil && token == "" {
		if cached, ok := h.cache.Get(c.Request.Context(), origin, destination, months); ok {
			c.JSON(http.StatusOK, toResponse(cached))
			return
		}
	}

	result, err := h.orch.Forecast(c.Request.Context(), services.ForecastRequest{
		Origin:         origin,
		Destination:    destination,
		Months:         months,
		FreshnessToken: token,
	})
	if err != nil {
		h.writeError(c, origin, destination, err)
		return
	}

	if h.cache != nil && token == "" {
		h.cache.Set(c.Request.Context(), origin, destination, months, result)
	}
	if h.notifier != nil && !result.Superseded {
		// Delivery runs off the request path; failures only log.
		go func(res *services.ForecastResult) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.notifier.NotifyForecast(ctx, res); err != nil {
				h.logger.WithError(err).Warn("Forecast notification failed")
			}
		}(result)
	}

	c.JSON(http.StatusOK, toResponse(result))
}

// cheapestEntry is one ranked month in the cheapest-months response.
// PercentVsPeak is the saving relative to the most expensive forecast month.
type cheapestEntry struct {
	Rank          int     `json:"rank"`
	Month         string  `json:"month"`
	AvgFare       float64 `json:"avg_fare"`
	PercentVsPeak float64 `json:"percent_vs_peak"`
}

// GetCheapestMonths handles GET /forecast/:origin/:destination/cheapest.
// It ranks the forecast months by price, cheapest first.
func (h *ForecastHandler) GetCheapestMonths(c *gin.Context) {
	origin := c.Param("origin")
	destination := c.Param("destination")

	limit := 3
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	result, err := h.orch.Forecast(c.Request.Context(), services.ForecastRequest{
		Origin:      origin,
		Destination: destination,
	})
	if err != nil {
		h.writeError(c, origin, destination, err)
		return
	}

	ranked := make([]cheapestEntry, 0, len(result.Monthly))
	peak := 0.0
	for _, m := range result.Monthly {
		if m.AvgFare == nil {
			continue
		}
		if *m.AvgFare > peak {
			peak = *m.AvgFare
		}
		ranked = append(ranked, cheapestEntry{Month: m.Month.String(), AvgFare: *m.AvgFare})
	}
	// Stable sort keeps chronological order among equal prices.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].AvgFare < ranked[j].AvgFare })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
		if peak > 0 {
			ranked[i].PercentVsPeak = (peak - ranked[i].AvgFare) / peak * 100
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"origin":      result.Origin,
		"destination": result.Destination,
		"cheapest":    ranked,
		"source":      result.Source,
	})
}

func (h *ForecastHandler) writeError(c *gin.Context, origin, destination string, err error) {
	var verr *utils.ValidationError
	switch {
	case errors.Is(err, utils.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	default:
		logging.WithRoute(origin, destination).WithError(err).Error("Forecast request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
