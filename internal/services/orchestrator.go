package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartlipad/smartlipad-go/internal/config"
	"github.com/smartlipad/smartlipad-go/internal/models"
	"github.com/smartlipad/smartlipad-go/internal/telemetry"
	"github.com/smartlipad/smartlipad-go/internal/utils"
)

// RouteResolver resolves IATA pairs to tracked routes.
type RouteResolver interface {
	Resolve(ctx context.Context, origin, destination string) (*models.Route, error)
}

// monthlyForecaster is the model source consulted first.
type monthlyForecaster interface {
	ForecastMonthly(ctx context.Context, routeID int, months []models.Month) ([]models.MonthlyForecast, error)
}

// monthlySampler is the live quote source consulted for months the model
// left unestimated.
type monthlySampler interface {
	Available() bool
	MonthlyMinimum(ctx context.Context, origin, destination string, month models.Month) (float64, bool)
}

// ForecastRequest holds the parameters of one forecast request.
type ForecastRequest struct {
	Origin         string
	Destination    string
	Months         int
	FreshnessToken string
}

// MonthEstimate is one month's entry in the response; AvgFare is nil for
// months no source could estimate.
type MonthEstimate struct {
	Month   models.Month `json:"month"`
	AvgFare *float64     `json:"avg_fare"`
}

// MonthPrice names a month together with its estimated price.
type MonthPrice struct {
	Month string  `json:"month"`
	Price float64 `json:"price"`
}

// ForecastResult is the orchestrator's answer to one request.
type ForecastResult struct {
	Origin        string
	Destination   string
	Monthly       []MonthEstimate
	BestTime      *MonthPrice
	MostExpensive *MonthPrice
	AvgFare       float64
	Source        string
	Superseded    bool
}

// ForecastOrchestrator coordinates the forecast sources for one request:
// model first, then live quote sampling, then seasonal backfill. Sources run
// sequentially because each later source only handles the months earlier
// sources left unestimated.
type ForecastOrchestrator struct {
	routes     RouteResolver
	forecaster monthlyForecaster
	sampler    monthlySampler
	backfill   *SeasonalBackfillEstimator
	fares      FareReader
	store      RunStore
	registry   *RequestRegistry
	cfg        config.ForecastConfig
	logger     *logrus.Entry
	now        func() time.Time
}

// NewForecastOrchestrator wires up the pipeline.
func NewForecastOrchestrator(
	routes RouteResolver,
	forecaster monthlyForecaster,
	sampler monthlySampler,
	backfill *SeasonalBackfillEstimator,
	fares FareReader,
	store RunStore,
	registry *RequestRegistry,
	cfg config.ForecastConfig,
	logger *logrus.Logger,
) *ForecastOrchestrator {
	return &ForecastOrchestrator{
		routes:     routes,
		forecaster: forecaster,
		sampler:    sampler,
		backfill:   backfill,
		fares:      fares,
		store:      store,
		registry:   registry,
		cfg:        cfg,
		logger:     logger.WithField("component", "forecast_orchestrator"),
		now:        time.Now,
	}
}

// Forecast resolves one request through the source pipeline. The only hard
// failures are an unknown route and supersession; every source failure
// degrades to "this source produced nothing".
func (o *ForecastOrchestrator) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResult, error) {
	ctx, span := telemetry.Tracer("forecast").Start(ctx, "ForecastPipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("route.origin", req.Origin),
		attribute.String("route.destination", req.Destination),
	)

	horizon := req.Months
	if horizon <= 0 {
		horizon = o.cfg.DefaultMonths
	}
	if horizon > o.cfg.MaxMonths {
		return nil, utils.NewValidationErrorf("months must be between 1 and %d", o.cfg.MaxMonths)
	}

	route, err := o.routes.Resolve(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve route: %w", err)
	}
	if route == nil || !route.Active {
		return nil, utils.ErrRouteNotFound
	}

	token := o.registry.Register(req.Origin, req.Destination, req.FreshnessToken)
	defer token.Release()

	log := o.logger.WithFields(logrus.Fields{
		"route_id": route.ID,
		"route":    route.OriginIATA + "-" + route.DestinationIATA,
		"months":   horizon,
	})

	months := models.MonthsFrom(models.MonthOf(o.now().UTC()), horizon)
	estimates := make(map[models.Month]models.MonthlyForecast, horizon)
	var sources []string

	if token.Superseded() {
		return o.supersededResult(route), nil
	}

	if o.cfg.ModelEnabled && o.forecaster != nil {
		results, err := o.forecaster.ForecastMonthly(ctx, route.ID, months)
		if err != nil {
			log.WithError(err).Warn("Model forecast failed, falling through")
		}
		if merged := mergeResults(estimates, results); merged > 0 {
			sources = append(sources, "model")
		}
	}

	if token.Superseded() {
		return o.supersededResult(route), nil
	}

	if o.sampler != nil && len(estimates) < len(months) && o.sampler.Available() {
		sampled := 0
		for _, m := range months {
			if _, ok := estimates[m]; ok {
				continue
			}
			if price, ok := o.sampler.MonthlyMinimum(ctx, route.OriginIATA, route.DestinationIATA, m); ok {
				estimates[m] = o.bandedEstimate(m, price, "amadeus")
				sampled++
			}
			if token.Superseded() {
				return o.supersededResult(route), nil
			}
		}
		if sampled > 0 {
			sources = append(sources, "amadeus")
		}
	}

	if len(estimates) < len(months) {
		if backfilled := o.runBackfill(ctx, route.ID, months, estimates, log); backfilled > 0 {
			sources = append(sources, "db")
		}
	}

	modelUsed := len(sources) > 0 && sources[0] == "model"
	label := strings.Join(sources, "+")
	if label == "" {
		label = "none"
	}

	// Simple combinations get their own run; the model path persisted its
	// run while fitting.
	if len(estimates) > 0 && !modelUsed {
		o.persistSimpleRun(ctx, route.ID, label, months, estimates, log)
	}

	return o.summarize(route, months, estimates, label), nil
}

// mergeResults copies results into estimates, first source wins. Returns the
// number of months actually merged.
func mergeResults(estimates map[models.Month]models.MonthlyForecast, results []models.MonthlyForecast) int {
	merged := 0
	for _, res := range results {
		if _, ok := estimates[res.Month]; ok {
			continue
		}
		estimates[res.Month] = res
		merged++
	}
	return merged
}

// bandedEstimate wraps a single sampled price in the fixed relative band used
// for non-model sources.
func (o *ForecastOrchestrator) bandedEstimate(m models.Month, price float64, source string) models.MonthlyForecast {
	return models.MonthlyForecast{
		Month:        m,
		Point:        price,
		Lower:        clampNonNegative(price * (1 - o.cfg.SimpleBand)),
		Upper:        price * (1 + o.cfg.SimpleBand),
		CurrencyCode: o.cfg.CurrencyCode,
		Source:       source,
	}
}

func (o *ForecastOrchestrator) runBackfill(ctx context.Context, routeID int, months []models.Month, estimates map[models.Month]models.MonthlyForecast, log *logrus.Entry) int {
	today := o.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -o.cfg.LookbackDays)

	series, err := o.fares.DailyMinimums(ctx, routeID, from, today)
	if err != nil {
		log.WithError(err).Warn("Seasonal backfill history load failed")
		return 0
	}

	missing := make([]models.Month, 0, len(months))
	for _, m := range months {
		if _, ok := estimates[m]; !ok {
			missing = append(missing, m)
		}
	}

	return mergeResults(estimates, o.backfill.Estimate(series, missing, o.cfg.CurrencyCode))
}

func (o *ForecastOrchestrator) persistSimpleRun(ctx context.Context, routeID int, label string, months []models.Month, estimates map[models.Month]models.MonthlyForecast, log *logrus.Entry) {
	today := o.now().UTC().Truncate(24 * time.Hour)
	results := make([]models.MonthlyForecast, 0, len(estimates))
	for _, m := range months {
		if res, ok := estimates[m]; ok {
			results = append(results, res)
		}
	}

	run := &models.ForecastRun{
		RouteID:        routeID,
		ModelName:      label,
		Status:         models.RunStatusSuccess,
		TrainStartDate: today.AddDate(0, 0, -o.cfg.LookbackDays),
		TrainEndDate:   today,
		HorizonMonths:  len(months),
	}
	if _, err := o.store.CreateRun(ctx, run, results); err != nil {
		// The caller still gets the result even when caching it failed.
		log.WithError(err).Warn("Failed to persist forecast run")
	}
}

func (o *ForecastOrchestrator) supersededResult(route *models.Route) *ForecastResult {
	return &ForecastResult{
		Origin:      route.OriginIATA,
		Destination: route.DestinationIATA,
		Source:      "none",
		Superseded:  true,
	}
}

// summarize derives best/worst/average over the months that have values.
// Ties go to the first month in chronological order.
func (o *ForecastOrchestrator) summarize(route *models.Route, months []models.Month, estimates map[models.Month]models.MonthlyForecast, label string) *ForecastResult {
	result := &ForecastResult{
		Origin:      route.OriginIATA,
		Destination: route.DestinationIATA,
		Monthly:     make([]MonthEstimate, 0, len(months)),
		Source:      label,
	}

	var sum float64
	var count int
	for _, m := range months {
		res, ok := estimates[m]
		if !ok {
			result.Monthly = append(result.Monthly, MonthEstimate{Month: m})
			continue
		}

		price := res.Point
		result.Monthly = append(result.Monthly, MonthEstimate{Month: m, AvgFare: &price})
		sum += price
		count++

		if result.BestTime == nil || price < result.BestTime.Price {
			result.BestTime = &MonthPrice{Month: m.String(), Price: price}
		}
		if result.MostExpensive == nil || price > result.MostExpensive.Price {
			result.MostExpensive = &MonthPrice{Month: m.String(), Price: price}
		}
	}

	if count > 0 {
		result.AvgFare = sum / float64(count)
	}
	return result
}
