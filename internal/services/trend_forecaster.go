package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/config"
	"github.com/smartlipad/smartlipad-go/internal/models"
)

// FareReader is the read surface of the fare repository the forecasting
// pipeline depends on.
type FareReader interface {
	DailyMinimums(ctx context.Context, routeID int, from, to time.Time) ([]models.DailyMinPrice, error)
}

// RunStore is the forecast persistence surface used by the pipeline.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.ForecastRun, results []models.MonthlyForecast) (int64, error)
	FindCachedResults(ctx context.Context, routeID int, fromMonth models.Month) ([]models.MonthlyForecast, error)
}

// ModelName identifies the statistical model used for persisted runs.
const ModelName = "trend_seasonal"

// TrendSeasonalForecaster fits a trend plus weekly and yearly seasonality
// model on a route's daily-minimum series and produces month-bucketed
// forecasts with 95% prediction bounds.
type TrendSeasonalForecaster struct {
	fares  FareReader
	store  RunStore
	cfg    config.ForecastConfig
	logger *logrus.Entry
	now    func() time.Time
}

// NewTrendSeasonalForecaster creates a new forecaster.
func NewTrendSeasonalForecaster(fares FareReader, store RunStore, cfg config.ForecastConfig, logger *logrus.Logger) *TrendSeasonalForecaster {
	return &TrendSeasonalForecaster{
		fares:  fares,
		store:  store,
		cfg:    cfg,
		logger: logger.WithField("component", "trend_forecaster"),
		now:    time.Now,
	}
}

// ForecastMonthly returns one forecast per requested month, or (nil, nil)
// when the route's history is below the fitting threshold. A cached run that
// already covers every requested month is returned without refitting.
func (f *TrendSeasonalForecaster) ForecastMonthly(ctx context.Context, routeID int, months []models.Month) ([]models.MonthlyForecast, error) {
	if len(months) == 0 {
		return nil, nil
	}

	if cached := f.lookupCached(ctx, routeID, months); cached != nil {
		f.logger.WithField("route_id", routeID).Debug("Reusing cached forecast run")
		return cached, nil
	}

	today := f.now().UTC().Truncate(24 * time.Hour)
	trainStart := today.AddDate(0, 0, -f.cfg.LookbackDays)

	series, err := f.fares.DailyMinimums(ctx, routeID, trainStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load training series: %w", err)
	}
	if len(series) < f.cfg.MinTrainingDays {
		f.logger.WithFields(logrus.Fields{
			"route_id": routeID,
			"days":     len(series),
			"needed":   f.cfg.MinTrainingDays,
		}).Info("Not enough history to fit model")
		return nil, nil
	}

	model := f.fit(series)
	results := f.predict(model, series, months)

	run := &models.ForecastRun{
		RouteID:        routeID,
		ModelName:      ModelName,
		Status:         models.RunStatusSuccess,
		TrainStartDate: series[0].Date,
		TrainEndDate:   series[len(series)-1].Date,
		HorizonMonths:  len(months),
	}
	if _, err := f.store.CreateRun(ctx, run, results); err != nil {
		// The caller still gets the forecast; only the cache misses out.
		f.logger.WithError(err).WithField("route_id", routeID).Warn("Failed to persist forecast run")
	}

	return results, nil
}

// lookupCached returns the latest successful run's results when they cover
// every requested month, nil otherwise.
func (f *TrendSeasonalForecaster) lookupCached(ctx context.Context, routeID int, months []models.Month) []models.MonthlyForecast {
	cached, err := f.store.FindCachedResults(ctx, routeID, months[0])
	if err != nil {
		f.logger.WithError(err).WithField("route_id", routeID).Warn("Forecast cache lookup failed")
		return nil
	}
	if cached == nil {
		return nil
	}

	byMonth := make(map[models.Month]models.MonthlyForecast, len(cached))
	for _, res := range cached {
		byMonth[res.Month] = res
	}

	out := make([]models.MonthlyForecast, 0, len(months))
	for _, m := range months {
		res, ok := byMonth[m]
		if !ok {
			return nil
		}
		out = append(out, res)
	}
	return out
}

// fittedModel holds the decomposition learned from the training series.
type fittedModel struct {
	slope     float64
	intercept float64
	weekly    [7]float64
	yearly    [13]float64 // indexed by time.Month, entry 0 unused
	bound     float64     // 1.96 * residual stddev (additive) or relative (multiplicative)
}

func (f *TrendSeasonalForecaster) multiplicative() bool {
	return f.cfg.SeasonalityMode == "multiplicative"
}

// fit decomposes the series into linear trend, weekly and yearly seasonal
// components, and a residual spread for the prediction interval. Seasonal
// components are mean residuals per weekday and per calendar month.
func (f *TrendSeasonalForecaster) fit(series []models.DailyMinPrice) fittedModel {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Price
	}
	values = smooth(values, f.cfg.SmoothingWindow)

	var model fittedModel
	model.slope, model.intercept = olsFit(values)

	mult := f.multiplicative()

	var yearSums [13]float64
	var yearCounts [13]int
	var wdSums [7]float64
	var wdCounts [7]int

	detrended := make([]float64, len(values))
	for i, v := range values {
		trendVal := model.intercept + model.slope*float64(i)
		if mult {
			if trendVal == 0 {
				detrended[i] = 1
			} else {
				detrended[i] = v / trendVal
			}
		} else {
			detrended[i] = v - trendVal
		}

		wd := int(series[i].Date.Weekday())
		wdSums[wd] += detrended[i]
		wdCounts[wd]++
	}

	neutral := 0.0
	if mult {
		neutral = 1.0
	}
	for wd := 0; wd < 7; wd++ {
		if wdCounts[wd] > 0 {
			model.weekly[wd] = wdSums[wd] / float64(wdCounts[wd])
		} else {
			model.weekly[wd] = neutral
		}
	}

	// Yearly component works on what the weekly component leaves behind.
	residuals := make([]float64, len(values))
	for i := range values {
		wd := int(series[i].Date.Weekday())
		if mult {
			if model.weekly[wd] == 0 {
				residuals[i] = detrended[i]
			} else {
				residuals[i] = detrended[i] / model.weekly[wd]
			}
		} else {
			residuals[i] = detrended[i] - model.weekly[wd]
		}
		m := int(series[i].Date.Month())
		yearSums[m] += residuals[i]
		yearCounts[m]++
	}
	for m := 1; m <= 12; m++ {
		if yearCounts[m] > 0 {
			model.yearly[m] = yearSums[m] / float64(yearCounts[m])
		} else {
			model.yearly[m] = neutral
		}
	}

	final := make([]float64, len(values))
	for i := range residuals {
		m := int(series[i].Date.Month())
		if mult {
			if model.yearly[m] == 0 {
				final[i] = residuals[i] - 1
			} else {
				final[i] = residuals[i]/model.yearly[m] - 1
			}
		} else {
			final[i] = residuals[i] - model.yearly[m]
		}
	}
	model.bound = 1.96 * stddev(final)

	return model
}

// predict produces day-level predictions from the day after the last
// observation through the end of the last requested month, then buckets them
// by calendar month, averaging point, lower and upper separately.
func (f *TrendSeasonalForecaster) predict(model fittedModel, series []models.DailyMinPrice, months []models.Month) []models.MonthlyForecast {
	mult := f.multiplicative()
	lastDate := series[len(series)-1].Date
	lastIdx := len(series) - 1
	horizonEnd := months[len(months)-1].AddMonths(1).Start()

	type bucket struct {
		point, lower, upper float64
		n                   int
	}
	buckets := make(map[models.Month]*bucket, len(months))
	for _, m := range months {
		buckets[m] = &bucket{}
	}

	for d, x := lastDate.AddDate(0, 0, 1), lastIdx+1; d.Before(horizonEnd); d, x = d.AddDate(0, 0, 1), x+1 {
		b, ok := buckets[models.MonthOf(d)]
		if !ok {
			continue
		}

		trendVal := model.intercept + model.slope*float64(x)
		wd := int(d.Weekday())
		mo := int(d.Month())

		var point, lower, upper float64
		if mult {
			point = trendVal * model.weekly[wd] * model.yearly[mo]
			spread := math.Abs(point) * model.bound
			lower = point - spread
			upper = point + spread
		} else {
			point = trendVal + model.weekly[wd] + model.yearly[mo]
			lower = point - model.bound
			upper = point + model.bound
		}

		b.point += point
		b.lower += lower
		b.upper += upper
		b.n++
	}

	results := make([]models.MonthlyForecast, 0, len(months))
	for _, m := range months {
		b := buckets[m]
		if b.n == 0 {
			continue
		}
		point := clampNonNegative(b.point / float64(b.n))
		lower := clampNonNegative(b.lower / float64(b.n))
		upper := clampNonNegative(b.upper / float64(b.n))
		if lower > point {
			lower = point
		}
		if upper < point {
			upper = point
		}
		results = append(results, models.MonthlyForecast{
			Month:        m,
			Point:        point,
			Lower:        lower,
			Upper:        upper,
			CurrencyCode: f.cfg.CurrencyCode,
			Source:       "model",
		})
	}
	return results
}
