package services

import (
	"math"

	"github.com/smartlipad/smartlipad-go/internal/models"
)

// SeasonalBackfillEstimator produces monthly estimates from historical data
// alone, blending same-month-last-year with the overall historical mean. It
// is the source of last resort: with no history at all it estimates nothing.
type SeasonalBackfillEstimator struct {
	alpha float64
	band  float64
}

// NewSeasonalBackfillEstimator creates an estimator. Alpha weights the
// prior-year-same-month anchor over the overall mean; band sets the relative
// width of the confidence interval around each estimate.
func NewSeasonalBackfillEstimator(alpha, band float64) *SeasonalBackfillEstimator {
	return &SeasonalBackfillEstimator{alpha: alpha, band: band}
}

// Estimate returns forecasts for every target month it can anchor in the
// historical series. Months with neither a prior-year anchor nor an overall
// mean are omitted.
func (e *SeasonalBackfillEstimator) Estimate(series []models.DailyMinPrice, targets []models.Month, currency string) []models.MonthlyForecast {
	if len(series) == 0 || len(targets) == 0 {
		return nil
	}

	// Per-historical-month means. Each month weighs equally in the overall
	// mean regardless of how many observations it holds.
	sums := make(map[models.Month]float64)
	counts := make(map[models.Month]int)
	for _, p := range series {
		m := models.MonthOf(p.Date)
		sums[m] += p.Price
		counts[m]++
	}

	monthMeans := make(map[models.Month]float64, len(sums))
	var total float64
	for m, sum := range sums {
		mean := sum / float64(counts[m])
		monthMeans[m] = mean
		total += mean
	}
	overall := total / float64(len(monthMeans))

	results := make([]models.MonthlyForecast, 0, len(targets))
	for _, target := range targets {
		ly, hasLY := monthMeans[target.AddMonths(-12)]

		var estimate float64
		if hasLY {
			estimate = math.Round(e.alpha*ly + (1-e.alpha)*overall)
		} else {
			estimate = math.Round(overall)
		}

		estimate = clampNonNegative(estimate)
		results = append(results, models.MonthlyForecast{
			Month:        target,
			Point:        estimate,
			Lower:        clampNonNegative(estimate * (1 - e.band)),
			Upper:        estimate * (1 + e.band),
			CurrencyCode: currency,
			Source:       "db",
		})
	}
	return results
}
