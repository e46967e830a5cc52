package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/models"
	"github.com/smartlipad/smartlipad-go/pkg/amadeus"
)

// sampleDays are the days of month the sampler probes, clipped to the month's
// actual length.
var sampleDays = []int{5, 15, 25}

// QuoteSampler reduces live provider quotes to one price per month by probing
// a few sample departure dates and taking the minimum.
type QuoteSampler struct {
	provider amadeus.QuoteProvider
	logger   *logrus.Entry
}

// NewQuoteSampler creates a new sampler.
func NewQuoteSampler(provider amadeus.QuoteProvider, logger *logrus.Logger) *QuoteSampler {
	return &QuoteSampler{
		provider: provider,
		logger:   logger.WithField("component", "quote_sampler"),
	}
}

// Available reports whether the provider can be queried at all.
func (s *QuoteSampler) Available() bool {
	return s.provider != nil && s.provider.Configured()
}

// MonthlyMinimum samples the month and returns the cheapest quote seen, or
// (0, false) when every sample came back empty or failed. Individual sample
// failures degrade the month, they never fail it outright.
func (s *QuoteSampler) MonthlyMinimum(ctx context.Context, origin, destination string, month models.Month) (float64, bool) {
	if !s.Available() {
		return 0, false
	}

	days := month.Days()
	best := 0.0
	found := false

	for _, d := range sampleDays {
		if d > days {
			d = days
		}
		date := time.Date(month.Year, month.Month, d, 0, 0, 0, 0, time.UTC)

		quotes, err := s.provider.Search(ctx, origin, destination, date)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"origin":      origin,
				"destination": destination,
				"date":        date.Format("2006-01-02"),
			}).Warn("Quote sample failed")
			continue
		}

		for _, q := range quotes {
			price := q.Price.InexactFloat64()
			if price <= 0 {
				continue
			}
			if !found || price < best {
				best = price
				found = true
			}
		}
	}

	return best, found
}
