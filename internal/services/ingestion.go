package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/models"
	"github.com/smartlipad/smartlipad-go/internal/utils"
)

// FareWriter is the write surface of the fare repository.
type FareWriter interface {
	InsertSnapshot(ctx context.Context, snap *models.FareSnapshot) (bool, error)
}

// FareObservation is one scraped or API-sourced price submitted for ingestion.
type FareObservation struct {
	Origin          string          `json:"origin" binding:"required"`
	Destination     string          `json:"destination" binding:"required"`
	AirlineCode     *string         `json:"airline_code,omitempty"`
	DepartureDate   string          `json:"departure_date" binding:"required"`
	ScrapeTimestamp time.Time       `json:"scrape_timestamp"`
	Price           decimal.Decimal `json:"price" binding:"required"`
	CurrencyCode    string          `json:"currency_code"`
}

// IngestReport summarizes one ingestion batch.
type IngestReport struct {
	BatchID    string `json:"batch_id"`
	Received   int    `json:"received"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Rejected   int    `json:"rejected"`
}

// IngestionService validates observation batches and writes them as fare
// snapshots. Observations are immutable once stored; duplicates are detected
// by content fingerprint and silently skipped.
type IngestionService struct {
	routes RouteResolver
	fares  FareWriter
	logger *logrus.Entry
	now    func() time.Time
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(routes RouteResolver, fares FareWriter, logger *logrus.Logger) *IngestionService {
	return &IngestionService{
		routes: routes,
		fares:  fares,
		logger: logger.WithField("component", "ingestion"),
		now:    time.Now,
	}
}

// IngestBatch processes a batch of observations. Bad observations are
// rejected individually; one malformed entry never sinks the batch.
func (s *IngestionService) IngestBatch(ctx context.Context, observations []FareObservation) (*IngestReport, error) {
	if len(observations) == 0 {
		return nil, utils.NewValidationError("batch must not be empty")
	}

	report := &IngestReport{
		BatchID:  uuid.New().String(),
		Received: len(observations),
	}
	log := s.logger.WithField("batch_id", report.BatchID)

	for i, obs := range observations {
		snap, err := s.toSnapshot(ctx, obs)
		if err != nil {
			log.WithError(err).WithField("index", i).Warn("Rejected observation")
			report.Rejected++
			continue
		}

		inserted, err := s.fares.InsertSnapshot(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("failed to store observation %d: %w", i, err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Duplicates++
		}
	}

	log.WithFields(logrus.Fields{
		"received":   report.Received,
		"inserted":   report.Inserted,
		"duplicates": report.Duplicates,
		"rejected":   report.Rejected,
	}).Info("Ingested fare batch")

	return report, nil
}

func (s *IngestionService) toSnapshot(ctx context.Context, obs FareObservation) (*models.FareSnapshot, error) {
	if obs.Price.IsNegative() || obs.Price.IsZero() {
		return nil, utils.NewValidationError("price must be positive")
	}

	departure, err := time.Parse("2006-01-02", obs.DepartureDate)
	if err != nil {
		return nil, utils.NewValidationErrorf("invalid departure_date %q", obs.DepartureDate)
	}

	route, err := s.routes.Resolve(ctx, obs.Origin, obs.Destination)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, utils.ErrRouteNotFound
	}

	scraped := obs.ScrapeTimestamp
	if scraped.IsZero() {
		scraped = s.now().UTC()
	}

	currency := obs.CurrencyCode
	if currency == "" {
		currency = "PHP"
	}

	return &models.FareSnapshot{
		RouteID:         route.ID,
		AirlineCode:     obs.AirlineCode,
		DepartureDate:   departure,
		ScrapeTimestamp: scraped,
		Price:           obs.Price,
		CurrencyCode:    currency,
	}, nil
}
