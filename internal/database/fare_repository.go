package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/smartlipad/smartlipad-go/internal/models"
)

// FareRepository reads and writes fare snapshots. The read side powers the
// forecasting pipeline: only valid snapshots count, aggregated to one minimum
// price per departure date.
type FareRepository struct {
	pool DatabasePool
}

// NewFareRepository creates a new fare repository.
func NewFareRepository(pool DatabasePool) *FareRepository {
	return &FareRepository{pool: pool}
}

// DailyMinimums returns the minimum valid price per departure date for a
// route, ordered by date. Dates with no observations are omitted, never
// zero-filled. An unknown route yields an empty slice, not an error: the
// pipeline treats "no data" as a normal state.
func (r *FareRepository) DailyMinimums(ctx context.Context, routeID int, from, to time.Time) ([]models.DailyMinPrice, error) {
	query := `
		SELECT departure_date, MIN(price_amount)
		FROM fare_snapshots
		WHERE route_id = $1
		  AND is_valid = true
		  AND departure_date >= $2
		  AND departure_date <= $3
		GROUP BY departure_date
		ORDER BY departure_date ASC
	`

	rows, err := r.pool.Query(ctx, query, routeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily minimums: %w", err)
	}
	defer rows.Close()

	var series []models.DailyMinPrice
	for rows.Next() {
		var day time.Time
		var price decimal.Decimal
		if err := rows.Scan(&day, &price); err != nil {
			return nil, fmt.Errorf("failed to scan daily minimum: %w", err)
		}
		series = append(series, models.DailyMinPrice{Date: day, Price: price.InexactFloat64()})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily minimums: %w", err)
	}

	return series, nil
}

// InsertSnapshot persists a fare observation, computing its content
// fingerprint. A snapshot whose fingerprint already exists is skipped; the
// boolean reports whether a row was actually inserted.
func (r *FareRepository) InsertSnapshot(ctx context.Context, snap *models.FareSnapshot) (bool, error) {
	snap.HashSignature = snap.Fingerprint()

	query := `
		INSERT INTO fare_snapshots
			(route_id, airline_code, departure_date, scrape_timestamp, price_amount, currency_code, hash_signature, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		ON CONFLICT (hash_signature) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		snap.RouteID,
		snap.AirlineCode,
		snap.DepartureDate,
		snap.ScrapeTimestamp,
		snap.Price,
		snap.CurrencyCode,
		snap.HashSignature,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert fare snapshot: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// InvalidateSnapshot marks a snapshot as erroneous. Snapshots are never
// deleted; invalidation keeps the ingestion history intact.
func (r *FareRepository) InvalidateSnapshot(ctx context.Context, snapshotID int64) error {
	query := `UPDATE fare_snapshots SET is_valid = false WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, snapshotID)
	if err != nil {
		return fmt.Errorf("failed to invalidate fare snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fare snapshot %d not found", snapshotID)
	}
	return nil
}

// SearchFares returns valid snapshots for a route inside a departure window,
// cheapest first.
func (r *FareRepository) SearchFares(ctx context.Context, routeID int, from, to time.Time, limit int) ([]models.FareSnapshot, error) {
	query := `
		SELECT id, route_id, airline_code, departure_date, scrape_timestamp, price_amount, currency_code, hash_signature, is_valid, created_at
		FROM fare_snapshots
		WHERE route_id = $1
		  AND is_valid = true
		  AND departure_date >= $2
		  AND departure_date <= $3
		ORDER BY price_amount ASC
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, routeID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search fares: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// CheapestPerRoute returns the lowest valid fare per active route with
// departures inside the window, cheapest routes first.
func (r *FareRepository) CheapestPerRoute(ctx context.Context, from, to time.Time, limit int) ([]models.RouteLowestFare, error) {
	query := `
		SELECT o.iata_code, d.iata_code, MIN(fs.price_amount) AS min_price
		FROM fare_snapshots fs
		JOIN routes rt ON rt.id = fs.route_id
		JOIN airports o ON o.id = rt.origin_airport_id
		JOIN airports d ON d.id = rt.destination_airport_id
		WHERE fs.is_valid = true
		  AND rt.active = true
		  AND fs.departure_date >= $1
		  AND fs.departure_date <= $2
		GROUP BY o.iata_code, d.iata_code
		ORDER BY min_price ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load cheapest routes: %w", err)
	}
	defer rows.Close()

	var lowest []models.RouteLowestFare
	for rows.Next() {
		var lf models.RouteLowestFare
		var price decimal.Decimal
		if err := rows.Scan(&lf.OriginIATA, &lf.DestinationIATA, &price); err != nil {
			return nil, fmt.Errorf("failed to scan route lowest fare: %w", err)
		}
		lf.Price = price.InexactFloat64()
		lowest = append(lowest, lf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating route lowest fares: %w", err)
	}
	return lowest, nil
}

// LatestFares returns the most recently scraped valid snapshots for a route.
func (r *FareRepository) LatestFares(ctx context.Context, routeID int, limit int) ([]models.FareSnapshot, error) {
	query := `
		SELECT id, route_id, airline_code, departure_date, scrape_timestamp, price_amount, currency_code, hash_signature, is_valid, created_at
		FROM fare_snapshots
		WHERE route_id = $1 AND is_valid = true
		ORDER BY scrape_timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, routeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest fares: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]models.FareSnapshot, error) {
	var fares []models.FareSnapshot
	for rows.Next() {
		var f models.FareSnapshot
		if err := rows.Scan(
			&f.ID,
			&f.RouteID,
			&f.AirlineCode,
			&f.DepartureDate,
			&f.ScrapeTimestamp,
			&f.Price,
			&f.CurrencyCode,
			&f.HashSignature,
			&f.IsValid,
			&f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fare snapshot: %w", err)
		}
		fares = append(fares, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fare snapshots: %w", err)
	}

	return fares, nil
}
