package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/smartlipad/smartlipad-go/internal/models"
)

// RouteRepository resolves IATA airport pairs to tracked routes.
type RouteRepository struct {
	pool DatabasePool
}

// NewRouteRepository creates a new route repository.
func NewRouteRepository(pool DatabasePool) *RouteRepository {
	return &RouteRepository{pool: pool}
}

// Resolve looks up the route for an origin/destination IATA pair. It returns
// (nil, nil) when the pair is not tracked; callers turn that into their own
// not-found handling.
func (r *RouteRepository) Resolve(ctx context.Context, origin, destination string) (*models.Route, error) {
	query := `
		SELECT r.id, r.origin_airport_id, r.destination_airport_id, o.iata_code, d.iata_code, r.is_domestic, r.active, r.created_at
		FROM routes r
		JOIN airports o ON o.id = r.origin_airport_id
		JOIN airports d ON d.id = r.destination_airport_id
		WHERE o.iata_code = $1 AND d.iata_code = $2
	`

	var route models.Route
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(origin), strings.ToUpper(destination)).Scan(
		&route.ID,
		&route.OriginAirportID,
		&route.DestinationAirportID,
		&route.OriginIATA,
		&route.DestinationIATA,
		&route.IsDomestic,
		&route.Active,
		&route.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve route %s-%s: %w", origin, destination, err)
	}

	return &route, nil
}

// GetByID loads a single route. Returns (nil, nil) for an unknown id.
func (r *RouteRepository) GetByID(ctx context.Context, routeID int) (*models.Route, error) {
	query := `
		SELECT r.id, r.origin_airport_id, r.destination_airport_id, o.iata_code, d.iata_code, r.is_domestic, r.active, r.created_at
		FROM routes r
		JOIN airports o ON o.id = r.origin_airport_id
		JOIN airports d ON d.id = r.destination_airport_id
		WHERE r.id = $1
	`

	var route models.Route
	err := r.pool.QueryRow(ctx, query, routeID).Scan(
		&route.ID,
		&route.OriginAirportID,
		&route.DestinationAirportID,
		&route.OriginIATA,
		&route.DestinationIATA,
		&route.IsDomestic,
		&route.Active,
		&route.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load route %d: %w", routeID, err)
	}

	return &route, nil
}

// ListAirports returns all tracked airports ordered by IATA code.
func (r *RouteRepository) ListAirports(ctx context.Context) ([]models.Airport, error) {
	query := `SELECT id, iata_code, name, city, country, created_at FROM airports ORDER BY iata_code ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list airports: %w", err)
	}
	defer rows.Close()

	var airports []models.Airport
	for rows.Next() {
		var a models.Airport
		if err := rows.Scan(&a.ID, &a.IATACode, &a.Name, &a.City, &a.Country, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan airport: %w", err)
		}
		airports = append(airports, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating airports: %w", err)
	}

	return airports, nil
}

// ListRoutes returns all tracked routes.
func (r *RouteRepository) ListRoutes(ctx context.Context) ([]models.Route, error) {
	query := `
		SELECT r.id, r.origin_airport_id, r.destination_airport_id, o.iata_code, d.iata_code, r.is_domestic, r.active, r.created_at
		FROM routes r
		JOIN airports o ON o.id = r.origin_airport_id
		JOIN airports d ON d.id = r.destination_airport_id
		ORDER BY o.iata_code, d.iata_code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var rt models.Route
		if err := rows.Scan(&rt.ID, &rt.OriginAirportID, &rt.DestinationAirportID, &rt.OriginIATA, &rt.DestinationIATA, &rt.IsDomestic, &rt.Active, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routes: %w", err)
	}

	return routes, nil
}
