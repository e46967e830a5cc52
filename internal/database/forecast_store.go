package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smartlipad/smartlipad-go/internal/models"
)

// ForecastStore persists forecast runs and their monthly results. Runs are
// append-only: a fresher forecast is a new run, never an update of an old one.
type ForecastStore struct {
	pool DatabasePool
}

// NewForecastStore creates a new forecast store.
func NewForecastStore(pool DatabasePool) *ForecastStore {
	return &ForecastStore{pool: pool}
}

// CreateRun persists a run together with all of its monthly results in one
// transaction, so a run row never exists without its results. It returns the
// new run id.
func (s *ForecastStore) CreateRun(ctx context.Context, run *models.ForecastRun, results []models.MonthlyForecast) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin forecast run transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO forecast_runs (route_id, model_name, status, train_start_date, train_end_date, horizon_months)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, run.RouteID, run.ModelName, run.Status, run.TrainStartDate, run.TrainEndDate, run.HorizonMonths).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert forecast run: %w", err)
	}

	for _, res := range results {
		_, err = tx.Exec(ctx, `
			INSERT INTO forecast_results (run_id, forecast_month, point_estimate, lower_bound, upper_bound, currency_code, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, runID, res.Month.Start(), res.Point, res.Lower, res.Upper, res.CurrencyCode, res.Source)
		if err != nil {
			return 0, fmt.Errorf("failed to insert forecast result for %s: %w", res.Month, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit forecast run: %w", err)
	}

	run.ID = runID
	return runID, nil
}

// FindCachedResults returns the monthly results of the latest successful run
// for a route, restricted to months from the start of fromMonth onward. A nil
// slice means no reusable run exists.
func (s *ForecastStore) FindCachedResults(ctx context.Context, routeID int, fromMonth models.Month) ([]models.MonthlyForecast, error) {
	var runID int64
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM forecast_runs
		WHERE route_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, routeID, models.RunStatusSuccess).Scan(&runID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest forecast run: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT forecast_month, point_estimate, lower_bound, upper_bound, currency_code, source
		FROM forecast_results
		WHERE run_id = $1 AND forecast_month >= $2
		ORDER BY forecast_month ASC
	`, runID, fromMonth.Start())
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast results: %w", err)
	}
	defer rows.Close()

	var results []models.MonthlyForecast
	for rows.Next() {
		var res models.MonthlyForecast
		var month time.Time
		if err := rows.Scan(&month, &res.Point, &res.Lower, &res.Upper, &res.CurrencyCode, &res.Source); err != nil {
			return nil, fmt.Errorf("failed to scan forecast result: %w", err)
		}
		res.Month = models.MonthOf(month)
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forecast results: %w", err)
	}

	return results, nil
}

// RecordFailure writes a failed run marker without results, so operators can
// see attempts that produced nothing.
func (s *ForecastStore) RecordFailure(ctx context.Context, run *models.ForecastRun) error {
	run.Status = models.RunStatusFailed
	_, err := s.pool.Exec(ctx, `
		INSERT INTO forecast_runs (route_id, model_name, status, train_start_date, train_end_date, horizon_months)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.RouteID, run.ModelName, run.Status, run.TrainStartDate, run.TrainEndDate, run.HorizonMonths)
	if err != nil {
		return fmt.Errorf("failed to record failed forecast run: %w", err)
	}
	return nil
}

// DeleteRunsBefore removes runs (and, via cascade, their results) created
// before the cutoff. Returns the number of runs deleted.
func (s *ForecastStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM forecast_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old forecast runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
