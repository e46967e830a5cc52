package models

import (
	"fmt"
	"strings"
	"time"
)

// Month identifies one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalJSON encodes the month as its "YYYY-MM" key. The zero month
// encodes as null so it survives a round trip.
func (m Month) MarshalJSON() ([]byte, error) {
	if m == (Month{}) {
		return []byte("null"), nil
	}
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM" key or null.
func (m *Month) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Month{}
		return nil
	}
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthOf(t)
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.Start().AddDate(0, 1, -1).Day()
}

// Before reports whether m is chronologically before o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// MonthsFrom returns n consecutive months starting at start.
func MonthsFrom(start Month, n int) []Month {
	months := make([]Month, 0, n)
	for i := 0; i < n; i++ {
		months = append(months, start.AddMonths(i))
	}
	return months
}

// MonthlyForecast is one forecast value for a route and calendar month.
type MonthlyForecast struct {
	Month        Month   `json:"month"`
	Point        float64 `json:"point_estimate"`
	Lower        float64 `json:"lower_bound"`
	Upper        float64 `json:"upper_bound"`
	CurrencyCode string  `json:"currency_code"`
	Source       string  `json:"source"`
}

// Validate checks the bound invariant: lower <= point <= upper, point >= 0.
func (f MonthlyForecast) Validate() error {
	if f.Point < 0 {
		return fmt.Errorf("month %s: negative point estimate %f", f.Month, f.Point)
	}
	if f.Lower > f.Point || f.Upper < f.Point {
		return fmt.Errorf("month %s: bounds [%f, %f] do not bracket point %f",
			f.Month, f.Lower, f.Upper, f.Point)
	}
	return nil
}

// Forecast run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// ForecastRun is a batch of monthly forecasts produced together. A run is
// immutable once created; fresher data produces a new run rather than
// mutating an old one.
type ForecastRun struct {
	ID             int64     `json:"forecast_run_id" db:"id"`
	RouteID        int       `json:"route_id" db:"route_id"`
	ModelName      string    `json:"model_name" db:"model_name"`
	Status         string    `json:"status" db:"status"`
	TrainStartDate time.Time `json:"train_start_date" db:"train_start_date"`
	TrainEndDate   time.Time `json:"train_end_date" db:"train_end_date"`
	HorizonMonths  int       `json:"horizon_months" db:"horizon_months"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
