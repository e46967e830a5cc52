package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Airport represents an airport served by at least one route.
type Airport struct {
	ID        int       `json:"airport_id" db:"id"`
	IATACode  string    `json:"iata_code" db:"iata_code"`
	Name      string    `json:"name" db:"name"`
	City      string    `json:"city" db:"city"`
	Country   string    `json:"country" db:"country"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Route is an ordered origin/destination airport pair.
type Route struct {
	ID                   int       `json:"route_id" db:"id"`
	OriginAirportID      int       `json:"origin_airport_id" db:"origin_airport_id"`
	DestinationAirportID int       `json:"destination_airport_id" db:"destination_airport_id"`
	OriginIATA           string    `json:"origin_iata" db:"origin_iata"`
	DestinationIATA      string    `json:"destination_iata" db:"destination_iata"`
	IsDomestic           bool      `json:"is_domestic" db:"is_domestic"`
	Active               bool      `json:"active" db:"active"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// FareSnapshot is one observed price for a route on a specific departure
// date, captured at a point in time. Snapshots are immutable; erroneous ones
// are invalidated, never deleted.
type FareSnapshot struct {
	ID              int64           `json:"fare_snapshot_id" db:"id"`
	RouteID         int             `json:"route_id" db:"route_id"`
	AirlineCode     *string         `json:"airline_code,omitempty" db:"airline_code"`
	DepartureDate   time.Time       `json:"departure_date" db:"departure_date"`
	ScrapeTimestamp time.Time       `json:"scrape_timestamp" db:"scrape_timestamp"`
	Price           decimal.Decimal `json:"price" db:"price_amount"`
	CurrencyCode    string          `json:"currency_code" db:"currency_code"`
	HashSignature   string          `json:"hash_signature" db:"hash_signature"`
	IsValid         bool            `json:"is_valid" db:"is_valid"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Fingerprint derives the content hash that guards against duplicate
// ingestion. The scrape timestamp is part of the hash, so the same price
// re-observed at a different time is a distinct snapshot.
func (s *FareSnapshot) Fingerprint() string {
	carrier := "NA"
	if s.AirlineCode != nil {
		carrier = *s.AirlineCode
	}
	raw := fmt.Sprintf("%d_%s_%s_%s_%s",
		s.RouteID,
		s.DepartureDate.Format("2006-01-02"),
		s.Price.String(),
		s.ScrapeTimestamp.UTC().Format(time.RFC3339),
		carrier,
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DailyMinPrice is the minimum valid observed price for one departure date.
// It is derived on demand and never persisted on its own.
type DailyMinPrice struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// RouteLowestFare is the cheapest valid fare observed for a route pair inside
// a departure window.
type RouteLowestFare struct {
	OriginIATA      string  `json:"origin"`
	DestinationIATA string  `json:"destination"`
	Price           float64 `json:"price"`
}
