package amadeus

import (
	"context"
	"time"
)

// QuoteProvider defines the interface for live fare quote lookups. The
// forecast pipeline depends on this interface, not on the concrete client, so
// tests can substitute a mock.
type QuoteProvider interface {
	// Configured reports whether provider credentials are present. An
	// unconfigured provider is skipped, never an error.
	Configured() bool

	// Search returns live offers for a route on a departure date. An empty
	// slice with a nil error means the provider answered but had no
	// inventory for that date.
	Search(ctx context.Context, origin, destination string, departureDate time.Time) ([]Quote, error)
}
