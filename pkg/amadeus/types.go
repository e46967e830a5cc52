package amadeus

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one live flight offer price, already reduced to the fields the
// forecast pipeline cares about.
type Quote struct {
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate time.Time       `json:"departure_date"`
	Price         decimal.Decimal `json:"price"`
	CurrencyCode  string          `json:"currency_code"`
	CarrierCode   string          `json:"carrier_code,omitempty"`
}

// tokenResponse is the OAuth2 client-credentials grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// offersResponse mirrors the flight-offers search payload, reduced to the
// fields we read.
type offersResponse struct {
	Data []struct {
		Itineraries []struct {
			Segments []struct {
				CarrierCode string `json:"carrierCode"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"data"`
}

// errorResponse is the provider's error envelope.
type errorResponse struct {
	Errors []struct {
		Status int    `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
