package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartlipad/smartlipad-go/internal/config"
)

// Client is an HTTP client for the Amadeus flight-offers API. It handles the
// OAuth2 client-credentials flow internally and refreshes the token before
// expiry.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	apiKey    string
	apiSecret string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new Amadeus client instance.
func NewClient(cfg *config.AmadeusConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
	}
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// Search returns live offers for a route on a departure date.
func (c *Client) Search(ctx context.Context, origin, destination string, departureDate time.Time) ([]Quote, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("originLocationCode", strings.ToUpper(origin))
	params.Set("destinationLocationCode", strings.ToUpper(destination))
	params.Set("departureDate", departureDate.Format("2006-01-02"))
	params.Set("adults", "1")
	params.Set("currencyCode", "PHP")
	params.Set("max", "20")

	endpoint := c.BaseURL + "/v2/shopping/flight-offers?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offers request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight offers: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read offers response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, providerError(resp.StatusCode, body)
	}

	var offers offersResponse
	if err := json.Unmarshal(body, &offers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offers response: %w", err)
	}

	quotes := make([]Quote, 0, len(offers.Data))
	for _, offer := range offers.Data {
		price, err := decimal.NewFromString(offer.Price.Total)
		if err != nil {
			continue
		}
		q := Quote{
			Origin:        strings.ToUpper(origin),
			Destination:   strings.ToUpper(destination),
			DepartureDate: departureDate,
			Price:         price,
			CurrencyCode:  offer.Price.Currency,
		}
		if len(offer.Itineraries) > 0 && len(offer.Itineraries[0].Segments) > 0 {
			q.CarrierCode = offer.Itineraries[0].Segments[0].CarrierCode
		}
		quotes = append(quotes, q)
	}

	return quotes, nil
}

// token returns a valid access token, requesting a fresh one when the cached
// token is within a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", providerError(resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func providerError(status int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if len(errResp.Errors) > 0 {
			e := errResp.Errors[0]
			return fmt.Errorf("amadeus error (%d): %s: %s", status, e.Title, e.Detail)
		}
		if errResp.Error != "" {
			return fmt.Errorf("amadeus error (%d): %s: %s", status, errResp.Error, errResp.ErrorDescription)
		}
	}
	return fmt.Errorf("amadeus error (%d): %s", status, string(body))
}
