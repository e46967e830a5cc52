package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/smartlipad/smartlipad-go/internal/models"
	"github.com/smartlipad/smartlipad-go/pkg/amadeus"
)

// MockQuoteProvider mocks the external quote provider.
type MockQuoteProvider struct {
	mock.Mock
}

func (m *MockQuoteProvider) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockQuoteProvider) Search(ctx context.Context, origin, destination string, date time.Time) ([]amadeus.Quote, error) {
	args := m.Called(ctx, origin, destination, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]amadeus.Quote), args.Error(1)
}

func quotesAt(prices ...float64) []amadeus.Quote {
	out := make([]amadeus.Quote, 0, len(prices))
	for _, p := range prices {
		out = append(out, amadeus.Quote{Price: decimal.NewFromFloat(p), CurrencyCode: "PHP"})
	}
	return out
}

func TestQuoteSampler_MonthlyMinimum(t *testing.T) {
	provider := new(MockQuoteProvider)
	provider.On("Configured").Return(true)

	month := models.Month{Year: 2025, Month: time.March}
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.March, 5)).Return(quotesAt(3200, 2900), nil)
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.March, 15)).Return(quotesAt(3100), nil)
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.March, 25)).Return(quotesAt(3500), nil)

	sampler := NewQuoteSampler(provider, logrus.New())
	price, ok := sampler.MonthlyMinimum(context.Background(), "MNL", "CEB", month)
	assert.True(t, ok)
	assert.Equal(t, 2900.0, price)
	provider.AssertExpectations(t)
}

func TestQuoteSampler_PartialFailuresDegrade(t *testing.T) {
	provider := new(MockQuoteProvider)
	provider.On("Configured").Return(true)

	month := models.Month{Year: 2025, Month: time.March}
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.March, 5)).Return(nil, errors.New("timeout"))
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.March, 15)).Return(quotesAt(3100), nil)
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.March, 25)).Return(nil, errors.New("timeout"))

	sampler := NewQuoteSampler(provider, logrus.New())
	price, ok := sampler.MonthlyMinimum(context.Background(), "MNL", "CEB", month)
	assert.True(t, ok)
	assert.Equal(t, 3100.0, price)
}

func TestQuoteSampler_AllFailuresAbsent(t *testing.T) {
	provider := new(MockQuoteProvider)
	provider.On("Configured").Return(true)
	provider.On("Search", mock.Anything, "MNL", "CEB", mock.Anything).Return(nil, errors.New("down"))

	sampler := NewQuoteSampler(provider, logrus.New())
	_, ok := sampler.MonthlyMinimum(context.Background(), "MNL", "CEB", models.Month{Year: 2025, Month: time.March})
	assert.False(t, ok)
}

func TestQuoteSampler_Unconfigured(t *testing.T) {
	provider := new(MockQuoteProvider)
	provider.On("Configured").Return(false)

	sampler := NewQuoteSampler(provider, logrus.New())
	assert.False(t, sampler.Available())

	_, ok := sampler.MonthlyMinimum(context.Background(), "MNL", "CEB", models.Month{Year: 2025, Month: time.March})
	assert.False(t, ok)
	// No network attempt happens when unconfigured.
	provider.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQuoteSampler_ClipsToMonthLength(t *testing.T) {
	provider := new(MockQuoteProvider)
	provider.On("Configured").Return(true)

	// February 2025 has 28 days; all sample days fit, but verify the exact
	// dates probed.
	month := models.Month{Year: 2025, Month: time.February}
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.February, 5)).Return(quotesAt(2800), nil)
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.February, 15)).Return(quotesAt(2700), nil)
	provider.On("Search", mock.Anything, "MNL", "CEB", day(2025, time.February, 25)).Return(quotesAt(2600), nil)

	sampler := NewQuoteSampler(provider, logrus.New())
	price, ok := sampler.MonthlyMinimum(context.Background(), "MNL", "CEB", month)
	assert.True(t, ok)
	assert.Equal(t, 2600.0, price)
}
