package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartlipad/smartlipad-go/internal/models"
)

// MockFareWriter mocks the fare write surface.
type MockFareWriter struct {
	mock.Mock
}

func (m *MockFareWriter) InsertSnapshot(ctx context.Context, snap *models.FareSnapshot) (bool, error) {
	args := m.Called(ctx, snap)
	return args.Bool(0), args.Error(1)
}

func TestIngestion_Batch(t *testing.T) {
	routes := new(MockRouteResolver)
	writer := new(MockFareWriter)
	svc := NewIngestionService(routes, writer, logrus.New())

	routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)
	writer.On("InsertSnapshot", mock.Anything, mock.MatchedBy(func(s *models.FareSnapshot) bool {
		return s.RouteID == 42 && s.CurrencyCode == "PHP"
	})).Return(true, nil).Once()
	writer.On("InsertSnapshot", mock.Anything, mock.Anything).Return(false, nil).Once()

	carrier := "5J"
	observations := []FareObservation{
		{Origin: "MNL", Destination: "CEB", AirlineCode: &carrier, DepartureDate: "2025-03-15", Price: decimal.NewFromFloat(2890.50)},
		{Origin: "MNL", Destination: "CEB", DepartureDate: "2025-03-16", Price: decimal.NewFromInt(3100)},
	}

	report, err := svc.IngestBatch(context.Background(), observations)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Received)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 0, report.Rejected)
	_, err = uuid.Parse(report.BatchID)
	assert.NoError(t, err)
}

func TestIngestion_RejectsBadObservations(t *testing.T) {
	routes := new(MockRouteResolver)
	writer := new(MockFareWriter)
	svc := NewIngestionService(routes, writer, logrus.New())

	routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)
	routes.On("Resolve", mock.Anything, "MNL", "XXX").Return(nil, nil)
	writer.On("InsertSnapshot", mock.Anything, mock.Anything).Return(true, nil).Once()

	observations := []FareObservation{
		{Origin: "MNL", Destination: "CEB", DepartureDate: "2025-03-15", Price: decimal.NewFromInt(2890)},
		{Origin: "MNL", Destination: "CEB", DepartureDate: "not-a-date", Price: decimal.NewFromInt(2890)},
		{Origin: "MNL", Destination: "CEB", DepartureDate: "2025-03-15", Price: decimal.NewFromInt(-5)},
		{Origin: "MNL", Destination: "XXX", DepartureDate: "2025-03-15", Price: decimal.NewFromInt(2890)},
	}

	report, err := svc.IngestBatch(context.Background(), observations)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Received)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 3, report.Rejected)
}

func TestIngestion_EmptyBatch(t *testing.T) {
	svc := NewIngestionService(new(MockRouteResolver), new(MockFareWriter), logrus.New())

	_, err := svc.IngestBatch(context.Background(), nil)
	assert.Error(t, err)
}
