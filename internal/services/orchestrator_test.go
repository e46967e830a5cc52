package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartlipad/smartlipad-go/internal/config"
	"github.com/smartlipad/smartlipad-go/internal/models"
	"github.com/smartlipad/smartlipad-go/internal/utils"
)

// MockRouteResolver mocks route resolution.
type MockRouteResolver struct {
	mock.Mock
}

func (m *MockRouteResolver) Resolve(ctx context.Context, origin, destination string) (*models.Route, error) {
	args := m.Called(ctx, origin, destination)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Route), args.Error(1)
}

// MockForecaster mocks the model source.
type MockForecaster struct {
	mock.Mock
}

func (m *MockForecaster) ForecastMonthly(ctx context.Context, routeID int, months []models.Month) ([]models.MonthlyForecast, error) {
	args := m.Called(ctx, routeID, months)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MonthlyForecast), args.Error(1)
}

// MockSampler mocks the live quote source.
type MockSampler struct {
	mock.Mock
}

func (m *MockSampler) Available() bool {
	return m.Called().Bool(0)
}

func (m *MockSampler) MonthlyMinimum(ctx context.Context, origin, destination string, month models.Month) (float64, bool) {
	args := m.Called(ctx, origin, destination, month)
	return args.Get(0).(float64), args.Bool(1)
}

// MockFareReader mocks fare history access.
type MockFareReader struct {
	mock.Mock
}

func (m *MockFareReader) DailyMinimums(ctx context.Context, routeID int, from, to time.Time) ([]models.DailyMinPrice, error) {
	args := m.Called(ctx, routeID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DailyMinPrice), args.Error(1)
}

// MockRunStore mocks forecast persistence.
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) CreateRun(ctx context.Context, run *models.ForecastRun, results []models.MonthlyForecast) (int64, error) {
	args := m.Called(ctx, run, results)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRunStore) FindCachedResults(ctx context.Context, routeID int, fromMonth models.Month) ([]models.MonthlyForecast, error) {
	args := m.Called(ctx, routeID, fromMonth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MonthlyForecast), args.Error(1)
}

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		ModelEnabled:    true,
		SeasonalityMode: "additive",
		MinTrainingDays: 30,
		LookbackDays:    730,
		SmoothingWindow: 7,
		BackfillAlpha:   0.7,
		SimpleBand:      0.10,
		DefaultMonths:   12,
		MaxMonths:       24,
		CurrencyCode:    "PHP",
	}
}

func testRoute() *models.Route {
	return &models.Route{
		ID:              42,
		OriginIATA:      "MNL",
		DestinationIATA: "CEB",
		Active:          true,
	}
}

type orchestratorFixture struct {
	routes     *MockRouteResolver
	forecaster *MockForecaster
	sampler    *MockSampler
	fares      *MockFareReader
	store      *MockRunStore
	orch       *ForecastOrchestrator
}

func newOrchestratorFixture(cfg config.ForecastConfig) *orchestratorFixture {
	f := &orchestratorFixture{
		routes:     new(MockRouteResolver),
		forecaster: new(MockForecaster),
		sampler:    new(MockSampler),
		fares:      new(MockFareReader),
		store:      new(MockRunStore),
	}
	f.orch = NewForecastOrchestrator(
		f.routes, f.forecaster, f.sampler,
		NewSeasonalBackfillEstimator(cfg.BackfillAlpha, cfg.SimpleBand),
		f.fares, f.store, NewRequestRegistry(), cfg, logrus.New(),
	)
	f.orch.now = func() time.Time { return time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestOrchestrator_RouteNotFound(t *testing.T) {
	f := newOrchestratorFixture(testForecastConfig())
	f.routes.On("Resolve", mock.Anything, "MNL", "XXX").Return(nil, nil)

	_, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "XXX", Months: 3})
	assert.ErrorIs(t, err, utils.ErrRouteNotFound)
}

func TestOrchestrator_InactiveRouteNotFound(t *testing.T) {
	f := newOrchestratorFixture(testForecastConfig())
	route := testRoute()
	route.Active = false
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(route, nil)

	_, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB", Months: 3})
	assert.ErrorIs(t, err, utils.ErrRouteNotFound)
}

func TestOrchestrator_HorizonValidation(t *testing.T) {
	f := newOrchestratorFixture(testForecastConfig())

	_, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB", Months: 25})
	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestOrchestrator_NoData(t *testing.T) {
	cfg := testForecastConfig()
	cfg.ModelEnabled = false
	f := newOrchestratorFixture(cfg)

	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)
	f.sampler.On("Available").Return(false)
	f.fares.On("DailyMinimums", mock.Anything, 42, mock.Anything, mock.Anything).Return([]models.DailyMinPrice{}, nil)

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB", Months: 3})
	require.NoError(t, err)

	assert.Equal(t, "none", result.Source)
	assert.False(t, result.Superseded)
	assert.Equal(t, 0.0, result.AvgFare)
	assert.Nil(t, result.BestTime)
	assert.Nil(t, result.MostExpensive)
	require.Len(t, result.Monthly, 3)
	for _, m := range result.Monthly {
		assert.Nil(t, m.AvgFare)
	}
	f.store.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_BestWorstTieBreak(t *testing.T) {
	f := newOrchestratorFixture(testForecastConfig())
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)

	months := models.MonthsFrom(models.Month{Year: 2025, Month: time.January}, 3)
	f.forecaster.On("ForecastMonthly", mock.Anything, 42, months).Return([]models.MonthlyForecast{
		{Month: months[0], Point: 3000, Lower: 2700, Upper: 3300, CurrencyCode: "PHP", Source: "model"},
		{Month: months[1], Point: 3000, Lower: 2700, Upper: 3300, CurrencyCode: "PHP", Source: "model"},
		{Month: months[2], Point: 5000, Lower: 4500, Upper: 5500, CurrencyCode: "PHP", Source: "model"},
	}, nil)

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB", Months: 3})
	require.NoError(t, err)

	require.NotNil(t, result.BestTime)
	assert.Equal(t, "2025-01", result.BestTime.Month)
	assert.Equal(t, 3000.0, result.BestTime.Price)
	require.NotNil(t, result.MostExpensive)
	assert.Equal(t, "2025-03", result.MostExpensive.Month)
	assert.Equal(t, "model", result.Source)
	assert.InDelta(t, (3000+3000+5000)/3.0, result.AvgFare, 0.001)
	// Model supplied everything; the sampler is never consulted and no
	// extra run is persisted.
	f.sampler.AssertNotCalled(t, "Available")
	f.sampler.AssertNotCalled(t, "MonthlyMinimum", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_SampledPlusBackfillPersistsRun(t *testing.T) {
	cfg := testForecastConfig()
	cfg.ModelEnabled = false
	f := newOrchestratorFixture(cfg)
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)

	months := models.MonthsFrom(models.Month{Year: 2025, Month: time.January}, 2)
	f.sampler.On("Available").Return(true)
	f.sampler.On("MonthlyMinimum", mock.Anything, "MNL", "CEB", months[0]).Return(2890.0, true)
	f.sampler.On("MonthlyMinimum", mock.Anything, "MNL", "CEB", months[1]).Return(0.0, false)

	// Backfill anchors February from history.
	var series []models.DailyMinPrice
	for m := time.January; m <= time.December; m++ {
		series = append(series, models.DailyMinPrice{Date: day(2024, m, 10), Price: 3000})
	}
	f.fares.On("DailyMinimums", mock.Anything, 42, mock.Anything, mock.Anything).Return(series, nil)
	f.store.On("CreateRun", mock.Anything, mock.MatchedBy(func(run *models.ForecastRun) bool {
		return run.ModelName == "amadeus+db" && run.RouteID == 42 && run.Status == models.RunStatusSuccess
	}), mock.Anything).Return(int64(1), nil)

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB", Months: 2})
	require.NoError(t, err)

	assert.Equal(t, "amadeus+db", result.Source)
	require.Len(t, result.Monthly, 2)
	require.NotNil(t, result.Monthly[0].AvgFare)
	assert.Equal(t, 2890.0, *result.Monthly[0].AvgFare)
	require.NotNil(t, result.Monthly[1].AvgFare)
	assert.Equal(t, 3000.0, *result.Monthly[1].AvgFare)
	f.store.AssertExpectations(t)
}

func TestOrchestrator_PersistenceFailureStillReturnsResult(t *testing.T) {
	cfg := testForecastConfig()
	cfg.ModelEnabled = false
	f := newOrchestratorFixture(cfg)
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)

	months := models.MonthsFrom(models.Month{Year: 2025, Month: time.January}, 1)
	f.sampler.On("Available").Return(true)
	f.sampler.On("MonthlyMinimum", mock.Anything, "MNL", "CEB", months[0]).Return(2890.0, true)
	f.store.On("CreateRun", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB", Months: 1})
	require.NoError(t, err)
	require.NotNil(t, result.Monthly[0].AvgFare)
	assert.Equal(t, 2890.0, *result.Monthly[0].AvgFare)
}

func TestOrchestrator_ModelErrorFallsThrough(t *testing.T) {
	f := newOrchestratorFixture(testForecastConfig())
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)
	f.forecaster.On("ForecastMonthly", mock.Anything, 42, mock.Anything).Return(nil, errors.New("fit blew up"))
	f.sampler.On("Available").Return(false)
	f.fares.On("DailyMinimums", mock.Anything, 42, mock.Anything, mock.Anything).Return([]models.DailyMinPrice{}, nil)

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB", Months: 2})
	require.NoError(t, err)
	assert.Equal(t, "none", result.Source)
}

func TestOrchestrator_Superseded(t *testing.T) {
	f := newOrchestratorFixture(testForecastConfig())
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)

	// While request A's model step runs, request B registers a newer token
	// for the same pair. A must notice at its next checkpoint.
	f.forecaster.On("ForecastMonthly", mock.Anything, 42, mock.Anything).Run(func(args mock.Arguments) {
		f.orch.registry.Register("MNL", "CEB", "B")
	}).Return([]models.MonthlyForecast(nil), nil)

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{
		Origin: "MNL", Destination: "CEB", Months: 3, FreshnessToken: "A",
	})
	require.NoError(t, err)

	assert.True(t, result.Superseded)
	assert.Empty(t, result.Monthly)
	assert.Nil(t, result.BestTime)
	f.sampler.AssertNotCalled(t, "MonthlyMinimum", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_SupersededMidSampling(t *testing.T) {
	cfg := testForecastConfig()
	cfg.ModelEnabled = false
	f := newOrchestratorFixture(cfg)
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)

	months := models.MonthsFrom(models.Month{Year: 2025, Month: time.January}, 3)
	f.sampler.On("Available").Return(true)
	f.sampler.On("MonthlyMinimum", mock.Anything, "MNL", "CEB", months[0]).Run(func(args mock.Arguments) {
		f.orch.registry.Register("MNL", "CEB", "B")
	}).Return(2890.0, true)

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{
		Origin: "MNL", Destination: "CEB", Months: 3, FreshnessToken: "A",
	})
	require.NoError(t, err)

	assert.True(t, result.Superseded)
	// Later months were never sampled.
	f.sampler.AssertNotCalled(t, "MonthlyMinimum", mock.Anything, "MNL", "CEB", months[1])
}

func TestOrchestrator_DefaultHorizon(t *testing.T) {
	cfg := testForecastConfig()
	cfg.ModelEnabled = false
	f := newOrchestratorFixture(cfg)
	f.routes.On("Resolve", mock.Anything, "MNL", "CEB").Return(testRoute(), nil)
	f.sampler.On("Available").Return(false)
	f.fares.On("DailyMinimums", mock.Anything, 42, mock.Anything, mock.Anything).Return([]models.DailyMinPrice{}, nil)

	result, err := f.orch.Forecast(context.Background(), ForecastRequest{Origin: "MNL", Destination: "CEB"})
	require.NoError(t, err)
	assert.Len(t, result.Monthly, cfg.DefaultMonths)
}
