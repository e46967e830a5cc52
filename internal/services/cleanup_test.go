package services

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartlipad/smartlipad-go/internal/config"
	"github.com/smartlipad/smartlipad-go/internal/database"
)

func TestCleanupService_RunCleanup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewCleanupService(mock, database.NewForecastStore(mock), logrus.New())
	defer svc.Stop()

	mock.ExpectExec(`DELETE FROM fare_snapshots WHERE is_valid = false`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec(`DELETE FROM forecast_runs`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	err = svc.RunCleanup(config.CleanupConfig{
		InvalidFareRetentionHours: 720,
		ForecastRunRetentionHours: 168,
		CleanupIntervalMinutes:    60,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupService_StopCancelsContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewCleanupService(mock, database.NewForecastStore(mock), logrus.New())
	svc.Stop()

	select {
	case <-svc.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after Stop")
	}
}
