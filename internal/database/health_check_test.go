package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestHealthChecker_Basic(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	checker := NewHealthChecker("postgres", SQLPinger(db), quietLogger())
	assert.False(t, checker.IsHealthy())

	require.NoError(t, checker.Check(context.Background()))
	assert.True(t, checker.IsHealthy())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_FailureAndRecovery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	checker := NewHealthChecker("postgres", SQLPinger(db), quietLogger())
	ctx := context.Background()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, checker.Check(ctx))
	assert.False(t, checker.IsHealthy())

	result := checker.GetHealthResult()
	assert.Equal(t, "postgres", result.Name)
	assert.Contains(t, result.LastError, "connection refused")

	mock.ExpectPing()
	require.NoError(t, checker.Check(ctx))
	assert.True(t, checker.IsHealthy())
	assert.Empty(t, checker.GetHealthResult().LastError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_PingFunc(t *testing.T) {
	var calls int
	checker := NewHealthChecker("redis", PingFunc(func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}), nil)

	require.NoError(t, checker.Check(context.Background()))
	assert.Equal(t, 1, calls)
	assert.NotEmpty(t, checker.GetHealthResult().ResponseTime)
}

func TestHealthChecker_BackgroundMonitoring(t *testing.T) {
	checks := make(chan struct{}, 16)
	checker := NewHealthChecker("redis", PingFunc(func(context.Context) error {
		select {
		case checks <- struct{}{}:
		default:
		}
		return nil
	}), quietLogger())
	checker.SetCheckInterval(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		checker.Start(context.Background())
		close(done)
	}()

	// 启动时立即检查一次，之后按间隔检查
	for i := 0; i < 2; i++ {
		select {
		case <-checks:
		case <-time.After(time.Second):
			t.Fatal("health check did not run")
		}
	}
	assert.True(t, checker.IsHealthy())

	require.Eventually(t, func() bool {
		checker.Stop()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestHealthChecker_StopsOnContextCancel(t *testing.T) {
	checker := NewHealthChecker("redis", PingFunc(func(context.Context) error { return nil }), quietLogger())
	checker.SetCheckInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health checker did not stop")
	}
}

func TestHealthChecker_WaitForHealthy(t *testing.T) {
	healthy := make(chan struct{})
	checker := NewHealthChecker("redis", PingFunc(func(context.Context) error {
		select {
		case <-healthy:
			return nil
		default:
			return errors.New("not yet")
		}
	}), quietLogger())
	ctx := context.Background()

	require.Error(t, checker.Check(ctx))
	assert.ErrorIs(t, checker.WaitForHealthy(ctx, 30*time.Millisecond), context.DeadlineExceeded)

	close(healthy)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = checker.Check(ctx)
	}()

	assert.NoError(t, checker.WaitForHealthy(ctx, time.Second))
}
