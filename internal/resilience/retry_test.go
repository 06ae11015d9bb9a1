package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// storeRetry mirrors the store settings with sleeps shortened for tests.
func storeRetry(attempts int) RetryConfig {
	cfg := FromRetryConfig(attempts, 1, 1)
	cfg.JitterFraction = 0
	return cfg
}

func TestDo_RetriesLostConnection(t *testing.T) {
	var retries []int
	cfg := storeRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { retries = append(retries, attempt) }

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return eris.Wrap(&pgconn.PgError{Code: "08006", Message: "connection failure"}, "postgres: upsert")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_ConstraintViolationIsFinal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), storeRetry(5), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterConfiguredAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), storeRetry(2), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	})
	assert.Equal(t, 2, calls)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "40001", pgErr.Code)
}

func TestDoVal_ReturnsDocumentBodyAfterDeadlock(t *testing.T) {
	calls := 0
	body, err := DoVal(context.Background(), storeRetry(3), func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return []byte(`{"loan_requests":[]}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"loan_requests":[]}`, string(body))
}

func TestDoVal_ZeroBodyOnFailure(t *testing.T) {
	body, err := DoVal(context.Background(), storeRetry(1), func(context.Context) ([]byte, error) {
		return []byte("partial"), errors.New("relation \"documents\" does not exist")
	})
	require.Error(t, err)
	assert.Nil(t, body)
}

func TestDo_CancelledCallerStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := FromRetryConfig(5, 1000, 1000)
	cfg.OnRetry = func(int, error) { cancel() }

	calls := 0
	start := time.Now()
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("server closed the connection"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, IsTransient(err), "the last store error is returned, not the context error")
}

func TestComputeBackoff_StoreSettings(t *testing.T) {
	cfg := applyDefaults(FromRetryConfig(5, 100, 250))
	cfg.JitterFraction = 0

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 250*time.Millisecond, computeBackoff(2, cfg))
	assert.Equal(t, 250*time.Millisecond, computeBackoff(4, cfg))
}

func TestComputeBackoff_JitterStaysInBand(t *testing.T) {
	cfg := applyDefaults(FromRetryConfig(3, 100, 0))
	for range 50 {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestRetryLogger_TagsStoreOperation(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	RetryLogger("postgres", "save")(2, errors.New("connection reset by peer"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "postgres", fields["service"])
	assert.Equal(t, "save", fields["operation"])
	assert.Equal(t, int64(2), fields["attempt"])
	assert.Equal(t, "connection reset by peer", fields["error"])
}
