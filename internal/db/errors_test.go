package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"unique index", &surrealdb.QueryError{Message: "Database index `plan_job` already contains 'j1'"}, ErrAlreadyExists},
		{"conflict", &surrealdb.QueryError{Message: "Transaction conflict: Resource busy"}, ErrTransactionConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapQueryError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	plain := errors.New("connection reset")
	assert.Equal(t, plain, wrapQueryError(plain))
}

func TestRetryOnConflict(t *testing.T) {
	conflict := wrapQueryError(&surrealdb.QueryError{Message: "Transaction conflict"})

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := retryOnConflict(context.Background(), func() error {
			calls++
			if calls < 3 {
				return conflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := retryOnConflict(context.Background(), func() error {
			calls++
			return conflict
		})
		assert.ErrorIs(t, err, ErrTransactionConflict)
		assert.Equal(t, conflictAttempts, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		err := retryOnConflict(context.Background(), func() error {
			calls++
			return ErrAlreadyExists
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retryOnConflict(ctx, func() error {
			calls++
			cancel()
			return conflict
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrTransactionConflict)
		assert.Equal(t, 1, calls)
	})
}
