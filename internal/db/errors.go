package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyExists indicates a record violated a unique index, such as a
	// second plan for the same generation job.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// Writes retry on it; it only surfaces once the retries are used up.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Returns the original error
// if it's not a QueryError or doesn't match known patterns.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}

const (
	conflictAttempts = 4
	conflictBackoff  = 25 * time.Millisecond
)

// retryOnConflict runs write until it stops failing with a transaction
// conflict. Every write passed here is an idempotent UPSERT.
func retryOnConflict(ctx context.Context, write func() error) error {
	var err error
	for attempt := 1; attempt <= conflictAttempts; attempt++ {
		err = write()
		if !errors.Is(err, ErrTransactionConflict) || attempt == conflictAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * conflictBackoff):
		}
	}
	return err
}
