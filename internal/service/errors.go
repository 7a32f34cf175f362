package service

import (
	"errors"

	"github.com/raphaelgruber/fitplan/internal/extract"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/llm"
	"github.com/raphaelgruber/fitplan/internal/parser"
)

// Sentinel errors for service operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation means caller input was malformed. No job is created.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedMedia means an uploaded file is not PDF, Markdown or plain text.
	ErrUnsupportedMedia = parser.ErrUnsupportedType

	// ErrNoDocumentsFound means retrieval returned nothing for the selected files.
	ErrNoDocumentsFound = errors.New("no relevant documents found")

	// ErrExtraction and ErrSchemaValidation are recovered by the fallback
	// program and never fail a job.
	ErrExtraction       = extract.ErrExtraction
	ErrSchemaValidation = extract.ErrSchemaValidation

	// ErrPersistence means the final plan could not be saved.
	ErrPersistence = errors.New("persist plan")

	// ErrProvider wraps failures of embedding, model or storage calls.
	ErrProvider = errors.New("provider call failed")

	// ErrNotFound means the requested job, upload or plan does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBusy means a batch is already being processed.
	ErrBusy = errors.New("processing already in progress")
)

// ErrorCategory classifies errors for structured error bodies.
type ErrorCategory string

const (
	CategoryValidation       ErrorCategory = "validation"
	CategoryUnsupportedMedia ErrorCategory = "unsupported_media"
	CategoryRetrievalEmpty   ErrorCategory = "retrieval_empty"
	CategoryExtraction       ErrorCategory = "extraction"
	CategorySchemaValidation ErrorCategory = "schema_validation"
	CategoryPersistence      ErrorCategory = "persistence"
	CategoryProvider         ErrorCategory = "provider"
	CategoryNotFound         ErrorCategory = "not_found"
	CategoryConflict         ErrorCategory = "conflict"
	CategoryInternal         ErrorCategory = "internal"
)

// Category maps err onto the error taxonomy.
func Category(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrUnsupportedMedia):
		return CategoryUnsupportedMedia
	case errors.Is(err, ErrNoDocumentsFound):
		return CategoryRetrievalEmpty
	case errors.Is(err, ErrPersistence):
		return CategoryPersistence
	case errors.Is(err, ErrSchemaValidation):
		return CategorySchemaValidation
	case errors.Is(err, ErrExtraction):
		return CategoryExtraction
	case errors.Is(err, ErrProvider), errors.Is(err, llm.ErrFatalAPI):
		return CategoryProvider
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrBusy), errors.Is(err, jobs.ErrDuplicateJob):
		return CategoryConflict
	default:
		return CategoryInternal
	}
}
