package types

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors for the error kinds enumerated in spec.md §7. Every storage
// and query package wraps its own failures in one of these via WrapStoreError
// or WrapGraphError (below) so that callers can classify errors with errors.Is regardless
// of which backend produced them.
var (
	// ErrNotFound indicates an unknown project, branch, product, or revision.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates a (project_id, name) branch conflict.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrValidation indicates an invalid global_id, invalid label, or missing
	// required field.
	ErrValidation = errors.New("validation error")

	// ErrExtraction indicates the IFC file was unreadable or malformed.
	ErrExtraction = errors.New("extraction error")

	// ErrStore indicates the relational or graph backend failed.
	ErrStore = errors.New("store error")

	// ErrConflict indicates an attempt to write to a branch under another
	// in-flight ingestion.
	ErrConflict = errors.New("branch ingestion already in progress")

	// ErrCancelled indicates a deadline expired or the caller aborted.
	ErrCancelled = errors.New("cancelled")
)

// WrapStoreError wraps a relational-store error with operation context,
// converting sql.ErrNoRows to ErrNotFound so callers never need to know
// which driver produced the underlying failure.
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// WrapGraphError wraps a graph-backend error with operation context. Neo4j's
// driver reports a missing node/relationship as a nil result rather than a
// distinguished error type, so graph packages call this only for genuine
// transport/protocol failures; "not found" is detected by the caller
// inspecting the result set instead.
func WrapGraphError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// Kind classifies an error into one of the kinds from spec.md §7, for
// boundary translation into {kind, message} responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicateName):
		return "DuplicateName"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrExtraction):
		return "ExtractionError"
	case errors.Is(err, ErrConflict):
		return "ConflictError"
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	case errors.Is(err, ErrStore):
		return "StoreError"
	default:
		return "StoreError"
	}
}
