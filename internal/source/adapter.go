// Package source defines the contract between the engine and per-platform
// booking system integrations, and the registry that holds them.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opencourt/courtwatch/internal/model"
)

// DateRange bounds a snapshot fetch. Both ends are whole days, inclusive.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Adapter is implemented once per external booking platform. FetchSnapshot
// returns a fully populated snapshot for one source, or an *Error describing
// why the fetch failed.
type Adapter interface {
	FetchSnapshot(ctx context.Context, sourceID string, rng DateRange) (*model.Snapshot, error)
}

// ErrorKind classifies source failures.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "source_unavailable"
	KindTimeout     ErrorKind = "source_timeout"
	KindDataInvalid ErrorKind = "source_data_invalid"
)

// Error is the transient, per-source failure taxonomy. One source failing
// never aborts the cycle for other sources.
type Error struct {
	Kind     ErrorKind
	SourceID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.SourceID, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.SourceID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Unavailable wraps err as a source-unavailable failure.
func Unavailable(sourceID string, err error) *Error {
	return &Error{Kind: KindUnavailable, SourceID: sourceID, Err: err}
}

// Timeout wraps err as a source-timeout failure.
func Timeout(sourceID string, err error) *Error {
	return &Error{Kind: KindTimeout, SourceID: sourceID, Err: err}
}

// DataInvalid wraps err as a malformed-snapshot failure.
func DataInvalid(sourceID string, err error) *Error {
	return &Error{Kind: KindDataInvalid, SourceID: sourceID, Err: err}
}

// KindOf extracts the error kind when err is a source error.
func KindOf(err error) (ErrorKind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
