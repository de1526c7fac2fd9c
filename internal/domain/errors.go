package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrRunNotFound         = errors.New("reconciliation run not found")
	ErrInvalidExportFormat = errors.New("unsupported export format")
	ErrArchiveDisabled     = errors.New("report archiving is disabled")
	ErrReportNotArchived   = errors.New("report has not been archived for this run")
	ErrRunInProgress       = errors.New("an identical batch is already being reconciled")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrIdentityCollision   = errors.New("identity collision")
	ErrScoringInputInvalid = errors.New("scoring input invalid")
	ErrBatchTooLarge       = errors.New("batch exceeds maximum allowed records")
)

// MalformedRecordError reports a raw record the normalizer could not accept.
type MalformedRecordError struct {
	SourceFile string
	RowIndex   int
	Field      string
	Reason     string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: %s row %d: %s: %s", ErrMalformedRecord, e.SourceFile, e.RowIndex, e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// ScoringInputError reports a mismatch whose vendor has no invoice history.
type ScoringInputError struct {
	GSTIN string
	Key   IdentityKey
}

func (e *ScoringInputError) Error() string {
	return fmt.Sprintf("%s: vendor %s has no invoice history (invoice %s)", ErrScoringInputInvalid, e.GSTIN, e.Key)
}

func (e *ScoringInputError) Unwrap() error { return ErrScoringInputInvalid }
