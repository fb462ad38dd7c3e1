package app

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Orchestrator. Callers map them onto their
// transport with errors.Is / errors.As.
var (
	ErrMalformedRequest         = errors.New("malformed request")
	ErrUnauthenticated          = errors.New("unauthenticated")
	ErrForbidden                = errors.New("not a member of this workspace")
	ErrQuotaExceeded            = errors.New("insufficient credits")
	ErrDuplicateScan            = errors.New("scan id already used")
	ErrScanNotFound             = errors.New("scan not found")
	ErrPersistence              = errors.New("failed to persist scan results")
	ErrLedgerUnavailable        = errors.New("credit ledger unavailable")
	ErrAuthorizationUnavailable = errors.New("membership check unavailable")
	ErrShuttingDown             = errors.New("server is shutting down")
)

// ValidationError describes which request field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrMalformedRequest }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// QuotaError carries the cost of the refused scan. Available is -1 when the
// ledger cannot report a balance.
type QuotaError struct {
	Required  int
	Available int
}

func (e *QuotaError) Error() string {
	if e.Available < 0 {
		return fmt.Sprintf("insufficient credits: scan costs %d", e.Required)
	}
	return fmt.Sprintf("insufficient credits: scan costs %d, workspace has %d", e.Required, e.Available)
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }
