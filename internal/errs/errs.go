// Package errs defines the typed failure kinds the ledger surfaces to its
// callers, per spec §7. Each kind implements error and Unwrap so callers
// can use errors.As to recover structured context.
package errs

import (
	"fmt"
	"time"
)

// Kind classifies an error for transport-layer handling.
type Kind string

const (
	KindInvalidRepo    Kind = "invalid_repo"
	KindNoVersion      Kind = "no_version"
	KindNoSymbols      Kind = "no_symbols"
	KindPolicyDenied   Kind = "policy_denied"
	KindHandleExpired  Kind = "handle_expired"
	KindCorruption     Kind = "corruption"
	KindAdapterFailure Kind = "adapter_failure"
	KindInternal       Kind = "internal"
)

// LedgerError is the common shape for every typed failure the ledger
// returns from its exposed operations.
type LedgerError struct {
	Kind       Kind
	Message    string
	Underlying error
	Timestamp  time.Time

	// NextBestAction carries a hint for KindPolicyDenied failures: what the
	// caller could retry with (e.g. a smaller budget, a narrower entry set).
	NextBestAction string
}

func newErr(kind Kind, msg string, underlying error) *LedgerError {
	return &LedgerError{Kind: kind, Message: msg, Underlying: underlying, Timestamp: time.Now()}
}

// InvalidRepo reports an unknown repoId.
func InvalidRepo(repoID string) *LedgerError {
	return newErr(KindInvalidRepo, fmt.Sprintf("unknown repo %q", repoID), nil)
}

// NoVersion reports a repo that exists but has never been indexed.
func NoVersion(repoID string) *LedgerError {
	return newErr(KindNoVersion, fmt.Sprintf("repo %q has no indexed version", repoID), nil)
}

// NoSymbols reports a slice build that produced zero cards.
func NoSymbols() *LedgerError {
	return newErr(KindNoSymbols, "slice produced zero cards", nil)
}

// PolicyDenied reports a rejected budget or capability, with a retry hint.
func PolicyDenied(msg, nextBestAction string) *LedgerError {
	e := newErr(KindPolicyDenied, msg, nil)
	e.NextBestAction = nextBestAction
	return e
}

// HandleExpired reports a slice handle past its TTL.
func HandleExpired(handle string) *LedgerError {
	return newErr(KindHandleExpired, fmt.Sprintf("slice handle %q expired", handle), nil)
}

// Corruption reports a fatal storage invariant violation.
func Corruption(msg string, underlying error) *LedgerError {
	return newErr(KindCorruption, msg, underlying)
}

// AdapterFailure reports a parse/extraction failure isolated to one file.
func AdapterFailure(path string, underlying error) *LedgerError {
	return newErr(KindAdapterFailure, fmt.Sprintf("adapter failed for %s", path), underlying)
}

// Internal is the catch-all kind for anything else.
func Internal(msg string, underlying error) *LedgerError {
	return newErr(KindInternal, msg, underlying)
}

func (e *LedgerError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is match on Kind alone via a sentinel constructed with
// just a Kind set (no message/underlying).
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a bare LedgerError usable with errors.Is(err, Sentinel(KindX)).
func Sentinel(kind Kind) *LedgerError {
	return &LedgerError{Kind: kind}
}

// MultiError aggregates independent failures, used by the indexing pipeline
// to collect per-file AdapterFailure entries without aborting the run.
type MultiError struct {
	Errors []error
}

// NewMultiError filters nil errors and returns an aggregate. Returns nil if
// no non-nil errors remain.
func NewMultiError(errors []error) *MultiError {
	filtered := make([]error, 0, len(errors))
	for _, e := range errors {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors (first: %v)", len(m.Errors), m.Errors[0])
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}
