/*
errors.go - Error taxonomy for the segmentation pipeline

PURPOSE:
  All error types in one place. Callers classify with errors.Is/errors.As.

ERROR CATEGORIES:
  1. Parse errors - Malformed raw field (date, quantity, price, customer id)
  2. Referential errors - Foreign key not present in the store yet
  3. Connectivity errors - Store or export target unreachable

POLICY:
  Parse errors are skipped and reported unless normalization runs in strict
  mode. Referential and connectivity errors abort the run. The only silent
  path is a duplicate primary key on upsert, which is a no-op.

SEE ALSO:
  - normalize.go: Produces ParseError
  - store.go: Produces ReferentialError
  - store/sqlstore: Produces ConnectivityError
*/
package retail

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrParse is returned when a raw field cannot be coerced to its type.
	ErrParse = errors.New("parse error")

	// ErrReferential is returned when a row references a key that is not stored.
	ErrReferential = errors.New("referential integrity violation")

	// ErrConnectivity is returned when a collaborator cannot be reached.
	ErrConnectivity = errors.New("connectivity error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ParseError describes a malformed field on a raw row. Row is 1-based.
type ParseError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: invalid %s %q: %v", e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("row %d: invalid %s %q", e.Row, e.Field, e.Value)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// ReferentialError reports a missing referenced key.
// Entity is the table being written, Ref the table that lacks Key.
type ReferentialError struct {
	Entity string
	Ref    string
	Key    string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s references missing %s %q", e.Entity, e.Ref, e.Key)
}

func (e *ReferentialError) Unwrap() error {
	return ErrReferential
}

// ConnectivityError wraps a failure to reach the store or an export target.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() []error {
	return []error{ErrConnectivity, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsParse(err error) bool        { return errors.Is(err, ErrParse) }
func IsReferential(err error) bool  { return errors.Is(err, ErrReferential) }
func IsConnectivity(err error) bool { return errors.Is(err, ErrConnectivity) }
