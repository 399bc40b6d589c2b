/*
errors.go - Centralized error types for the installment engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Invalid arguments - malformed dates, non-positive counts, negative amounts.
     Raised before any work is done; the input is never partially mutated.
  2. Soft refusals - edits on items that are no longer editable. The engine
     returns the unmodified schedule alongside a NotEditableError; UI callers
     treat it as "click ignored".
  3. Lookup failures - unknown schedule or installment (service layer).
  4. Lifecycle violations - manual transitions the state machine forbids.

NOT ERRORS:
  - Schedule imbalance is a TOTAL_MISMATCH issue from Validate.
  - Overpayment is CascadeResult.RemainingAmount > 0.

SEE ALSO:
  - validator.go: ValidationIssue codes
  - api/handlers.go: HTTP status mapping
*/
package installment

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotEditable is returned alongside an unmodified schedule when an edit
	// targets an item whose status or lock forbids editing.
	ErrNotEditable = errors.New("item not editable")

	// ErrScheduleNotFound is returned when a schedule id is unknown.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrItemNotFound is returned when an installment number is unknown.
	ErrItemNotFound = errors.New("installment not found")

	// ErrInvalidTransition is returned when a manual lifecycle event is not
	// allowed from the item's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidArgumentError names the offending input.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// NotEditableError describes a refused edit.
type NotEditableError struct {
	InstallmentNumber int
	Status            PaymentStatus
	Locked            bool
}

func (e *NotEditableError) Error() string {
	if e.Locked {
		return fmt.Sprintf("installment %d is locked", e.InstallmentNumber)
	}
	return fmt.Sprintf("installment %d is not editable in status %s", e.InstallmentNumber, e.Status)
}

func (e *NotEditableError) Unwrap() error {
	return ErrNotEditable
}

// TransitionError describes a refused manual status change.
type TransitionError struct {
	InstallmentNumber int
	Event             string
	From              PaymentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("installment %d: cannot %s from %s", e.InstallmentNumber, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func notEditable(it ScheduleItem) error {
	return &NotEditableError{InstallmentNumber: it.InstallmentNumber, Status: it.Status, Locked: it.Locked}
}

func invalidArg(field, format string, args ...any) error {
	return &InvalidArgumentError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsSoftRefusal returns true if the error means "edit ignored".
func IsSoftRefusal(err error) bool {
	return errors.Is(err, ErrNotEditable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing schedule or item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrItemNotFound)
}
