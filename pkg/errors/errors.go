// Package errors provides structured error handling for genpool
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeOutOfBounds represents a handle or index beyond the record count
	ErrorTypeOutOfBounds ErrorType = "out_of_bounds"
	// ErrorTypeDanglingHandle represents a handle whose generation no longer matches its slot
	ErrorTypeDanglingHandle ErrorType = "dangling_handle"
	// ErrorTypeEmptySlot represents access to a vacant or reserved slot
	ErrorTypeEmptySlot ErrorType = "empty_slot"
	// ErrorTypeDoubleFree represents freeing a slot that is already vacant
	ErrorTypeDoubleFree ErrorType = "double_free"
	// ErrorTypeOccupied represents placing a value into a slot that holds one
	ErrorTypeOccupied ErrorType = "occupied"
	// ErrorTypeReservedSlot represents a slot pinned by an outstanding ticket
	ErrorTypeReservedSlot ErrorType = "reserved_slot"
	// ErrorTypeOverlappingBorrow represents the same slot requested twice for exclusive access
	ErrorTypeOverlappingBorrow ErrorType = "overlapping_borrow"
	// ErrorTypeMutablyBorrowed represents a slot currently held by an exclusive guard
	ErrorTypeMutablyBorrowed ErrorType = "mutably_borrowed"
	// ErrorTypeImmutablyBorrowed represents a slot currently held by shared guards
	ErrorTypeImmutablyBorrowed ErrorType = "immutably_borrowed"
	// ErrorTypeNoComponent represents a payload that does not expose the requested facet
	ErrorTypeNoComponent ErrorType = "no_component"
	// ErrorTypeTicket represents misuse of a reservation ticket
	ErrorTypeTicket ErrorType = "ticket"
	// ErrorTypeUnresolvedTicket represents reservations left outstanding at teardown
	ErrorTypeUnresolvedTicket ErrorType = "unresolved_ticket"
	// ErrorTypeLocked represents pool access while a borrow session or callback holds it
	ErrorTypeLocked ErrorType = "locked"
	// ErrorTypeCapacity represents exhaustion of the 32-bit index or generation space
	ErrorTypeCapacity ErrorType = "capacity"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents malformed persisted data
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeCapability represents unsupported features
	ErrorTypeCapability ErrorType = "capability"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsUsage returns true if the error reports a caller bug rather than an
// expected runtime condition. The pool panics with these.
func IsUsage(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeOutOfBounds, ErrorTypeDanglingHandle, ErrorTypeEmptySlot,
		ErrorTypeDoubleFree, ErrorTypeReservedSlot, ErrorTypeOverlappingBorrow,
		ErrorTypeTicket, ErrorTypeUnresolvedTicket, ErrorTypeLocked, ErrorTypeCapacity:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// FromPanic converts a recovered panic value into a structured error.
// It returns false when the value is not an error produced by this package.
func FromPanic(v interface{}) (*Error, bool) {
	err, ok := v.(error)
	if !ok {
		return nil, false
	}
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
