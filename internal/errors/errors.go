// Package errors provides centralized error definitions and error handling utilities
// for syt. It defines the lock-protocol error taxonomy, error constructors with
// entity context, non-fatal warnings, and classification helpers that map errors
// to process exit codes.
//
// # Error Types
//
// Protocol errors are terminal for an invocation and guarantee that no lock
// annotation was mutated:
//   - ValidationError: the entity cannot take part in the protocol (unsupported kind, broken tree)
//   - StateConflictError: already checked out, not checked out, ancestor or descendant checked out
//   - AuthorizationError: force without administrator rights, check-in by a non-owner
//   - NotFoundError: missing pointer file, manifest, or entity
//
// Repository errors wrap any unexpected failure of the remote repository:
//   - RepositoryError: retryable when the failure is transient
//
// A forced override never fails; the conflict it overrode is downgraded to a
// Warning and reported alongside the result.
//
// # Usage
//
//	err := errors.NewStateConflictError(errors.ConflictAncestor).
//		WithEntity("syn12", "Analysis").
//		WithLocker("3345", "alice")
//
//	if errors.Is(err, errors.ErrAncestorCheckedOut) { ... }
//
//	var conflict *errors.StateConflictError
//	if errors.As(err, &conflict) { ... }
//
//	os.Exit(errors.ExitCode(err))
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lock-state sentinel errors
var (
	// ErrAlreadyCheckedOut indicates the target entity already carries a lock.
	ErrAlreadyCheckedOut = New("entity already checked out")
	// ErrNotCheckedOut indicates the target entity carries no lock.
	ErrNotCheckedOut = New("entity not checked out")
	// ErrAncestorCheckedOut indicates an ancestor up to the project is locked.
	ErrAncestorCheckedOut = New("parent entity checked out")
	// ErrDescendantCheckedOut indicates an entity below the target is locked.
	ErrDescendantCheckedOut = New("child entity checked out")
)

// Authorization sentinel errors
var (
	// ErrAdminRequired indicates a forced operation by a user without full project rights.
	ErrAdminRequired = New("administrator privileges required")
	// ErrNotOwner indicates a check-in by someone other than the recorded locker.
	ErrNotOwner = New("entity checked out by another user")
	// ErrUnauthenticated indicates credentials the repository did not accept.
	ErrUnauthenticated = New("not authenticated")
)

// Validation sentinel errors
var (
	// ErrUnsupportedKind indicates an entity that is not a Project, Folder, or File.
	ErrUnsupportedKind = New("only projects, folders, and files can be checked in/out")
	// ErrBrokenTree indicates a parent chain that never reaches a project.
	ErrBrokenTree = New("entity tree is broken")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrRepository indicates a failure reported by the remote repository.
	ErrRepository = New("repository failure")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SytError is the base interface for all syt errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type SytError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// describeEntity renders an entity as `"name" (id)`, tolerating missing parts.
func describeEntity(id, name string) string {
	switch {
	case id != "" && name != "":
		return fmt.Sprintf("%q (%s)", name, id)
	case id != "":
		return id
	case name != "":
		return fmt.Sprintf("%q", name)
	default:
		return "entity"
	}
}

// -----------------------------------------------------------------------------
// Protocol Errors
// -----------------------------------------------------------------------------

// ConflictKind identifies which lock-state precondition failed.
type ConflictKind string

const (
	// ConflictAlreadyCheckedOut: checkout of an entity that is already locked.
	ConflictAlreadyCheckedOut ConflictKind = "already_checked_out"
	// ConflictNotCheckedOut: checkin of an entity that is not locked.
	ConflictNotCheckedOut ConflictKind = "not_checked_out"
	// ConflictAncestor: an ancestor up to and including the project is locked.
	ConflictAncestor ConflictKind = "ancestor_checked_out"
	// ConflictDescendant: an entity below the target is locked.
	ConflictDescendant ConflictKind = "descendant_checked_out"
)

func (k ConflictKind) sentinel() error {
	switch k {
	case ConflictAlreadyCheckedOut:
		return ErrAlreadyCheckedOut
	case ConflictNotCheckedOut:
		return ErrNotCheckedOut
	case ConflictAncestor:
		return ErrAncestorCheckedOut
	case ConflictDescendant:
		return ErrDescendantCheckedOut
	default:
		return nil
	}
}

// StateConflictError reports a lock-state precondition that does not hold.
// EntityID and EntityName name the entity whose lock caused the conflict,
// which for ancestor and descendant conflicts is not the target itself.
//
// Example:
//
//	err := errors.NewStateConflictError(errors.ConflictDescendant).
//		WithEntity("syn7", "data.csv").WithLocker("11", "bob")
//	fmt.Println(err) // `child "data.csv" (syn7) is checked out by bob`
type StateConflictError struct {
	baseError
	Conflict   ConflictKind
	EntityID   string
	EntityName string
	LockerID   string
	LockerName string
}

// NewStateConflictError creates a new StateConflictError of the given kind.
func NewStateConflictError(kind ConflictKind) *StateConflictError {
	return &StateConflictError{
		baseError: baseError{
			message:    string(kind),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Conflict: kind,
	}
}

// WithEntity records the entity whose lock state caused the conflict.
func (e *StateConflictError) WithEntity(id, name string) *StateConflictError {
	e.EntityID = id
	e.EntityName = name
	return e
}

// WithLocker records the user holding the conflicting lock.
func (e *StateConflictError) WithLocker(id, name string) *StateConflictError {
	e.LockerID = id
	e.LockerName = name
	return e
}

// Error returns the formatted error message.
func (e *StateConflictError) Error() string {
	subject := describeEntity(e.EntityID, e.EntityName)
	locker := e.LockerName
	if locker == "" {
		locker = e.LockerID
	}
	switch e.Conflict {
	case ConflictAlreadyCheckedOut:
		return fmt.Sprintf("entity %s is already checked out by %s", subject, locker)
	case ConflictNotCheckedOut:
		return fmt.Sprintf("entity %s is not checked out", subject)
	case ConflictAncestor:
		return fmt.Sprintf("parent %s is checked out by %s", subject, locker)
	case ConflictDescendant:
		return fmt.Sprintf("child %s is checked out by %s", subject, locker)
	default:
		return fmt.Sprintf("lock state conflict on %s", subject)
	}
}

// Is checks if this error matches the target.
func (e *StateConflictError) Is(target error) bool {
	if _, ok := target.(*StateConflictError); ok {
		return true
	}
	if sentinel := e.Conflict.sentinel(); sentinel != nil && target == sentinel {
		return true
	}
	return e.baseError.Is(target)
}

// AuthReason identifies why an operation was refused.
type AuthReason string

const (
	// AuthAdminRequired: force was requested without full project rights.
	AuthAdminRequired AuthReason = "admin_required"
	// AuthNotOwner: checkin by a user other than the recorded locker.
	AuthNotOwner AuthReason = "not_owner"
	// AuthUnauthenticated: the repository rejected the credentials.
	AuthUnauthenticated AuthReason = "unauthenticated"
)

// AuthorizationError reports an operation the acting user may not perform.
//
// Example:
//
//	err := errors.NewAuthorizationError(errors.AuthNotOwner, "check-in").
//		WithEntity("syn2", "A").WithLocker("42", "alice")
//	fmt.Println(err) // `"A" (syn2) can only be checked in by alice`
type AuthorizationError struct {
	baseError
	Reason     AuthReason
	Action     string
	EntityID   string
	EntityName string
	LockerID   string
	LockerName string
}

// NewAuthorizationError creates a new AuthorizationError for the given action
// (for example "check-out" or "check-in").
func NewAuthorizationError(reason AuthReason, action string) *AuthorizationError {
	return &AuthorizationError{
		baseError: baseError{
			message:    string(reason),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Reason: reason,
		Action: action,
	}
}

// WithEntity records the entity the operation targeted.
func (e *AuthorizationError) WithEntity(id, name string) *AuthorizationError {
	e.EntityID = id
	e.EntityName = name
	return e
}

// WithLocker records the user holding the lock.
func (e *AuthorizationError) WithLocker(id, name string) *AuthorizationError {
	e.LockerID = id
	e.LockerName = name
	return e
}

// WithCause adds a cause to the error.
func (e *AuthorizationError) WithCause(cause error) *AuthorizationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AuthorizationError) Error() string {
	subject := describeEntity(e.EntityID, e.EntityName)
	switch e.Reason {
	case AuthAdminRequired:
		return fmt.Sprintf("must have administrator privileges to force %s of %s", e.Action, subject)
	case AuthNotOwner:
		locker := e.LockerName
		if locker == "" {
			locker = e.LockerID
		}
		return fmt.Sprintf("%s can only be %s by %s", subject, pastTense(e.Action), locker)
	case AuthUnauthenticated:
		if e.cause != nil {
			return fmt.Sprintf("could not log in to the repository: %v", e.cause)
		}
		return "could not log in to the repository"
	default:
		return fmt.Sprintf("not authorized to %s %s", e.Action, subject)
	}
}

// pastTense turns "check-in" into "checked in".
func pastTense(action string) string {
	verb, particle, ok := strings.Cut(action, "-")
	if !ok {
		return action + "ed"
	}
	return verb + "ed " + particle
}

// Is checks if this error matches the target.
func (e *AuthorizationError) Is(target error) bool {
	if _, ok := target.(*AuthorizationError); ok {
		return true
	}
	switch e.Reason {
	case AuthAdminRequired:
		if target == ErrAdminRequired {
			return true
		}
	case AuthNotOwner:
		if target == ErrNotOwner {
			return true
		}
	case AuthUnauthenticated:
		if target == ErrUnauthenticated {
			return true
		}
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("pointer file", "/work/.syt")
//	fmt.Println(err) // "pointer file '/work/.syt' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or an entity that cannot take part
// in the protocol.
//
// Example:
//
//	err := errors.NewValidationError("only projects, folders, and files can be checked in/out").
//		WithEntity("syn9", "summary").WithField("type").WithValue("table")
type ValidationError struct {
	baseError
	Field      string
	Value      any
	EntityID   string
	EntityName string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithEntity adds the offending entity to the error context.
func (e *ValidationError) WithEntity(id, name string) *ValidationError {
	e.EntityID = id
	e.EntityName = name
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.EntityID != "" || e.EntityName != "" {
		parts = append(parts, fmt.Sprintf("entity=%s", describeEntity(e.EntityID, e.EntityName)))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// RepositoryError wraps an unexpected failure of the remote repository.
//
// Example:
//
//	err := errors.NewRepositoryError("store entity", cause).WithEntityID("syn2").WithRetryable(true)
type RepositoryError struct {
	baseError
	Operation string
	EntityID  string
}

// NewRepositoryError creates a new RepositoryError for the named operation.
func NewRepositoryError(operation string, cause error) *RepositoryError {
	return &RepositoryError{
		baseError: baseError{
			message:    operation,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Operation: operation,
	}
}

// WithEntityID adds the entity the operation was acting on.
func (e *RepositoryError) WithEntityID(id string) *RepositoryError {
	e.EntityID = id
	return e
}

// WithRetryable marks the failure as transient.
func (e *RepositoryError) WithRetryable(r bool) *RepositoryError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *RepositoryError) Error() string {
	prefix := "repository error"
	if e.EntityID != "" {
		prefix = fmt.Sprintf("repository error [entity=%s]", e.EntityID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Operation, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Operation)
}

// Is checks if this error matches the target.
func (e *RepositoryError) Is(target error) bool {
	if _, ok := target.(*RepositoryError); ok {
		return true
	}
	if target == ErrRepository {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Warnings
// -----------------------------------------------------------------------------

// Warning is a non-fatal condition surfaced next to a successful result, such as
// a conflict bypassed with force or a manifest missing on check-in.
type Warning struct {
	Message    string
	EntityID   string
	EntityName string
	Cause      error
}

// NewWarning creates a Warning with a formatted message.
func NewWarning(format string, args ...any) Warning {
	return Warning{Message: fmt.Sprintf(format, args...)}
}

// Downgrade turns an error that force overrode into a Warning carrying the
// same message and entity context.
func Downgrade(err error) Warning {
	w := Warning{Message: err.Error(), Cause: err}
	var conflict *StateConflictError
	var auth *AuthorizationError
	switch {
	case As(err, &conflict):
		w.EntityID, w.EntityName = conflict.EntityID, conflict.EntityName
	case As(err, &auth):
		w.EntityID, w.EntityName = auth.EntityID, auth.EntityName
	}
	return w
}

// String renders the warning the way it is printed to users. Warnings built
// from an error already name their entity in the message; others are prefixed
// with it.
func (w Warning) String() string {
	if w.Cause == nil && (w.EntityID != "" || w.EntityName != "") {
		return "WARNING: " + describeEntity(w.EntityID, w.EntityName) + ": " + w.Message
	}
	return "WARNING: " + w.Message
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Exit codes returned by the syt binary.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitUsage         = 2
	ExitValidation    = 3
	ExitStateConflict = 4
	ExitUnauthorized  = 5
	ExitNotFound      = 6
	ExitRepository    = 7
)

// ExitCode maps an error to the process exit code for its kind.
// A nil error maps to ExitOK; unclassified errors map to ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var validation *ValidationError
	var conflict *StateConflictError
	var auth *AuthorizationError
	var notFound *NotFoundError
	var repo *RepositoryError

	switch {
	case As(err, &conflict):
		return ExitStateConflict
	case As(err, &auth):
		return ExitUnauthorized
	case As(err, &validation):
		return ExitValidation
	case As(err, &notFound):
		return ExitNotFound
	case As(err, &repo):
		return ExitRepository
	default:
		return ExitFailure
	}
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var sytErr SytError
	if As(err, &sytErr) {
		return sytErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    fmt.Fprintln(out, err)
//	} else {
//	    fmt.Fprintln(out, "An internal error occurred")
//	    logger.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var sytErr SytError
	if As(err, &sytErr) {
		return sytErr.IsUserFacing()
	}
	return false
}

// IsProtocolError returns true if the error is a terminal protocol refusal
// (validation, state conflict, or authorization). Such errors guarantee that
// no lock annotation was mutated.
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}

	var validation *ValidationError
	var conflict *StateConflictError
	var auth *AuthorizationError

	return As(err, &validation) || As(err, &conflict) || As(err, &auth)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SytError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var sytErr SytError
	if As(err, &sytErr) {
		return sytErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike building a new error, this preserves the SytError interface.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
