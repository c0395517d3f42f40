package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/streakd/internal/logger"
)

// Kind classifies an error by what the caller should do about it
type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	InvalidInput
	NotFound
	AlreadyCompleted
	// Conflict is reserved for uniqueness violations that are not idempotent
	// retries; lost completion and unlock races are no-ops instead
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case AlreadyCompleted:
		return "already_completed"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified error. Msg is safe to show to a client; Err is not.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.message(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.message())
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.message(), e.Err)
	default:
		return e.message()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the client-facing message for the error
func (e *Error) Message() string {
	if e.Kind == Internal {
		return "Internal server error"
	}
	return e.message()
}

func (e *Error) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}

// E creates a classified error without a cause
func E(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
// Unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the client-facing message for err
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message()
	}
	return "Internal server error"
}

func IsNotFound(err error) bool         { return KindOf(err) == NotFound }
func IsAlreadyCompleted(err error) bool { return KindOf(err) == AlreadyCompleted }
func IsInvalidInput(err error) bool     { return KindOf(err) == InvalidInput }
func IsUnauthenticated(err error) bool  { return KindOf(err) == Unauthenticated }

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
