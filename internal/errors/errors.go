package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeTransport indicates a connect, read or write failure on the server connection
	ErrorTypeTransport ErrorType = "Transport"

	// ErrorTypeFraming is reserved for byte-stream decoding problems.
	// The framer degrades to best-effort decoding, so it is never raised.
	ErrorTypeFraming ErrorType = "Framing"

	// ErrorTypeProtocolParse indicates a line that could not be parsed
	ErrorTypeProtocolParse ErrorType = "ProtocolParse"

	// ErrorTypeUnknownCommand indicates a command token with no registered alias
	ErrorTypeUnknownCommand ErrorType = "UnknownCommand"

	// ErrorTypeArgumentPolicy indicates arguments given to a command that takes none
	ErrorTypeArgumentPolicy ErrorType = "ArgumentPolicy"

	// ErrorTypeHandlerFailure indicates a command handler that failed or panicked
	ErrorTypeHandlerFailure ErrorType = "HandlerFailure"

	// ErrorTypeConfig indicates invalid configuration
	ErrorTypeConfig ErrorType = "Config"
)

// Sentinel errors
var (
	ErrNotConnected = stderrors.New("not connected")
	ErrSessionUsed  = stderrors.New("session already started")
	ErrPoolClosed   = stderrors.New("task pool is shut down")
	ErrQueueFull    = stderrors.New("task queue is full")
	ErrZeroRead     = stderrors.New("zero-length read")
)

// BotError represents a structured error with a type and context for logging
type BotError struct {
	Type   ErrorType
	Op     string // operation: "dial", "read", "write", "execute", ...
	Detail string // additional detail for logging (address, command name, ...)
	Err    error  // underlying error
}

// Error implements the error interface
func (e *BotError) Error() string {
	msg := string(e.Type)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Detail != "" {
		msg += " " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Err
}

// NewTransportError creates an error for a failed network operation against addr
func NewTransportError(op, addr string, err error) *BotError {
	return &BotError{
		Type:   ErrorTypeTransport,
		Op:     op,
		Detail: addr,
		Err:    err,
	}
}

// NewParseError creates an error for a line that could not be parsed
func NewParseError(line string) *BotError {
	return &BotError{
		Type:   ErrorTypeProtocolParse,
		Op:     "classify",
		Detail: fmt.Sprintf("line=%q", line),
	}
}

// NewUnknownCommandError creates an error for a token that resolves to no command
func NewUnknownCommandError(token string) *BotError {
	return &BotError{
		Type:   ErrorTypeUnknownCommand,
		Op:     "resolve",
		Detail: fmt.Sprintf("token=%s", token),
	}
}

// NewArgumentPolicyError creates an error for arguments passed to a no-argument command
func NewArgumentPolicyError(command, args string) *BotError {
	return &BotError{
		Type:   ErrorTypeArgumentPolicy,
		Op:     "dispatch",
		Detail: fmt.Sprintf("command=%s args=%q", command, args),
	}
}

// NewHandlerError creates an error for a command handler failure
func NewHandlerError(command string, err error) *BotError {
	return &BotError{
		Type:   ErrorTypeHandlerFailure,
		Op:     "execute",
		Detail: fmt.Sprintf("command=%s", command),
		Err:    err,
	}
}

// NewConfigError creates an error for an invalid configuration field
func NewConfigError(field, message string) *BotError {
	return &BotError{
		Type:   ErrorTypeConfig,
		Op:     "validate",
		Detail: field,
		Err:    stderrors.New(message),
	}
}

// AsBotError attempts to convert an error to a BotError, following wrapped errors
func AsBotError(err error) (*BotError, bool) {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr, true
	}
	return nil, false
}

// IsType reports whether err is a BotError of the given type
func IsType(err error, t ErrorType) bool {
	botErr, ok := AsBotError(err)
	return ok && botErr.Type == t
}

// IsTransport reports whether err ended a session because of the connection
func IsTransport(err error) bool {
	return IsType(err, ErrorTypeTransport)
}
