package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error type for the concierge core.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	Code       string    `json:"code,omitempty"`
	Underlying error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// ErrorKind categorizes errors.
type ErrorKind string

const (
	// ErrPermission is returned when the user denies microphone access.
	ErrPermission ErrorKind = "permission_error"
	// ErrDevice is returned when no usable audio input device exists.
	ErrDevice ErrorKind = "device_error"
	// ErrAuth is returned when the ephemeral credential fetch or validation fails.
	ErrAuth ErrorKind = "auth_error"
	// ErrNegotiation is returned when the realtime channel setup fails.
	ErrNegotiation ErrorKind = "negotiation_error"
	// ErrChannel is returned on a mid-session transport fault.
	ErrChannel ErrorKind = "channel_error"
	// ErrChannelNotReady is returned when sending on a channel that is not open.
	ErrChannelNotReady ErrorKind = "channel_not_ready"
	// ErrToolExecution is caught inside the dispatcher and converted to a soft result.
	ErrToolExecution ErrorKind = "tool_execution_error"
	// ErrInvalidRequest covers malformed caller input.
	ErrInvalidRequest ErrorKind = "invalid_request_error"
)

// NewPermissionError creates a microphone permission error.
func NewPermissionError(message string) *Error {
	return &Error{Kind: ErrPermission, Message: message}
}

// NewDeviceError creates an audio device error.
func NewDeviceError(message string, underlying error) *Error {
	return &Error{Kind: ErrDevice, Message: message, Underlying: underlying}
}

// NewAuthError creates a credential error.
func NewAuthError(message string, underlying error) *Error {
	return &Error{Kind: ErrAuth, Message: message, Underlying: underlying}
}

// NewNegotiationError creates a channel setup error.
func NewNegotiationError(message string, underlying error) *Error {
	return &Error{Kind: ErrNegotiation, Message: message, Underlying: underlying}
}

// NewChannelError creates a mid-session transport error.
func NewChannelError(message string, underlying error) *Error {
	return &Error{Kind: ErrChannel, Message: message, Underlying: underlying}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Kind: ErrInvalidRequest, Message: message}
}

// NewToolExecutionError wraps a tool handler failure.
func NewToolExecutionError(tool string, underlying error) *Error {
	return &Error{
		Kind:       ErrToolExecution,
		Message:    fmt.Sprintf("%s: %v", tool, underlying),
		Param:      tool,
		Underlying: underlying,
	}
}

// IsKind reports whether err is a core error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// IsFatal reports whether err terminates the session. Tool execution
// failures are soft results and never fatal.
func (e *Error) IsFatal() bool {
	switch e.Kind {
	case ErrToolExecution, ErrInvalidRequest:
		return false
	default:
		return true
	}
}
