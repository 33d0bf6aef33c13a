package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeMalformedCommand = "malformed_command"
	ErrCodeInvalidRoomSpec  = "invalid_room_spec"
	ErrCodeAlreadyListening = "already_listening"
	ErrCodeNotListening     = "not_listening"
	ErrCodeTransport        = "transport_error"
	ErrCodeSessionClosed    = "session_closed"
)

var (
	ErrInvalidRoomSpec  = errors.New("invalid room spec")
	ErrAlreadyListening = errors.New("server is already listening")
	ErrNotListening     = errors.New("server is not listening")
	ErrTransport        = errors.New("transport error")
	ErrSessionClosed    = errors.New("session closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}

// InvalidRoomSpec builds an invalid_room_spec error with the given reason.
func InvalidRoomSpec(msg string) *CoreError {
	return coreError(ErrCodeInvalidRoomSpec, msg, ErrInvalidRoomSpec)
}

// ErrorCode extracts the code of a CoreError, or returns an empty string.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
