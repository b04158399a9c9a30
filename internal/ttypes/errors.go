package ttypes

import (
	"errors"
	"fmt"
)

// ErrorCode identifies specific error types.
type ErrorCode string

const (
	// Synthesis errors
	ErrorCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrorCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorCodeTimeout      ErrorCode = "TIMEOUT"

	// Playback errors
	ErrorCodeDeviceBusy    ErrorCode = "DEVICE_BUSY"
	ErrorCodeDecodeFailure ErrorCode = "DECODE_FAILURE"

	// Configuration errors
	ErrorCodeInvalidSpeaker  ErrorCode = "INVALID_SPEAKER"
	ErrorCodeInvalidSpeed    ErrorCode = "INVALID_SPEED"
	ErrorCodeInvalidPause    ErrorCode = "INVALID_PAUSE"
	ErrorCodeInvalidCapacity ErrorCode = "INVALID_CAPACITY"
	ErrorCodeInvalidWorkers  ErrorCode = "INVALID_WORKERS"
)

// ErrorClass groups error codes by how they propagate.
type ErrorClass string

const (
	ClassSynthesis     ErrorClass = "synthesis"
	ClassPlayback      ErrorClass = "playback"
	ClassConfiguration ErrorClass = "configuration"
	ClassUnknown       ErrorClass = "unknown"
)

// Class returns the class the code belongs to.
func (c ErrorCode) Class() ErrorClass {
	switch c {
	case ErrorCodeUnavailable, ErrorCodeRateLimited, ErrorCodeInvalidInput, ErrorCodeTimeout:
		return ClassSynthesis
	case ErrorCodeDeviceBusy, ErrorCodeDecodeFailure:
		return ClassPlayback
	case ErrorCodeInvalidSpeaker, ErrorCodeInvalidSpeed, ErrorCodeInvalidPause,
		ErrorCodeInvalidCapacity, ErrorCodeInvalidWorkers:
		return ClassConfiguration
	default:
		return ClassUnknown
	}
}

// Sentinel values for errors.Is checks. They match any TTSError with the same code.
var (
	ErrUnavailable   = &TTSError{Code: ErrorCodeUnavailable, Message: "provider unavailable"}
	ErrRateLimited   = &TTSError{Code: ErrorCodeRateLimited, Message: "provider rate limited"}
	ErrInvalidInput  = &TTSError{Code: ErrorCodeInvalidInput, Message: "provider rejected input"}
	ErrTimeout       = &TTSError{Code: ErrorCodeTimeout, Message: "synthesis timed out"}
	ErrDeviceBusy    = &TTSError{Code: ErrorCodeDeviceBusy, Message: "playback device busy"}
	ErrDecodeFailure = &TTSError{Code: ErrorCodeDecodeFailure, Message: "audio could not be decoded"}
	ErrInvalidConfig = errors.New("invalid session configuration")
)

// TTSError represents a pipeline error with additional context.
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// NewTTSError creates a new error with context.
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a TTSError with the same code.
// Configuration errors also match ErrInvalidConfig.
func (e *TTSError) Is(target error) bool {
	if target == ErrInvalidConfig {
		return e.Code.Class() == ClassConfiguration
	}
	t, ok := target.(*TTSError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Class returns the propagation class of the error.
func (e *TTSError) Class() ErrorClass {
	return e.Code.Class()
}

// IsFatal returns true if the error must abort session construction.
func (e *TTSError) IsFatal() bool {
	return e.Class() == ClassConfiguration
}

// IsRetryable returns true if a provider may retry the call once.
func (e *TTSError) IsRetryable() bool {
	return e.Code == ErrorCodeTimeout
}

// CodeOf returns the code of the first TTSError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te *TTSError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsRetryable reports whether err is a retryable TTSError.
func IsRetryable(err error) bool {
	var te *TTSError
	return errors.As(err, &te) && te.IsRetryable()
}
