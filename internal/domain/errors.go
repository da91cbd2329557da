package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies a pipeline failure by the stage that produced it.
type ErrorType string

const (
	ErrorTypeDecode  ErrorType = "decode"
	ErrorTypeUpload  ErrorType = "upload"
	ErrorTypeVerify  ErrorType = "verify"
	ErrorTypeSubmit  ErrorType = "submit"
	ErrorTypePoll    ErrorType = "poll"
	ErrorTypeTimeout ErrorType = "timeout"
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeWrite   ErrorType = "write"
)

// PipelineError is a classified failure with an optional cause.
type PipelineError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError creates a classified pipeline error wrapping err.
func NewError(t ErrorType, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    t,
		Message: message,
		Err:     err,
	}
}

func DecodeError(message string, err error) *PipelineError {
	return NewError(ErrorTypeDecode, message, err)
}

func UploadError(message string, err error) *PipelineError {
	return NewError(ErrorTypeUpload, message, err)
}

func VerifyError(message string, err error) *PipelineError {
	return NewError(ErrorTypeVerify, message, err)
}

func SubmitError(message string, err error) *PipelineError {
	return NewError(ErrorTypeSubmit, message, err)
}

func PollError(message string, err error) *PipelineError {
	return NewError(ErrorTypePoll, message, err)
}

func TimeoutError(message string, err error) *PipelineError {
	return NewError(ErrorTypeTimeout, message, err)
}

func ConfigError(message string, err error) *PipelineError {
	return NewError(ErrorTypeConfig, message, err)
}

func WriteError(message string, err error) *PipelineError {
	return NewError(ErrorTypeWrite, message, err)
}

// IsType reports whether err (or anything it wraps) is a PipelineError
// of the given type.
func IsType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}

// JobFailedError reports an analysis job that reached the FAILED
// terminal status. It is a service-reported outcome rather than a local
// fault, so it is kept distinct from PipelineError.
type JobFailedError struct {
	JobID         string
	Status        JobStatus
	StatusMessage string
}

func (e *JobFailedError) Error() string {
	if e.StatusMessage != "" {
		return fmt.Sprintf("analysis job %s ended with status %s: %s", e.JobID, e.Status, e.StatusMessage)
	}
	return fmt.Sprintf("analysis job %s ended with status %s", e.JobID, e.Status)
}
