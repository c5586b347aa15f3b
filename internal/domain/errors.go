package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when an operation needs a live session and there is none.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionNotFound indicates a question ID is not in the pool.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrPoolNotLoaded is returned when the question pool has not been loaded yet.
	ErrPoolNotLoaded = errors.New("question pool not loaded")
)

// DataErrorKind classifies question pool failures.
type DataErrorKind string

const (
	DataNetwork   DataErrorKind = "network"
	DataTimeout   DataErrorKind = "timeout"
	DataNotFound  DataErrorKind = "not_found"
	DataServer    DataErrorKind = "server"
	DataMalformed DataErrorKind = "malformed"
)

// DataError reports a failure to fetch or parse the question pool.
type DataError struct {
	Kind   DataErrorKind
	Source string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("question pool %s (%s): %v", e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("question pool %s (%s)", e.Kind, e.Source)
}

func (e *DataError) Unwrap() error { return e.Err }

// Category maps the error onto the message categories shown to users.
func (e *DataError) Category() string {
	switch e.Kind {
	case DataTimeout:
		return "timeout"
	case DataNotFound:
		return "not-found"
	case DataNetwork:
		return "network"
	default:
		return "server"
	}
}

// SessionError describes why a stored session was discarded.
type SessionError struct {
	Reason string // corrupt, expired or invalid
	Err    error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return "session " + e.Reason + ": " + e.Err.Error()
	}
	return "session " + e.Reason
}

func (e *SessionError) Unwrap() error { return e.Err }

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
