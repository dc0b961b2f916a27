package daemonconf

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that none of the candidate paths exists.
var ErrNotFound = errors.New("daemon config file not found")

// IOError reports a failed file operation on the daemon config. Its message
// carries the operating system's error text.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Reason classifies why a config file failed validation.
type Reason int

const (
	// ReasonMissing means the file does not exist.
	ReasonMissing Reason = iota + 1
	// ReasonNoField means the file exists but never mentions the field.
	ReasonNoField
)

func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "config file does not exist"
	case ReasonNoField:
		return "config file has no " + FieldName + " field"
	default:
		return "unknown"
	}
}

// ValidationError is returned by Validate for an unusable config file.
type ValidationError struct {
	Path   string
	Reason Reason
}

func (e *ValidationError) Error() string {
	return e.Reason.String()
}
