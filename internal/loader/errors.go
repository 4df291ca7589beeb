package loader

import (
	"fmt"
	"strings"
)

// UnsupportedFormatError is returned when no loader is registered for a declared type.
type UnsupportedFormatError struct {
	Type      string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("unsupported file type: %s", e.Type)
	}
	return fmt.Sprintf("unsupported file type: %s (supported: %s)", e.Type, strings.Join(e.Supported, ", "))
}

// LoadError represents a failure inside a format extractor.
type LoadError struct {
	Path    string
	Format  string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load error (%s) for %s: %s: %v", e.Format, e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("load error (%s) for %s: %s", e.Format, e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
