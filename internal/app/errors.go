package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates Run was called while a session is active.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrClosed indicates the application was used after Close.
	ErrClosed = errors.New("application closed")
)

// ComponentError represents an error from a specific component.
type ComponentError struct {
	Component string // Component name (e.g., "config", "logging", "watcher")
	Action    string // Action being performed
	Err       error  // Underlying error
}

// NewComponentError creates a new ComponentError.
func NewComponentError(component, action string, err error) *ComponentError {
	return &ComponentError{
		Component: component,
		Action:    action,
		Err:       err,
	}
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}

	if e.Action != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Component, e.Action)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Component, e.Err)
	}

	return e.Component
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
