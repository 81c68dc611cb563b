package iris

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateCommand is returned when a command with the same
	// (name, kind, scope) is already registered
	ErrDuplicateCommand = errors.New("duplicate command")

	// ErrUnknownCommand is returned when no command matches an invocation
	ErrUnknownCommand = errors.New("unknown command")

	// ErrOptionValidation is returned when an invocation's arguments do not
	// match the command's declared options
	ErrOptionValidation = errors.New("option validation failed")

	// ErrAlreadyLoaded is returned when an extension with the same name is
	// already tracked by the loader
	ErrAlreadyLoaded = errors.New("extension already loaded")

	// ErrNotLoaded is returned when an extension is not tracked by the loader
	ErrNotLoaded = errors.New("extension not loaded")

	// ErrExtensionLoad is returned when an extension's Setup fails
	ErrExtensionLoad = errors.New("extension load failed")
)

// HandlerError wraps a failure raised inside a command handler (or its
// pre-run hook) together with the identity of the command that failed.
type HandlerError struct {
	Command string
	Kind    Kind
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("command %q (%s): %s", e.Command, e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
