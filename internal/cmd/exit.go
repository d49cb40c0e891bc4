package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
)

// Exit code aliases used by the commands.
var (
	exitInvalidArgument    = foundry.ExitInvalidArgument
	exitFileWriteError     = foundry.ExitFileWriteError
	exitServiceUnavailable = foundry.ExitExternalServiceUnavailable
	exitSignalInt          = foundry.ExitSignalInt
)

// codedError carries the process exit code alongside the message.
type codedError struct {
	code    int
	message string
	err     error
}

func (e *codedError) Error() string {
	if e.err == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

func (e *codedError) Unwrap() error {
	return e.err
}

// exitError creates an error that makes the CLI exit with the given
// code.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, message: message, err: err}
}

// codeOf extracts the exit code from an error chain, defaulting to 1.
func codeOf(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}
