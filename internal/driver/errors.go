package driver

import (
	"errors"
	"fmt"
)

var (
	ErrConnClosed   = errors.New("driver: connection closed")
	ErrServerClosed = errors.New("driver: server closed")
)

// CommandError is a response the app sent back with success false.
type CommandError struct {
	Type    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("driver: %s failed: %s", e.Type, e.Message)
}
