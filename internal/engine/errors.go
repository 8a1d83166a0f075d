package engine

import (
	"errors"
	"fmt"
)

var (
	ErrDestinationExists = errors.New("engine: destination file already exists")
	ErrSourceMissing     = errors.New("engine: source folder does not exist")
)

// IOError is a filesystem failure during a pass. It is fatal to the pass.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// OrderingError reports a restore that replays generations out of order or
// patches a file no earlier generation produced.
type OrderingError struct {
	Path   string
	Reason string
	Err    error
}

func (e *OrderingError) Error() string {
	msg := "ordering error: " + e.Reason
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OrderingError) Unwrap() error {
	return e.Err
}
