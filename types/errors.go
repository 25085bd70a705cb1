package types

import (
	"errors"
)

// Fatal error kinds. Errors returned by this module wrap one of them,
// so callers may classify a failure with errors.Is.
var (
	// ErrConfiguration: unsupported format, missing codec, invalid parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrResource: allocation failure, unable to open the output.
	ErrResource = errors.New("resource error")

	// ErrProcessing: an engine failed to convert, encode or write.
	ErrProcessing = errors.New("processing error")
)

// Flow-control conditions. These are not failures.
var (
	// ErrWouldBlock means the engine needs another input before it can produce output
	// (or has to emit output before consuming more input).
	ErrWouldBlock = errors.New("would block")

	// ErrEndOfStream means the engine is fully drained.
	ErrEndOfStream = errors.New("end of stream")
)

type kindError struct {
	Kind error
	Err  error
}

func (e kindError) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e kindError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// WithKind marks err as being of the given kind.
// It returns nil if err is nil; errors already of that kind are returned as is.
func WithKind(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return kindError{Kind: kind, Err: err}
}

// IsFlowControl reports whether err is a flow-control condition rather than a failure.
func IsFlowControl(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrEndOfStream)
}
