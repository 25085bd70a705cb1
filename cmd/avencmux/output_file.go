package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xaionaro-go/avencmux"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/types"
)

// outputFile buffers the writes into a file (or stdout); the data is
// complete only once Finish succeeded.
type outputFile struct {
	path   string
	writer *bufio.Writer
	closer io.Closer
}

func createOutputFile(filePath string) (*outputFile, error) {
	if isStdout(filePath) {
		return newOutputFile(filePath, os.Stdout, nil), nil
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("unable to create '%s': %w", filePath, err)
	}
	return newOutputFile(filePath, file, file), nil
}

func newOutputFile(filePath string, w io.Writer, closer io.Closer) *outputFile {
	return &outputFile{
		path:   filePath,
		writer: bufio.NewWriter(w),
		closer: closer,
	}
}

func (f *outputFile) Write(b []byte) (int, error) {
	return f.writer.Write(b)
}

// Finish flushes and closes the file, returning the first error.
func (f *outputFile) Finish() error {
	err := f.writer.Flush()
	if err != nil {
		err = fmt.Errorf("unable to flush '%s': %w", f.path, err)
	}
	if f.closer != nil {
		if closeErr := f.closer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("unable to close '%s': %w", f.path, closeErr)
		}
		f.closer = nil
	}
	if err != nil {
		return &avencmux.StageError{
			Stage:  avencmux.StageWrite,
			Stream: avencmux.NoStream,
			Err:    types.WithKind(types.ErrResource, err),
		}
	}
	return nil
}

// Abort closes the file without flushing; used when the run already failed.
func (f *outputFile) Abort(ctx context.Context) {
	if f.closer == nil {
		return
	}
	if err := f.closer.Close(); err != nil {
		logger.Errorf(ctx, "unable to close '%s': %v", f.path, err)
	}
	f.closer = nil
}
