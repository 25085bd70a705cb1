package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux"
	"github.com/xaionaro-go/avencmux/types"
)

var errDiskFull = errors.New("no space left on device")

type failingWriter struct{}

func (w *failingWriter) Write(b []byte) (int, error) {
	return 0, errDiskFull
}

type closeRecorder struct {
	err    error
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return c.err
}

func TestOutputFileFinishReportsFlushError(t *testing.T) {
	closer := &closeRecorder{}
	out := newOutputFile("out.pcm", &failingWriter{}, closer)

	n, err := out.Write([]byte("some samples"))
	require.NoError(t, err)
	require.Equal(t, 12, n)

	err = out.Finish()
	require.ErrorIs(t, err, errDiskFull)
	require.ErrorIs(t, err, types.ErrResource)
	var stageErr *avencmux.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, avencmux.StageWrite, stageErr.Stage)
	require.Equal(t, 1, closer.closed)
}

func TestOutputFileFinishReportsCloseError(t *testing.T) {
	errClose := errors.New("close failed")
	closer := &closeRecorder{err: errClose}
	out := newOutputFile("out.pcm", &failingWriter{}, closer)

	err := out.Finish()
	require.ErrorIs(t, err, errClose)
	require.Equal(t, 1, closer.closed)

	out.Abort(context.Background())
	require.Equal(t, 1, closer.closed)
}

func TestResampleCommandWritesFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "out.pcm")

	cmd := newResampleCommand(&globalFlags{Engine: engineSoftware}, defaultConfig())
	cmd.SetArgs([]string{"--duration", "1/10", filePath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	// s16 stereo at 44100 Hz
	require.InDelta(t, 4410*4, info.Size(), 4)
}

func TestResampleCommandFailsOnShortWrite(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full is not available")
	}

	cmd := newResampleCommand(&globalFlags{Engine: engineSoftware}, defaultConfig())
	cmd.SetArgs([]string{"--duration", "1/100", "/dev/full"})
	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, types.ErrResource)
	var stageErr *avencmux.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, avencmux.StageWrite, stageErr.Stage)
}
