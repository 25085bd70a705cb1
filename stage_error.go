package avencmux

import (
	"fmt"

	"github.com/xaionaro-go/avencmux/types"
)

// Stage is a step of a pipeline run.
type Stage string

const (
	StageOpenOutput        = Stage("open-output")
	StageOpenEncoder       = Stage("open-encoder")
	StageConfigureResample = Stage("configure-resampler")
	StageSetupSource       = Stage("setup-source")
	StageDeclareStream     = Stage("declare-stream")
	StageWriteHeader       = Stage("write-header")
	StageGenerate          = Stage("generate")
	StageResample          = Stage("resample")
	StageEncode            = Stage("encode")
	StageWrite             = Stage("write")
	StageFinalize          = Stage("finalize")
)

// NoStream is the StageError.Stream value of failures not bound to a stream.
const NoStream = -1

// StageError is the single diagnostic a failed run is reported with.
type StageError struct {
	Stage     Stage
	Stream    int
	MediaType types.MediaType
	Err       error
}

func newStageError(stage Stage, s *Stream, err error) *StageError {
	result := &StageError{
		Stage:  stage,
		Stream: NoStream,
		Err:    err,
	}
	if s != nil {
		result.Stream = s.Index
		result.MediaType = s.mediaType
	}
	return result
}

func (e *StageError) Error() string {
	if e.Stream == NoStream {
		return fmt.Sprintf("stage '%s' failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage '%s' failed on %s stream #%d: %v", e.Stage, e.MediaType, e.Stream, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
