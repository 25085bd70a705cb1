package avencmux

import (
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/resampler"
)

// Engines are the backends a pipeline drives.
type Engines struct {
	Resampler resampler.Engine
	Encoder   codec.Engine
	Output    output.Engine
}

// SoftwareEngines returns the pure-Go engines: linear interpolation
// resampling, the raw "pcm_*"/"rawvideo" codecs and the in-memory container.
func SoftwareEngines() Engines {
	return Engines{
		Resampler: resampler.NewSoftware(),
		Encoder:   codec.NewSoftware(codec.SoftwareConfig{}),
		Output:    output.NewMemory(),
	}
}
