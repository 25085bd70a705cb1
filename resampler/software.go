package resampler

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/types"
)

// Software is a pure-Go engine doing linear interpolation. Output sample
// k is taken at the exact input position k*inRate/outRate; a position that
// falls between two input samples is emitted only once the later one has
// arrived (or on flush), which is what makes up the engine delay.
type Software struct{}

var _ Engine = Software{}

func NewSoftware() Software {
	return Software{}
}

func (Software) Configure(
	ctx context.Context,
	in, out audio.PCMFormat,
) (Context, error) {
	if err := in.Validate(); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid input format: %w", err))
	}
	if err := out.Validate(); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid output format: %w", err))
	}
	return &softwareContext{
		in:      in,
		out:     out,
		pending: make([][]float64, out.Channels()),
	}, nil
}

type softwareContext struct {
	in  audio.PCMFormat
	out audio.PCMFormat

	// pending[ch][j] is the input sample number base+j, already mapped
	// to the output channel ch.
	pending  [][]float64
	base     int64
	totalIn  int64
	nextOut  int64
	flushing bool
}

func (s *softwareContext) Delay(base int) int64 {
	inRate, outRate := int64(s.in.SampleRate), int64(s.out.SampleRate)
	// buffered input samples: totalIn - nextOut*inRate/outRate
	buffered := s.totalIn*outRate - s.nextOut*inRate
	if buffered <= 0 {
		return 0
	}
	return types.RescaleRnd(buffered, int64(base), outRate*inRate, types.RoundUp)
}

func (s *softwareContext) Convert(
	ctx context.Context,
	dst *frame.Frame,
	dstCapacity int,
	src *frame.Frame,
	srcCount int,
) (int, error) {
	if src != nil {
		if err := s.push(src, srcCount); err != nil {
			return 0, err
		}
	} else {
		s.flushing = true
	}

	if f := audio.FormatOf(dst); f != s.out {
		return 0, fmt.Errorf("destination format %s does not match the configured %s", f, s.out)
	}
	limit := min(dstCapacity, dst.Capacity())

	inRate, outRate := int64(s.in.SampleRate), int64(s.out.SampleRate)
	values := make([][]float64, len(s.pending))
	for {
		if len(values[0]) >= limit {
			break
		}
		pos := s.nextOut * inRate
		idx, rem := pos/outRate, pos%outRate
		if idx >= s.totalIn {
			break
		}
		if rem != 0 && idx+1 >= s.totalIn && !s.flushing {
			break
		}
		frac := float64(rem) / float64(outRate)
		for ch, samples := range s.pending {
			cur := samples[idx-s.base]
			next := cur
			if rem != 0 && idx+1 < s.totalIn {
				next = samples[idx+1-s.base]
			}
			values[ch] = append(values[ch], cur+(next-cur)*frac)
		}
		s.nextOut++
	}

	for ch := range values {
		if err := audio.FillSamples(dst, ch, values[ch]); err != nil {
			return 0, fmt.Errorf("unable to fill channel %d: %w", ch, err)
		}
	}
	s.compact()
	return len(values[0]), nil
}

func (s *softwareContext) push(src *frame.Frame, srcCount int) error {
	if f := audio.FormatOf(src); f != s.in {
		return fmt.Errorf("source format %s does not match the configured %s", f, s.in)
	}
	if srcCount > src.NbSamples {
		return fmt.Errorf("asked to convert %d samples, but the frame has only %d", srcCount, src.NbSamples)
	}

	inChannels := make([][]float64, s.in.Channels())
	for ch := range inChannels {
		samples, err := audio.ExtractSamples(src, ch)
		if err != nil {
			return fmt.Errorf("unable to extract channel %d: %w", ch, err)
		}
		inChannels[ch] = samples[:srcCount]
	}

	outChannels := len(s.pending)
	switch {
	case outChannels == len(inChannels):
		for ch := range s.pending {
			s.pending[ch] = append(s.pending[ch], inChannels[ch]...)
		}
	case outChannels == 1:
		mix := make([]float64, srcCount)
		for _, samples := range inChannels {
			for i, v := range samples {
				mix[i] += v / float64(len(inChannels))
			}
		}
		s.pending[0] = append(s.pending[0], mix...)
	default:
		for ch := range s.pending {
			s.pending[ch] = append(s.pending[ch], inChannels[ch%len(inChannels)]...)
		}
	}
	s.totalIn += int64(srcCount)
	return nil
}

// compact drops the input samples no future output depends on.
func (s *softwareContext) compact() {
	needed := s.nextOut * int64(s.in.SampleRate) / int64(s.out.SampleRate)
	drop := min(needed, s.totalIn) - s.base
	if drop <= 0 {
		return
	}
	for ch := range s.pending {
		rest := copy(s.pending[ch], s.pending[ch][drop:])
		s.pending[ch] = s.pending[ch][:rest]
	}
	s.base += drop
}

func (s *softwareContext) Close(ctx context.Context) error {
	s.pending = nil
	return nil
}
