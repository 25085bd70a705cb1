package audio

import (
	"fmt"

	"github.com/xaionaro-go/avencmux/frame"
)

// FIFO re-chunks audio: it accepts frames of any size and hands out
// frames of the size the consumer asks for.
type FIFO struct {
	Format   PCMFormat
	channels [][]float64
}

func NewFIFO(format PCMFormat) *FIFO {
	return &FIFO{
		Format:   format,
		channels: make([][]float64, format.Channels()),
	}
}

// Size returns the amount of buffered samples per channel.
func (q *FIFO) Size() int {
	if len(q.channels) == 0 {
		return 0
	}
	return len(q.channels[0])
}

func (q *FIFO) Write(f *frame.Frame) error {
	if FormatOf(f) != q.Format {
		return fmt.Errorf("frame format %s does not match FIFO format %s", FormatOf(f), q.Format)
	}
	for ch := range q.channels {
		samples, err := ExtractSamples(f, ch)
		if err != nil {
			return fmt.Errorf("unable to extract samples of channel %d: %w", ch, err)
		}
		q.channels[ch] = append(q.channels[ch], samples...)
	}
	return nil
}

// Read moves up to n samples into dst (which must be writable and of the FIFO's
// format), sets dst.NbSamples and returns the amount of samples moved.
func (q *FIFO) Read(dst *frame.Frame, n int) (int, error) {
	if FormatOf(dst) != q.Format {
		return 0, fmt.Errorf("frame format %s does not match FIFO format %s", FormatOf(dst), q.Format)
	}
	n = min(n, q.Size(), dst.Capacity())
	for ch := range q.channels {
		if err := FillSamples(dst, ch, q.channels[ch][:n]); err != nil {
			return 0, fmt.Errorf("unable to fill samples of channel %d: %w", ch, err)
		}
	}
	for ch := range q.channels {
		rest := copy(q.channels[ch], q.channels[ch][n:])
		q.channels[ch] = q.channels[ch][:rest]
	}
	dst.NbSamples = n
	return n, nil
}
