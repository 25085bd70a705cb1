package avencmux

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/avencmux/types"
)

func statsItemString(item types.StatisticsItem) string {
	return fmt.Sprintf("%d (%s)", item.Count, humanize.IBytes(item.Bytes))
}

func (r StreamReport) String() string {
	return fmt.Sprintf(
		"#%d %s %s: %d frames, %d packets, %s, tb:%s->%s",
		r.Index, r.MediaType, r.Codec, r.Frames, r.Packets, r.Duration, r.EncoderTimeBase, r.ContainerTimeBase,
	)
}

func (r *MuxReport) String() string {
	var parts []string
	for _, s := range r.Streams {
		parts = append(parts, s.String())
	}
	return fmt.Sprintf(
		"[%s]; packets written: %s; took %s",
		strings.Join(parts, "; "),
		statsItemString(r.Statistics.PacketsWritten.Total()),
		r.Elapsed.Round(time.Millisecond),
	)
}

func (r *ResampleReport) String() string {
	return fmt.Sprintf(
		"%d calls, %d -> %d samples, %d reallocations (capacity: %d), %s written",
		r.Calls, r.InputSamples, r.OutputSamples, r.Reallocations, r.Capacity, humanize.IBytes(r.BytesWritten),
	)
}

func (r *EncodeVideoReport) String() string {
	var nals []string
	for _, typ := range r.NALTypes() {
		nals = append(nals, fmt.Sprintf("%s:%d", typ, r.NALHistogram[typ]))
	}
	return fmt.Sprintf(
		"%s: %d frames, %d packets (%d key), %s, %s, encoding took %s (%s per frame)%s",
		r.Codec, r.Frames, r.Packets, r.KeyPackets,
		humanize.IBytes(r.Bytes), humanize.SIWithDigits(r.BitRate, 2, "bps"),
		r.EncodeTime.Round(time.Millisecond), r.AverageFrameTime(),
		func() string {
			if len(nals) == 0 {
				return ""
			}
			return "; NAL units: " + strings.Join(nals, " ")
		}(),
	)
}
