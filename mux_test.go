package avencmux

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/resampler"
	"github.com/xaionaro-go/avencmux/types"
)

func countByMediaType(pkts []packet.Packet) map[types.MediaType]int {
	result := map[types.MediaType]int{}
	for _, pkt := range pkts {
		result[pkt.MediaType]++
	}
	return result
}

func requireNonDecreasing(t *testing.T, pkts []packet.Packet) {
	for idx := 1; idx < len(pkts); idx++ {
		prev, cur := &pkts[idx-1], &pkts[idx]
		require.GreaterOrEqual(t,
			types.CompareTS(cur.DTS, cur.TimeBase, prev.DTS, prev.TimeBase), 0,
			"packet #%d (%s) goes before #%d (%s)", idx, cur, idx-1, prev,
		)
	}
}

func TestMuxInterleavesTwoStreams(t *testing.T) {
	ctx := context.Background()
	memory := output.NewMemory()
	memory.StrictOrder = true
	engines := SoftwareEngines()
	engines.Output = memory

	report, err := Mux(ctx, SoftwareMuxConfig(), engines)
	require.NoError(t, err)

	containers := memory.Containers()
	require.Len(t, containers, 1)
	c := containers[0]
	require.Equal(t, "flv", c.Format)
	require.True(t, c.HeaderWritten())
	require.True(t, c.TrailerWritten())
	require.True(t, c.IsClosed())

	pkts := c.Packets()
	counts := countByMediaType(pkts)
	require.Equal(t, 5*25, counts[types.MediaTypeVideo])
	require.Equal(t, 216, counts[types.MediaTypeAudio]) // ceil(5*44100/1024)
	requireNonDecreasing(t, pkts)

	require.Len(t, report.Streams, 2)
	video, audio := report.Streams[0], report.Streams[1]
	assert.Equal(t, types.MediaTypeVideo, video.MediaType)
	assert.Equal(t, types.R(1, 25), video.EncoderTimeBase)
	assert.Equal(t, types.R(1, 1000), video.ContainerTimeBase)
	assert.Equal(t, uint64(125), video.Frames)
	assert.Equal(t, uint64(125), video.Packets)
	assert.Equal(t, types.MediaTypeAudio, audio.MediaType)
	assert.Equal(t, types.R(1, 44100), audio.EncoderTimeBase)
	assert.Equal(t, uint64(216), audio.Packets)

	stats := report.Statistics
	assert.Equal(t, uint64(125), stats.PacketsWritten.Video.Count)
	assert.Equal(t, uint64(216), stats.PacketsWritten.Audio.Count)
	assert.Equal(t, stats.PacketsEncoded.Total(), stats.PacketsWritten.Total())
	assert.Equal(t, uint64(125), stats.FramesGenerated.Video.Count)
	assert.Equal(t, uint64(216*1024*4), stats.PacketsWritten.Audio.Bytes)
}

func TestMuxConvertsAudio(t *testing.T) {
	ctx := context.Background()
	memory := output.NewMemory()
	memory.StrictOrder = true
	engines := SoftwareEngines()
	engines.Output = memory

	cfg := SoftwareMuxConfig()
	cfg.Output = "output.mkv"
	cfg.Audio.CodecName = "pcm_f32le"
	cfg.Duration = types.R(1, 1)
	_, err := Mux(ctx, cfg, engines)
	require.NoError(t, err)

	c := memory.Containers()[0]
	require.Equal(t, "matroska", c.Format)
	pkts := c.Packets()
	counts := countByMediaType(pkts)
	require.Equal(t, 25, counts[types.MediaTypeVideo])
	require.Equal(t, 44, counts[types.MediaTypeAudio]) // ceil(44100/1024)
	requireNonDecreasing(t, pkts)
	for _, pkt := range pkts {
		if pkt.MediaType == types.MediaTypeAudio {
			require.Len(t, pkt.Data, 1024*2*4)
		}
	}

	streams := c.Streams()
	require.Len(t, streams, 2)
	require.Equal(t, types.SampleFormatFLT, streams[1].Params.SampleFormat)
}

func TestMuxAudioOnlyReachesDuration(t *testing.T) {
	ctx := context.Background()
	memory := output.NewMemory()
	engines := SoftwareEngines()
	engines.Output = memory

	cfg := SoftwareMuxConfig()
	cfg.Output = "output.raw"
	cfg.Video = nil
	cfg.Duration = types.R(1, 2)
	report, err := Mux(ctx, cfg, engines)
	require.NoError(t, err)
	require.Len(t, report.Streams, 1)

	pkts := memory.Containers()[0].Packets()
	require.Len(t, pkts, 22) // ceil(22050/1024)
	last := pkts[len(pkts)-1]
	require.Equal(t, types.R(1, 44100), last.TimeBase)
	require.Equal(t, int64(21*1024), last.PTS)
}

type closeLog struct {
	locker sync.Mutex
	names  []string
}

func (l *closeLog) add(name string) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.names = append(l.names, name)
}

func (l *closeLog) get() []string {
	l.locker.Lock()
	defer l.locker.Unlock()
	return append([]string(nil), l.names...)
}

var errInjected = errors.New("injected failure")

type loggingEncoderEngine struct {
	codec.Engine
	log *closeLog

	// failVideoAt makes the video encoder refuse the n-th frame.
	failVideoAt int
}

func (e loggingEncoderEngine) Open(ctx context.Context, params codec.Parameters) (codec.Context, error) {
	c, err := e.Engine.Open(ctx, params)
	if err != nil {
		return nil, err
	}
	result := &loggingEncoder{
		Context: c,
		name:    "encoder:" + params.MediaType.String(),
		log:     e.log,
	}
	if params.MediaType == types.MediaTypeVideo {
		result.failAt = e.failVideoAt
	}
	return result, nil
}

type loggingEncoder struct {
	codec.Context
	name      string
	log       *closeLog
	failAt    int
	submitted int
}

func (e *loggingEncoder) SubmitFrame(ctx context.Context, f *frame.Frame) error {
	if f != nil && e.failAt > 0 {
		e.submitted++
		if e.submitted >= e.failAt {
			return errInjected
		}
	}
	return e.Context.SubmitFrame(ctx, f)
}

func (e *loggingEncoder) Close(ctx context.Context) error {
	e.log.add(e.name)
	return e.Context.Close(ctx)
}

type loggingResamplerEngine struct {
	resampler.Engine
	log *closeLog
}

func (e loggingResamplerEngine) Configure(ctx context.Context, in, out audio.PCMFormat) (resampler.Context, error) {
	c, err := e.Engine.Configure(ctx, in, out)
	if err != nil {
		return nil, err
	}
	return &loggingResampler{Context: c, log: e.log}, nil
}

type loggingResampler struct {
	resampler.Context
	log *closeLog
}

func (r *loggingResampler) Close(ctx context.Context) error {
	r.log.add("resampler")
	return r.Context.Close(ctx)
}

type loggingOutputEngine struct {
	output.Engine
	log *closeLog
}

func (e loggingOutputEngine) Open(ctx context.Context, url, formatHint string) (output.Container, error) {
	c, err := e.Engine.Open(ctx, url, formatHint)
	if err != nil {
		return nil, err
	}
	return &loggingContainer{Container: c, log: e.log}, nil
}

type loggingContainer struct {
	output.Container
	log *closeLog
}

func (c *loggingContainer) Close(ctx context.Context) error {
	c.log.add("container")
	return c.Container.Close(ctx)
}

func newLoggingEngines(log *closeLog, memory *output.Memory, failVideoAt int) Engines {
	software := SoftwareEngines()
	return Engines{
		Resampler: loggingResamplerEngine{Engine: software.Resampler, log: log},
		Encoder:   loggingEncoderEngine{Engine: software.Encoder, log: log, failVideoAt: failVideoAt},
		Output:    loggingOutputEngine{Engine: memory, log: log},
	}
}

func TestMuxAbortReleasesInReverseOrder(t *testing.T) {
	ctx := context.Background()
	log := &closeLog{}
	memory := output.NewMemory()

	cfg := SoftwareMuxConfig()
	cfg.Audio.CodecName = "pcm_f32le"
	report, err := Mux(ctx, cfg, newLoggingEngines(log, memory, 10))
	require.Error(t, err)
	require.Nil(t, report)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageEncode, stageErr.Stage)
	require.Equal(t, 0, stageErr.Stream)
	require.Equal(t, types.MediaTypeVideo, stageErr.MediaType)
	require.ErrorIs(t, err, errInjected)
	require.ErrorIs(t, err, types.ErrProcessing)

	require.Equal(t, []string{"resampler", "encoder:audio", "encoder:video", "container"}, log.get())
	c := memory.Containers()[0]
	require.True(t, c.HeaderWritten())
	require.False(t, c.TrailerWritten())
	require.True(t, c.IsClosed())
}

func TestMuxSetupFailureReleasesAcquired(t *testing.T) {
	ctx := context.Background()
	log := &closeLog{}
	memory := output.NewMemory()

	cfg := SoftwareMuxConfig()
	cfg.Audio.CodecName = "aac"
	_, err := Mux(ctx, cfg, newLoggingEngines(log, memory, 0))
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageOpenEncoder, stageErr.Stage)
	require.Equal(t, NoStream, stageErr.Stream)
	require.Equal(t, types.MediaTypeAudio, stageErr.MediaType)
	require.ErrorIs(t, err, types.ErrConfiguration)

	require.Equal(t, []string{"encoder:video", "container"}, log.get())
	require.False(t, memory.Containers()[0].HeaderWritten())
}

func TestMuxInvalidConfig(t *testing.T) {
	ctx := context.Background()
	for name, mutate := range map[string]func(*MuxConfig){
		"no streams":    func(cfg *MuxConfig) { cfg.Video, cfg.Audio = nil, nil },
		"zero duration": func(cfg *MuxConfig) { cfg.Duration = types.Rational{} },
		"no output":     func(cfg *MuxConfig) { cfg.Output = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := SoftwareMuxConfig()
			mutate(&cfg)
			_, err := Mux(ctx, cfg, SoftwareEngines())
			require.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{
		Stage:     StageWrite,
		Stream:    1,
		MediaType: types.MediaTypeAudio,
		Err:       types.WithKind(types.ErrResource, errors.New("disk full")),
	}
	require.Contains(t, err.Error(), "write")
	require.Contains(t, err.Error(), "audio stream #1")
	require.ErrorIs(t, err, types.ErrResource)

	err = &StageError{Stage: StageOpenOutput, Stream: NoStream, Err: errors.New("nope")}
	require.NotContains(t, err.Error(), "#")
}
