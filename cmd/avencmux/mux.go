package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/avencmux"
	"github.com/xaionaro-go/avencmux/scheduler"
	"github.com/xaionaro-go/avencmux/types"
)

func newMuxCommand(flags *globalFlags, cfg *config) *cobra.Command {
	var (
		duration     types.Rational
		format       string
		outputEngine string
		videoCodec   string
		audioCodec   string
		noVideo      bool
		noAudio      bool
		width        int
		height       int
		frameRate    types.Rational
		videoBitRate int64
		audioBitRate int64
		sampleRate   int
		priority     scheduler.Priority
	)
	cmd := &cobra.Command{
		Use:   "mux [output-url]",
		Short: "encode a generated picture and tone and mux them into a container",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := cfg.Mux
			if c.Video != nil {
				v := *c.Video
				c.Video = &v
			}
			if c.Audio != nil {
				a := *c.Audio
				c.Audio = &a
			}
			if len(args) > 0 {
				c.Output = args[0]
			}

			f := cmd.Flags()
			if f.Changed("duration") {
				c.Duration = duration
			}
			if f.Changed("format") {
				c.Format = format
			}
			if f.Changed("priority") {
				c.Priority = priority
			}
			if noVideo {
				c.Video = nil
			}
			if noAudio {
				c.Audio = nil
			}
			if c.Video != nil {
				if f.Changed("video-codec") {
					c.Video.CodecName = videoCodec
				}
				if f.Changed("width") {
					c.Video.Width = width
				}
				if f.Changed("height") {
					c.Video.Height = height
				}
				if f.Changed("fps") {
					c.Video.FrameRate = frameRate
				}
				if f.Changed("video-bitrate") {
					c.Video.BitRate = videoBitRate
				}
			}
			if c.Audio != nil {
				if f.Changed("audio-codec") {
					c.Audio.CodecName = audioCodec
				}
				if f.Changed("audio-bitrate") {
					c.Audio.BitRate = audioBitRate
				}
				if f.Changed("sample-rate") {
					c.Audio.SampleRate = sampleRate
				}
			}

			engineName := cfg.OutputEngine
			if f.Changed("output-engine") {
				engineName = outputEngine
			}
			out, err := outputEngineFor(engineName, c.Output, c.Format)
			if err != nil {
				return err
			}

			report, err := avencmux.Mux(ctx, c, avencmux.Engines{
				Resampler: resamplerEngine(flags.Engine),
				Encoder:   encoderEngine(flags.Engine),
				Output:    out,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, report)
			return nil
		},
	}
	cmd.Flags().Var(rationalValue{&duration}, "duration", "the duration of the streams, in seconds")
	cmd.Flags().StringVar(&format, "format", "", "the container format (guessed from the URL by default)")
	cmd.Flags().StringVar(&outputEngine, "output-engine", outputEngineAuto, "the container engine: auto, libav, mpegts, matroska or memory")
	cmd.Flags().StringVar(&videoCodec, "video-codec", "", "the video encoder")
	cmd.Flags().StringVar(&audioCodec, "audio-codec", "", "the audio encoder")
	cmd.Flags().BoolVar(&noVideo, "no-video", false, "do not produce the video stream")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "do not produce the audio stream")
	cmd.Flags().IntVar(&width, "width", 0, "the picture width")
	cmd.Flags().IntVar(&height, "height", 0, "the picture height")
	cmd.Flags().Var(rationalValue{&frameRate}, "fps", "the frame rate")
	cmd.Flags().Var(bitRateValue{&videoBitRate}, "video-bitrate", "the video bit rate, e.g. 400k")
	cmd.Flags().Var(bitRateValue{&audioBitRate}, "audio-bitrate", "the audio bit rate, e.g. 64k")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 0, "the audio sample rate")
	cmd.Flags().Var(priorityValue{&priority}, "priority", "the order of media types winning ties between streams, e.g. audio,video")
	return cmd
}
