package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/avencmux"
	"github.com/xaionaro-go/avencmux/types"
)

func newEncodeCommand(flags *globalFlags, cfg *config) *cobra.Command {
	var (
		duration    types.Rational
		codecName   string
		width       int
		height      int
		frameRate   types.Rational
		bitRate     int64
		gopSize     int
		bFrames     int
		preset      string
		tune        string
		profile     string
		codecParams string
		threads     int
	)
	cmd := &cobra.Command{
		Use:   "encode <output-file> [input.yuv]",
		Short: "encode raw YUV420P pictures (or a generated pattern) into an elementary stream ('-' is stdout)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := cfg.Encode
			v := &c.Video
			f := cmd.Flags()
			if f.Changed("duration") {
				c.Duration = duration
			}
			if f.Changed("codec") && codecName != v.CodecName {
				v.CodecName = codecName
				v.Tuning = avencmux.DefaultVideoTuning(codecName)
			}
			if f.Changed("width") {
				v.Width = width
			}
			if f.Changed("height") {
				v.Height = height
			}
			if f.Changed("fps") {
				v.FrameRate = frameRate
			}
			if f.Changed("bitrate") {
				v.BitRate = bitRate
			}
			if f.Changed("gop") {
				v.GOPSize = gopSize
			}
			if f.Changed("b-frames") {
				v.MaxBFrames = bFrames
			}
			if f.Changed("preset") {
				v.Tuning.Preset = preset
			}
			if f.Changed("tune") {
				v.Tuning.Tune = tune
			}
			if f.Changed("profile") {
				v.Tuning.Profile = profile
			}
			if f.Changed("codec-params") {
				v.Tuning.CodecParams = codecParams
			}
			if f.Changed("threads") {
				v.Tuning.ThreadCount = threads
			}

			if len(args) > 1 {
				in, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("unable to open '%s': %w", args[1], err)
				}
				defer in.Close()
				c.Input = bufio.NewReader(in)
			}

			out, err := createOutputFile(args[0])
			if err != nil {
				return err
			}
			report, err := avencmux.EncodeVideo(ctx, c, encoderEngine(flags.Engine), out)
			if err != nil {
				out.Abort(ctx)
				return err
			}
			if err := out.Finish(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, report)
			return nil
		},
	}
	cmd.Flags().Var(rationalValue{&duration}, "duration", "the duration of the generated pattern, in seconds (ignored with an input file)")
	cmd.Flags().StringVar(&codecName, "codec", "", "the video encoder, e.g. libx264, libx265 or h264_nvenc")
	cmd.Flags().IntVar(&width, "width", 0, "the picture width")
	cmd.Flags().IntVar(&height, "height", 0, "the picture height")
	cmd.Flags().Var(rationalValue{&frameRate}, "fps", "the frame rate")
	cmd.Flags().Var(bitRateValue{&bitRate}, "bitrate", "the bit rate, e.g. 3M")
	cmd.Flags().IntVar(&gopSize, "gop", 0, "the distance between keyframes")
	cmd.Flags().IntVar(&bFrames, "b-frames", 0, "the maximal amount of consecutive B-frames")
	cmd.Flags().StringVar(&preset, "preset", "", "the encoder preset")
	cmd.Flags().StringVar(&tune, "tune", "", "the encoder tune")
	cmd.Flags().StringVar(&profile, "profile", "", "the encoder profile")
	cmd.Flags().StringVar(&codecParams, "codec-params", "", "the codec-private parameters, e.g. keyint=25:frame-threads=4")
	cmd.Flags().IntVar(&threads, "threads", 0, "the amount of encoder threads")
	return cmd
}
