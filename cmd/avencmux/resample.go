package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/avencmux"
	"github.com/xaionaro-go/avencmux/types"
)

func newResampleCommand(flags *globalFlags, cfg *config) *cobra.Command {
	var (
		duration     types.Rational
		chunkSize    int
		inRate       int
		outRate      int
		outFormat    types.SampleFormat
		outLayoutStr string
	)
	cmd := &cobra.Command{
		Use:   "resample [output.pcm]",
		Short: "convert a generated tone and write raw PCM ('-' is stdout; no argument only measures)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := cfg.Resample
			f := cmd.Flags()
			if f.Changed("duration") {
				c.Duration = duration
			}
			if f.Changed("chunk-size") {
				c.ChunkSize = chunkSize
			}
			if f.Changed("in-rate") {
				c.Input.SampleRate = inRate
			}
			if f.Changed("out-rate") {
				c.Output.SampleRate = outRate
			}
			if f.Changed("out-sample-format") {
				c.Output.SampleFormat = outFormat
			}
			if f.Changed("out-channel-layout") {
				if err := c.Output.ChannelLayout.UnmarshalText([]byte(outLayoutStr)); err != nil {
					return err
				}
			}

			var (
				w        io.Writer
				out      *outputFile
				filePath string
			)
			if len(args) > 0 {
				filePath = args[0]
				var err error
				out, err = createOutputFile(filePath)
				if err != nil {
					return err
				}
				w = out
			}

			report, err := avencmux.Resample(ctx, c, resamplerEngine(flags.Engine), w)
			if err != nil {
				if out != nil {
					out.Abort(ctx)
				}
				return err
			}
			if out != nil {
				if err := out.Finish(); err != nil {
					return err
				}
			}
			fmt.Fprintln(os.Stderr, report)
			if filePath != "" && !isStdout(filePath) {
				fmt.Fprintf(os.Stderr, "play the output with:\n\t%s\n", avencmux.PlaybackHint(c.Output, filePath))
			}
			return nil
		},
	}
	cmd.Flags().Var(rationalValue{&duration}, "duration", "the duration of the input, in seconds")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "the amount of input samples converted per call")
	cmd.Flags().IntVar(&inRate, "in-rate", 0, "the sample rate of the generated tone")
	cmd.Flags().IntVar(&outRate, "out-rate", 0, "the output sample rate")
	cmd.Flags().Var(sampleFormatValue{&outFormat}, "out-sample-format", "the output sample format (packed only)")
	cmd.Flags().StringVar(&outLayoutStr, "out-channel-layout", "", "the output channel layout")
	return cmd
}
