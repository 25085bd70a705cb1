package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/avencmux/avconv"
	"github.com/xaionaro-go/observability"
)

type globalFlags struct {
	LogLevel     logger.Level
	NetPprofAddr string
	ConfigPath   string
	Engine       string
}

func main() {
	flags := &globalFlags{
		LogLevel: logger.LevelWarning,
		Engine:   engineLibav,
	}
	cfg := defaultConfig()
	ctx := context.Background()

	root := &cobra.Command{
		Use:           "avencmux",
		Short:         "resample audio, encode video and mux synthetic streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := checkEngine(flags.Engine); err != nil {
				return err
			}
			ctx = initLogging(cmd.Context(), flags)
			cmd.SetContext(ctx)
			cfg.useEngineDefaults(flags.Engine)
			if flags.ConfigPath == "" {
				return nil
			}
			return cfg.load(flags.ConfigPath)
		},
	}
	root.PersistentFlags().Var(&flags.LogLevel, "log-level", "Log level")
	root.PersistentFlags().StringVar(&flags.NetPprofAddr, "net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "a YAML file with the settings (flags override it)")
	root.PersistentFlags().StringVar(&flags.Engine, "engine", flags.Engine, "the resampling/encoding engine: "+strings.Join(engines, ", "))

	root.AddCommand(
		newResampleCommand(flags, cfg),
		newMuxCommand(flags, cfg),
		newEncodeCommand(flags, cfg),
	)

	err := root.ExecuteContext(ctx)
	belt.Flush(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func initLogging(ctx context.Context, flags *globalFlags) context.Context {
	l := logrus.Default().WithLevel(flags.LogLevel)
	ctx = logger.CtxWithLogger(ctx, l)
	logger.Default = func() logger.Logger {
		return l
	}

	if flags.NetPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(flags.NetPprofAddr, nil)) })
	}

	if flags.Engine == engineLibav {
		astiav.SetLogLevel(avconv.LogLevelToAstiav(l.Level()))
		astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, fmt, msg string) {
			var cs string
			if c != nil {
				if cl := c.Class(); cl != nil {
					cs = " - class: " + cl.String()
				}
			}
			l.Logf(
				avconv.LogLevelFromAstiav(level),
				"%s%s",
				strings.TrimSpace(msg), cs,
			)
		})
	}
	return ctx
}
