package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avencmux"
	"github.com/xaionaro-go/avencmux/codec"
	codeclibav "github.com/xaionaro-go/avencmux/codec/libav"
	"github.com/xaionaro-go/avencmux/output"
	outputlibav "github.com/xaionaro-go/avencmux/output/libav"
	"github.com/xaionaro-go/avencmux/output/matroska"
	"github.com/xaionaro-go/avencmux/output/mpegts"
	"github.com/xaionaro-go/avencmux/resampler"
	resamplerlibav "github.com/xaionaro-go/avencmux/resampler/libav"
	"github.com/xaionaro-go/avencmux/scheduler"
	"github.com/xaionaro-go/avencmux/types"
	"gopkg.in/yaml.v3"
)

const (
	engineLibav    = "libav"
	engineSoftware = "software"
)

var engines = []string{engineLibav, engineSoftware}

func checkEngine(name string) error {
	switch name {
	case engineLibav, engineSoftware:
		return nil
	}
	return fmt.Errorf("unknown engine '%s', expected one of: %s", name, strings.Join(engines, ", "))
}

const (
	outputEngineAuto     = "auto"
	outputEngineLibav    = "libav"
	outputEngineMPEGTS   = "mpegts"
	outputEngineMatroska = "matroska"
	outputEngineMemory   = "memory"
)

type config struct {
	Resample avencmux.ResampleConfig    `yaml:"resample"`
	Mux      avencmux.MuxConfig         `yaml:"mux"`
	Encode   avencmux.EncodeVideoConfig `yaml:"encode"`

	// OutputEngine is one of "auto", "libav", "mpegts", "matroska" and "memory".
	OutputEngine string `yaml:"output_engine"`
}

func defaultConfig() *config {
	return &config{
		Resample:     avencmux.DefaultResampleConfig(),
		Mux:          avencmux.DefaultMuxConfig(),
		Encode:       avencmux.DefaultEncodeVideoConfig(),
		OutputEngine: outputEngineAuto,
	}
}

// useEngineDefaults switches the default codecs to the ones the engine has.
func (cfg *config) useEngineDefaults(engine string) {
	if engine != engineSoftware {
		return
	}
	cfg.Mux = avencmux.SoftwareMuxConfig()
	cfg.Mux.Output = "output.mkv"
	cfg.Encode.Video.CodecName = "rawvideo"
}

func (cfg *config) load(filePath string) error {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("unable to read the config file '%s': %w", filePath, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("unable to parse the config file '%s': %w", filePath, err)
	}
	return nil
}

func resamplerEngine(name string) resampler.Engine {
	if name == engineSoftware {
		return resampler.NewSoftware()
	}
	return resamplerlibav.New()
}

func encoderEngine(name string) codec.Engine {
	if name == engineSoftware {
		return codec.NewSoftware(codec.SoftwareConfig{})
	}
	return codeclibav.New()
}

func outputEngineFor(name, url, formatHint string) (output.Engine, error) {
	if name == outputEngineAuto {
		format := formatHint
		if format == "" {
			format = output.GuessFormat(url)
		}
		switch format {
		case "mpegts":
			name = outputEngineMPEGTS
		case "matroska", "webm":
			name = outputEngineMatroska
		default:
			name = outputEngineLibav
		}
	}
	switch name {
	case outputEngineLibav:
		return outputlibav.New(), nil
	case outputEngineMPEGTS:
		return mpegts.New(), nil
	case outputEngineMatroska:
		return matroska.New(), nil
	case outputEngineMemory:
		return output.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown output engine '%s'", name)
}

func isStdout(filePath string) bool {
	return filePath == "-" || path.Clean(filePath) == "/dev/stdout"
}

// bitRateValue parses bit rates like "400k" or "3M".
type bitRateValue struct {
	v *int64
}

var _ pflag.Value = bitRateValue{}

func (b bitRateValue) String() string {
	if b.v == nil {
		return ""
	}
	return humanize.SI(float64(*b.v), "")
}

func (b bitRateValue) Set(s string) error {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("unable to parse bit rate '%s': %w", s, err)
	}
	*b.v = int64(v)
	return nil
}

func (bitRateValue) Type() string {
	return "bitrate"
}

// rationalValue parses "1/25", "25", "0.04" or "~29.97".
type rationalValue struct {
	v *types.Rational
}

var _ pflag.Value = rationalValue{}

func (r rationalValue) String() string {
	if r.v == nil {
		return ""
	}
	return r.v.String()
}

func (r rationalValue) Set(s string) error {
	v, err := types.RationalFromString(s)
	if err != nil {
		return err
	}
	*r.v = *v
	return nil
}

func (rationalValue) Type() string {
	return "rational"
}

// sampleFormatValue parses sample format names like "s16" or "fltp".
type sampleFormatValue struct {
	v *types.SampleFormat
}

var _ pflag.Value = sampleFormatValue{}

func (f sampleFormatValue) String() string {
	if f.v == nil {
		return ""
	}
	return f.v.String()
}

func (f sampleFormatValue) Set(s string) error {
	return f.v.UnmarshalText([]byte(s))
}

func (sampleFormatValue) Type() string {
	return "sample-format"
}

// priorityValue parses a tie-break order like "audio,video".
type priorityValue struct {
	v *scheduler.Priority
}

var _ pflag.Value = priorityValue{}

func (p priorityValue) String() string {
	if p.v == nil {
		return ""
	}
	return p.v.String()
}

func (p priorityValue) Set(s string) error {
	return p.v.UnmarshalText([]byte(s))
}

func (priorityValue) Type() string {
	return "media-types"
}
