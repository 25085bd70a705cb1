package codec

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xaionaro-go/avencmux/types"
)

// Tuning is the set of encoder knobs beyond the basic stream parameters.
// Empty values are not passed to the encoder.
type Tuning struct {
	Preset  string `yaml:"preset,omitempty"`
	Tune    string `yaml:"tune,omitempty"`
	Profile string `yaml:"profile,omitempty"`

	// CodecParams is the codec-private parameter string, passed as
	// "x264-params" to libx264 and as "x265-params" to libx265,
	// e.g. "keyint=25:frame-threads=4".
	CodecParams string `yaml:"codec_params,omitempty"`

	RCMaxRate    int64 `yaml:"rc_max_rate,omitempty"`
	RCMinRate    int64 `yaml:"rc_min_rate,omitempty"`
	RCBufferSize int   `yaml:"rc_buffer_size,omitempty"`
	ThreadCount  int   `yaml:"threads,omitempty"`
	Refs         int   `yaml:"refs,omitempty"`

	// Options are passed to the encoder as is.
	Options map[string]string `yaml:"options,omitempty"`
}

type DictionaryItem struct {
	Key   string
	Value string
}

type DictionaryItems []DictionaryItem

func (items DictionaryItems) Get(key string) (string, bool) {
	for _, item := range items {
		if item.Key == key {
			return item.Value, true
		}
	}
	return "", false
}

// DictionaryItems returns the private options to apply to codecName.
func (t Tuning) DictionaryItems(codecName string) DictionaryItems {
	var result DictionaryItems
	add := func(key, value string) {
		if value == "" {
			return
		}
		result = append(result, DictionaryItem{Key: key, Value: value})
	}
	add("preset", t.Preset)
	add("tune", t.Tune)
	add("profile", t.Profile)
	switch codecName {
	case "libx264":
		add("x264-params", t.CodecParams)
	case "libx265":
		add("x265-params", t.CodecParams)
	}
	if t.ThreadCount > 0 {
		add("threads", strconv.Itoa(t.ThreadCount))
	}

	keys := make([]string, 0, len(t.Options))
	for key := range t.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		add(key, t.Options[key])
	}
	return result
}

// Family groups encoders producing the same bitstream.
type Family int

const (
	FamilyUnknown = Family(iota)
	FamilyH264
	FamilyH265
	FamilyAAC
	FamilyOpus
	FamilyPCM
	FamilyRawVideo
)

func (f Family) String() string {
	switch f {
	case FamilyH264:
		return "h264"
	case FamilyH265:
		return "hevc"
	case FamilyAAC:
		return "aac"
	case FamilyOpus:
		return "opus"
	case FamilyPCM:
		return "pcm"
	case FamilyRawVideo:
		return "rawvideo"
	default:
		return "unknown"
	}
}

func FamilyOf(codecName string) Family {
	name := strings.ToLower(codecName)
	switch {
	case name == "libx264" || name == "h264" || strings.HasPrefix(name, "h264_"):
		return FamilyH264
	case name == "libx265" || name == "hevc" || name == "h265" || strings.HasPrefix(name, "hevc_"):
		return FamilyH265
	case name == "aac" || name == "libfdk_aac" || strings.HasPrefix(name, "aac_"):
		return FamilyAAC
	case name == "libopus" || name == "opus":
		return FamilyOpus
	case strings.HasPrefix(name, "pcm_"):
		return FamilyPCM
	case name == "rawvideo":
		return FamilyRawVideo
	default:
		return FamilyUnknown
	}
}

// IsNVENC reports whether the encoder is an NVIDIA hardware one.
func IsNVENC(codecName string) bool {
	return strings.HasSuffix(codecName, "_nvenc")
}

// VideoTimeBase is the encoder time base to use for video: NVENC derives
// its rate control from the time base, so it gets 1/fps; everything else
// gets milliseconds.
func VideoTimeBase(codecName string, frameRate types.Rational) types.Rational {
	if IsNVENC(codecName) && frameRate.IsValid() {
		return frameRate.Reverse()
	}
	return types.R(1, 1000)
}
