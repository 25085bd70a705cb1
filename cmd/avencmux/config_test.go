package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/scheduler"
	"github.com/xaionaro-go/avencmux/types"
	"gopkg.in/yaml.v3"
)

func TestConfigLoadsPriority(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte("mux:\n  priority: audio,video\n"), 0o644))

	cfg := defaultConfig()
	require.Equal(t, scheduler.DefaultPriority(), cfg.Mux.Priority)
	require.NoError(t, cfg.load(filePath))
	require.Equal(t, scheduler.Priority{types.MediaTypeAudio: 0, types.MediaTypeVideo: 1}, cfg.Mux.Priority)
	require.Equal(t, "output.flv", cfg.Mux.Output)

	b, err := yaml.Marshal(map[string]scheduler.Priority{"priority": cfg.Mux.Priority})
	require.NoError(t, err)
	require.Contains(t, string(b), "priority: audio,video")
}

func TestConfigRejectsInvalidPriority(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte("mux:\n  priority: video,subtitle\n"), 0o644))
	require.Error(t, defaultConfig().load(filePath))
}

func TestPriorityFlag(t *testing.T) {
	var p scheduler.Priority
	v := priorityValue{&p}
	require.NoError(t, v.Set("audio,video"))
	require.Equal(t, "audio,video", v.String())
	require.Error(t, v.Set("audio,audio"))
}
