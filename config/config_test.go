package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	s, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Audio.FrameSize != 1920 || s.Audio.TailFrames != 32 {
		t.Errorf("audio = %+v", s.Audio)
	}
	if s.Model != "kyutai/stt-1b-en_fr-candle" {
		t.Errorf("Model = %q", s.Model)
	}
	if s.HTTP.Addr != ":8081" {
		t.Errorf("HTTP.Addr = %q", s.HTTP.Addr)
	}
	if s.HTTP.AudioDir != "" {
		t.Errorf("HTTP.AudioDir = %q, want empty", s.HTTP.AudioDir)
	}
}

func TestInitReadsFileAndEnvironment(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hark.yaml", `
engine:
  command: stt-engine
  args: ["--hf-repo", "kyutai/stt-1b-en_fr-candle"]
  timeout: 30s
audio:
  tail_frames: 8
  lead_silence: 1s
tokenizer: /models/tokenizer.model
`)
	t.Setenv("HARK_DEVICE", "cuda")

	v := viper.New()
	if err := Init(v, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	s, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.Engine.Command != "stt-engine" || len(s.Engine.Args) != 2 {
		t.Errorf("engine = %+v", s.Engine)
	}
	if s.Engine.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", s.Engine.Timeout)
	}
	if s.Audio.TailFrames != 8 || s.Audio.LeadSilence != time.Second {
		t.Errorf("audio = %+v", s.Audio)
	}
	if s.Audio.FrameSize != 1920 {
		t.Errorf("FrameSize = %d, want default 1920", s.Audio.FrameSize)
	}
	if s.Device != "cuda" {
		t.Errorf("Device = %q, want cuda from environment", s.Device)
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"zero frame size", map[string]any{"audio.frame_size": 0}},
		{"negative tail", map[string]any{"audio.tail_frames": -1}},
		{"two engines", map[string]any{"engine.command": "a", "engine.url": "ws://b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			for k, val := range tt.set {
				v.Set(k, val)
			}
			if _, err := Load(v); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadModelConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{
		"mimi_name": "mimi-pytorch-e351c8d8@125.safetensors",
		"tokenizer_name": "tokenizer_en_fr_audio_8000.model",
		"card": 2048, "text_card": 8000, "dim": 2048, "n_q": 32,
		"context": 750, "max_period": 100000.0, "num_heads": 16,
		"num_layers": 16, "causal": true
	}`)

	mc, err := LoadModelConfig(dir)
	if err != nil {
		t.Fatalf("LoadModelConfig: %v", err)
	}
	if mc.TextCard != 8000 || mc.NQ != 32 || !mc.Causal {
		t.Errorf("config = %+v", mc)
	}
	if want := filepath.Join(dir, "tokenizer_en_fr_audio_8000.model"); mc.TokenizerPath() != want {
		t.Errorf("TokenizerPath() = %q, want %q", mc.TokenizerPath(), want)
	}

	path, err := ResolveTokenizer(Settings{ModelDir: dir})
	if err != nil || path != mc.TokenizerPath() {
		t.Errorf("ResolveTokenizer = %q, %v", path, err)
	}
	path, err = ResolveTokenizer(Settings{ModelDir: dir, Tokenizer: "/x.model"})
	if err != nil || path != "/x.model" {
		t.Errorf("explicit ResolveTokenizer = %q, %v", path, err)
	}
}

func TestLoadModelConfigErrors(t *testing.T) {
	if _, err := LoadModelConfig(t.TempDir()); err == nil {
		t.Error("expected error for missing config.json")
	}
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"dim": 1}`)
	if _, err := LoadModelConfig(dir); err == nil {
		t.Error("expected error for missing tokenizer_name")
	}
	if _, err := ResolveTokenizer(Settings{}); err == nil {
		t.Error("expected error with neither tokenizer nor model_dir")
	}
}

type memStore map[string]string

func (m memStore) AllConfig(ctx context.Context) (map[string]string, error) {
	return m, nil
}

func (m memStore) GetConfig(ctx context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m memStore) SetConfig(ctx context.Context, key, value string) error {
	m[key] = value
	return nil
}

func TestConfigOverrides(t *testing.T) {
	ctx := context.Background()
	store := memStore{"device": "metal"}
	v := viper.New()
	SetDefaults(v)
	c := New(store, v)

	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.GetString("device") != "metal" {
		t.Errorf("device = %q, want metal", v.GetString("device"))
	}

	if err := c.Set(ctx, "engine.url", "ws://gpu:8080/api/asr-streaming"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v.GetString("engine.url") != "ws://gpu:8080/api/asr-streaming" {
		t.Errorf("engine.url not applied")
	}
	got, err := c.Get(ctx, "engine.url")
	if err != nil || got != "ws://gpu:8080/api/asr-streaming" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if _, err := c.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nope) err = %v, want ErrNotFound", err)
	}
}
