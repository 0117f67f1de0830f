package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is everything hark reads from config.yaml, HARK_* variables and
// flags.
type Settings struct {
	Engine    EngineSettings `mapstructure:"engine"`
	Model     string         `mapstructure:"model"`
	ModelDir  string         `mapstructure:"model_dir"`
	Tokenizer string         `mapstructure:"tokenizer"`
	Device    string         `mapstructure:"device"`
	CPU       bool           `mapstructure:"cpu"`
	Audio     AudioSettings  `mapstructure:"audio"`
	Archive   string         `mapstructure:"archive"`
	HTTP      HTTPSettings   `mapstructure:"http"`
}

type EngineSettings struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AudioSettings struct {
	FrameSize      int           `mapstructure:"frame_size"`
	TailFrames     int           `mapstructure:"tail_frames"`
	LeadSilence    time.Duration `mapstructure:"lead_silence"`
	ResetOnEndWord bool          `mapstructure:"reset_on_end_word"`
}

type HTTPSettings struct {
	Addr      string `mapstructure:"addr"`
	MaxUpload int64  `mapstructure:"max_upload"`
	AudioDir  string `mapstructure:"audio_dir"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("model", "kyutai/stt-1b-en_fr-candle")
	v.SetDefault("device", "auto")
	v.SetDefault("audio.frame_size", 1920)
	v.SetDefault("audio.tail_frames", 32)
	v.SetDefault("archive", "hark.db")
	v.SetDefault("http.addr", ":8081")
	v.SetDefault("http.max_upload", 64<<20)
	v.SetDefault("http.audio_dir", "")
}

// Init points v at config.yaml (or file, when given) and the HARK_
// environment. A missing config file is not an error.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "hark"))
		}
	}
	v.SetEnvPrefix("HARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode config: %w", err)
	}
	if s.Audio.FrameSize <= 0 {
		return s, fmt.Errorf("audio.frame_size must be positive, got %d", s.Audio.FrameSize)
	}
	if s.Audio.TailFrames < 0 {
		return s, fmt.Errorf("audio.tail_frames must not be negative, got %d", s.Audio.TailFrames)
	}
	if s.Engine.Command != "" && s.Engine.URL != "" {
		return s, errors.New("set either engine.command or engine.url, not both")
	}
	return s, nil
}

// Store keeps config overrides in the archive so a server picks them up
// without editing files.
type Store interface {
	AllConfig(ctx context.Context) (map[string]string, error)
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// ErrNotFound is returned by Get for keys the store does not have.
var ErrNotFound = errors.New("config key not found")

// Config layers stored overrides on top of a viper instance.
type Config struct {
	store Store
	v     *viper.Viper
}

func New(store Store, v *viper.Viper) *Config {
	return &Config{store: store, v: v}
}

func (c *Config) Load(ctx context.Context) error {
	values, err := c.store.AllConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	for key, value := range values {
		c.v.Set(key, value)
	}
	return nil
}

func (c *Config) Get(ctx context.Context, key string) (string, error) {
	value, err := c.store.GetConfig(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to get config value: %w", err)
	}
	return value, nil
}

func (c *Config) Set(ctx context.Context, key, value string) error {
	if err := c.store.SetConfig(ctx, key, value); err != nil {
		return fmt.Errorf("failed to set config value: %w", err)
	}
	c.v.Set(key, value)
	return nil
}
