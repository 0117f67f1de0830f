package setup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"node.town/hark/config"
	"node.town/hark/stt"
)

// Answers holds what the wizard asks for.
type Answers struct {
	EngineKind string // "exec" or "remote"
	Command    string
	URL        string
	APIKey     string
	ModelDir   string
	Tokenizer  string
	Device     string
	Archive    string
}

// FromViper prefills the answers with whatever is already configured.
func FromViper(v *viper.Viper) Answers {
	a := Answers{
		EngineKind: "exec",
		Command:    strings.Join(append([]string{v.GetString("engine.command")}, v.GetStringSlice("engine.args")...), " "),
		URL:        v.GetString("engine.url"),
		APIKey:     v.GetString("engine.api_key"),
		ModelDir:   v.GetString("model_dir"),
		Tokenizer:  v.GetString("tokenizer"),
		Device:     v.GetString("device"),
		Archive:    v.GetString("archive"),
	}
	a.Command = strings.TrimSpace(a.Command)
	if a.URL != "" {
		a.EngineKind = "remote"
	}
	if a.Device == "" {
		a.Device = "auto"
	}
	return a
}

// Validate checks the answers before anything is written.
func (a Answers) Validate() error {
	switch a.EngineKind {
	case "exec":
		if strings.TrimSpace(a.Command) == "" {
			return errors.New("engine command is required")
		}
	case "remote":
		if !strings.HasPrefix(a.URL, "ws://") && !strings.HasPrefix(a.URL, "wss://") {
			return fmt.Errorf("engine url must be ws:// or wss://, got %q", a.URL)
		}
	default:
		return fmt.Errorf("unknown engine kind %q", a.EngineKind)
	}
	if a.ModelDir == "" && a.Tokenizer == "" {
		return errors.New("either a model directory or a tokenizer file is required")
	}
	if _, err := stt.ParseDevice(a.Device); err != nil {
		return err
	}
	return nil
}

// Apply stores the answers in v under the keys config.Load reads.
func (a Answers) Apply(v *viper.Viper) {
	switch a.EngineKind {
	case "exec":
		fields := strings.Fields(a.Command)
		v.Set("engine.command", fields[0])
		v.Set("engine.args", fields[1:])
		v.Set("engine.url", "")
		v.Set("engine.api_key", "")
	case "remote":
		v.Set("engine.command", "")
		v.Set("engine.args", []string{})
		v.Set("engine.url", a.URL)
		v.Set("engine.api_key", a.APIKey)
	}
	v.Set("model_dir", a.ModelDir)
	v.Set("tokenizer", a.Tokenizer)
	v.Set("device", a.Device)
	if a.Archive != "" {
		v.Set("archive", a.Archive)
	}
}

// Write saves v to path, creating the directory when needed.
func Write(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultPath is where setup writes when no config file is in use yet.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "hark", "config.yaml")
}

// Run asks for the engine, model and device settings and writes them to
// the config file v was loaded from, or DefaultPath.
func Run(v *viper.Viper, logger *log.Logger) error {
	logger.Info("Starting hark setup...")
	a := FromViper(v)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should hark reach the recognizer?").
				Options(
					huh.NewOption("Run a local engine process", "exec"),
					huh.NewOption("Connect to a remote engine", "remote"),
				).
				Value(&a.EngineKind),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Engine command (with arguments)").
				Value(&a.Command),
		).WithHideFunc(func() bool { return a.EngineKind != "exec" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Engine websocket URL").
				Placeholder("ws://localhost:8080/api/asr-streaming").
				Value(&a.URL),
			huh.NewInput().
				Title("API key (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
		).WithHideFunc(func() bool { return a.EngineKind != "remote" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Model directory (holds config.json)").
				Value(&a.ModelDir),
			huh.NewInput().
				Title("Tokenizer file (overrides the model directory)").
				Value(&a.Tokenizer),
			huh.NewSelect[string]().
				Title("Device").
				Options(huh.NewOptions("auto", string(stt.CPU), string(stt.CUDA), string(stt.Metal))...).
				Value(&a.Device),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup form: %w", err)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	a.Apply(v)

	path := v.ConfigFileUsed()
	if path == "" {
		path = DefaultPath()
	}
	if err := Write(v, path); err != nil {
		return err
	}
	if _, err := config.Load(v); err != nil {
		return fmt.Errorf("written config does not load: %w", err)
	}
	logger.Info("Setup completed", "config", path)
	return nil
}
