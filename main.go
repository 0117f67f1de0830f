package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/hark/config"
	"node.town/hark/db"
	"node.town/hark/setup"
	"node.town/hark/stt"
	"node.town/hark/transcription"
	"node.town/hark/txt"
)

var (
	logger  *log.Logger
	cfgFile string
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./config.yaml or ~/.config/hark/config.yaml)")
	flags.Bool("debug", false, "Log at debug level")
	flags.String("archive", "", "SQLite archive path (empty string disables archiving)")
	flags.Bool("cpu", false, "Run the engine on the CPU even when an accelerator is present")
	flags.String("device", "", "Engine device: auto, cpu, cuda or metal")
	flags.String("tokenizer", "", "SentencePiece tokenizer model file")
	flags.String("model", "", "Model repository sent to the engine")
	flags.String("model-dir", "", "Model directory holding config.json")
	flags.String("engine", "", "Local engine command")
	flags.String("engine-url", "", "Remote engine websocket URL")

	for key, flag := range map[string]string{
		"debug":          "debug",
		"archive":        "archive",
		"cpu":            "cpu",
		"device":         "device",
		"tokenizer":      "tokenizer",
		"model":          "model",
		"model_dir":      "model-dir",
		"engine.command": "engine",
		"engine.url":     "engine-url",
	} {
		viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(setupCmd)
}

func initConfig() {
	logger = log.New(os.Stderr)
	if err := config.Init(viper.GetViper(), cfgFile); err != nil {
		logger.Error("read config", "error", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hark",
	Short: "Hark streams audio files through a speech recognizer",
	Long: `Hark feeds audio to a streaming speech-to-text engine frame by frame and
prints the recognized text as it arrives.`,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a config file interactively",
	Run: func(cmd *cobra.Command, args []string) {
		mainLogger, _, _, _, _ := createLoggers()
		if err := setup.Run(viper.GetViper(), mainLogger); err != nil {
			mainLogger.Fatal("setup", "error", err)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadSettings(mainLogger *log.Logger) config.Settings {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		mainLogger.Fatal("load config", "error", err)
	}
	return s
}

// openArchive opens the archive and layers its stored config overrides
// onto viper. It returns nil when archiving is disabled.
func openArchive(ctx context.Context, s config.Settings, dataLogger *log.Logger, confirm db.Confirm) (*db.Archive, error) {
	if s.Archive == "" {
		return nil, nil
	}
	archive, err := db.Open(s.Archive, dataLogger, confirm)
	if err != nil {
		return nil, err
	}
	if err := config.New(archive, viper.GetViper()).Load(ctx); err != nil {
		archive.Close()
		return nil, err
	}
	return archive, nil
}

// resolveDevice honors an explicit device setting, otherwise probes.
func resolveDevice(s config.Settings, probes []stt.Probe) (stt.Device, error) {
	d, err := stt.ParseDevice(s.Device)
	if err != nil {
		return "", err
	}
	if d != "" && !s.CPU {
		return d, nil
	}
	return stt.SelectDevice(s.CPU, probes), nil
}

func newEngine(s config.Settings, hearLogger *log.Logger) (stt.Engine, error) {
	switch {
	case s.Engine.URL != "":
		return &stt.RemoteEngine{
			URL:     s.Engine.URL,
			APIKey:  s.Engine.APIKey,
			Timeout: s.Engine.Timeout,
		}, nil
	case s.Engine.Command != "":
		return &stt.ExecEngine{
			Command: s.Engine.Command,
			Args:    s.Engine.Args,
			Logger:  hearLogger,
		}, nil
	default:
		return nil, errors.New("no engine configured; set engine.command or engine.url (or run hark setup)")
	}
}

// sessionFactory loads the engine and tokenizer once and returns a
// constructor for per-run sessions sharing them.
func sessionFactory(
	s config.Settings,
	device stt.Device,
	hearLogger, textLogger *log.Logger,
	observer transcription.Observer,
) (func(transcription.Sink) *transcription.Session, error) {
	engine, err := newEngine(s, hearLogger)
	if err != nil {
		return nil, err
	}
	path, err := config.ResolveTokenizer(s)
	if err != nil {
		return nil, err
	}
	tok, err := txt.LoadSentencePiece(path)
	if err != nil {
		return nil, err
	}
	textLogger.Debug("tokenizer loaded", "path", path, "vocab", tok.VocabularySize())

	return func(sink transcription.Sink) *transcription.Session {
		sess := transcription.NewSession(engine, tok, sink)
		if s.Model != "" {
			sess.Params.Model = s.Model
		}
		sess.Params.Device = device
		sess.Params.FrameSize = s.Audio.FrameSize
		sess.TailFrames = s.Audio.TailFrames
		sess.LeadSilence = s.Audio.LeadSilence
		sess.ResetOnEndWord = s.Audio.ResetOnEndWord
		sess.Observer = observer
		sess.Logger = textLogger
		return sess
	}, nil
}

func createLoggers() (mainLogger, hearLogger, textLogger, dataLogger, httpLogger *log.Logger) {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	logLevel := log.InfoLevel
	if viper.GetBool("debug") {
		logLevel = log.DebugLevel
		logger.SetReportCaller(true)
	}
	logger.SetLevel(logLevel)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	for _, level := range []log.Level{log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel} {
		styles.Levels[level] = styles.Levels[level].
			MaxWidth(5).
			MarginRight(1).
			Bold(false)
	}
	styles.Message = styles.Message.Bold(true).Width(20)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	mainLogger = logger.With().WithPrefix("main")
	hearLogger = logger.With().WithPrefix("hear")
	textLogger = logger.With().WithPrefix("text")
	dataLogger = logger.With().WithPrefix("data")
	httpLogger = logger.With().WithPrefix("http")

	return
}
