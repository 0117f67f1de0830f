package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/hark/config"
	"node.town/hark/db"
	"node.town/hark/snd"
	"node.town/hark/stt"
	"node.town/hark/transcription"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe an audio file, printing words as they are recognized",
	Long: `Load an audio file, resample it to 24kHz mono, feed it to the engine in
1920-sample frames followed by silent tail frames, and print each decoded
fragment as soon as it is known.`,
	Args: cobra.ExactArgs(1),
	Run:  runTranscribe,
}

func runTranscribe(cmd *cobra.Command, args []string) {
	mainLogger, hearLogger, textLogger, dataLogger, _ := createLoggers()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := loadSettings(mainLogger)
	archive, err := openArchive(ctx, s, dataLogger, db.AlwaysConfirm)
	if err != nil {
		mainLogger.Fatal("open archive", "error", err)
	}
	// Fatal exits without running deferred calls, so the archive is
	// closed by hand first.
	fatal := func(msg string, keyvals ...interface{}) {
		if archive != nil {
			archive.Close()
		}
		mainLogger.Fatal(msg, keyvals...)
	}
	if archive != nil {
		defer archive.Close()
		if s, err = config.Load(viper.GetViper()); err != nil {
			fatal("load config", "error", err)
		}
	}

	device, err := resolveDevice(s, stt.DefaultProbes())
	if err != nil {
		fatal("select device", "error", err)
	}
	fmt.Fprintf(os.Stderr, "Using device: %s\n", device)

	newSession, err := sessionFactory(s, device, hearLogger, textLogger, nil)
	if err != nil {
		fatal("prepare session", "error", err)
	}

	res, err := transcribeFile(ctx, newSession, archive, args[0], os.Stdout, dataLogger)
	if err != nil {
		fatal("transcribe", "stage", transcription.StageOf(err), "error", err)
	}
	mainLogger.Info("done",
		"frames", res.Frames,
		"tokens", res.Tokens,
		"degenerate", res.Degenerate,
		"elapsed", res.Elapsed,
	)
}

// transcribeFile streams the file at path through a new session, writing
// fragments to w, and archives the outcome when archive is non-nil. A
// failed session is archived before its error is returned.
func transcribeFile(
	ctx context.Context,
	newSession func(transcription.Sink) *transcription.Session,
	archive *db.Archive,
	path string,
	w io.Writer,
	dataLogger *log.Logger,
) (transcription.Result, error) {
	wave, err := snd.Load(ctx, path)
	if err != nil {
		return transcription.Result{}, err
	}
	dataLogger.Debug("loaded audio", "path", path, "rate", wave.SampleRate, "duration", wave.Duration())

	out := bufio.NewWriter(w)
	sess := newSession(transcription.NewWriterSink(out))
	res, runErr := sess.Run(ctx, wave)
	fmt.Fprintln(out)
	out.Flush()

	if archive != nil {
		id, err := archive.Save(ctx, db.Record(filepath.Base(path), sess.Params, res, runErr))
		if err != nil {
			dataLogger.Warn("archive transcript", "error", err)
		} else {
			dataLogger.Debug("archived", "id", id)
		}
	}
	return res, runErr
}
