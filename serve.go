package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"node.town/hark/db"
	"node.town/hark/http"
	"node.town/hark/metrics"
	"node.town/hark/stt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8081)")
	serveCmd.Flags().String("audio-dir", "", "Directory /listen reads audio files from (empty disables /listen)")
	viper.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("http.audio_dir", serveCmd.Flags().Lookup("audio-dir"))
}

func runServe(cmd *cobra.Command, args []string) {
	mainLogger, hearLogger, textLogger, dataLogger, httpLogger := createLoggers()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := loadSettings(mainLogger)
	archive, err := openArchive(ctx, s, dataLogger, db.AlwaysConfirm)
	if err != nil {
		mainLogger.Fatal("open archive", "error", err)
	}
	if archive != nil {
		defer archive.Close()
		s = loadSettings(mainLogger)
	}

	device, err := resolveDevice(s, stt.DefaultProbes())
	if err != nil {
		mainLogger.Fatal("select device", "error", err)
	}
	mainLogger.Info("Using device", "device", device)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, reg)

	newSession, err := sessionFactory(s, device, hearLogger, textLogger, m)
	if err != nil {
		mainLogger.Fatal("prepare session", "error", err)
	}

	opts := http.Options{
		Sessions:  newSession,
		Metrics:   m,
		AudioDir:  s.HTTP.AudioDir,
		MaxUpload: s.HTTP.MaxUpload,
		Logger:    httpLogger,
	}
	if archive != nil {
		opts.Archive = archive
	}
	server := http.NewServer(opts)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, s.HTTP.Addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		mainLogger.Info("shutting down")
		return nil
	})
	if err := g.Wait(); err != nil {
		mainLogger.Fatal("serve", "error", err)
	}
}
