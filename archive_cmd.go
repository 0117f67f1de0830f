package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/hark/config"
	"node.town/hark/db"
)

var listCmd = &cobra.Command{
	Use:   "ls",
	Short: "List archived transcripts",
	Run:   runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one archived transcript",
	Args:  cobra.ExactArgs(1),
	Run:   runShow,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending archive migrations, asking before each one",
	Run: func(cmd *cobra.Command, args []string) {
		mainLogger, _, _, dataLogger, _ := createLoggers()
		s := loadSettings(mainLogger)
		if s.Archive == "" {
			mainLogger.Fatal("no archive configured")
		}
		archive, err := db.Open(s.Archive, dataLogger, db.AskConfirm)
		if err != nil {
			mainLogger.Fatal("migrate", "error", err)
		}
		archive.Close()
		mainLogger.Info("archive is up to date", "path", s.Archive)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write settings stored in the archive",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a stored setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mainLogger, archive := mustArchive()
		defer archive.Close()
		ctx := context.Background()

		if len(args) == 1 {
			value, err := config.New(archive, viper.GetViper()).Get(ctx, args[0])
			if err != nil {
				mainLogger.Fatal("config get", "error", err)
			}
			fmt.Println(value)
			return
		}
		values, err := archive.AllConfig(ctx)
		if err != nil {
			mainLogger.Fatal("config get", "error", err)
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s=%s\n", k, values[k])
		}
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting that overrides config.yaml",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		mainLogger, archive := mustArchive()
		defer archive.Close()
		if err := config.New(archive, viper.GetViper()).Set(context.Background(), args[0], args[1]); err != nil {
			mainLogger.Fatal("config set", "error", err)
		}
		if _, err := config.Load(viper.GetViper()); err != nil {
			mainLogger.Warn("stored setting makes the config invalid", "key", args[0], "error", err)
		}
	},
}

func init() {
	listCmd.Flags().Int("limit", 50, "Number of transcripts to list")
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func mustArchive() (*log.Logger, *db.Archive) {
	mainLogger, _, _, dataLogger, _ := createLoggers()
	s := loadSettings(mainLogger)
	if s.Archive == "" {
		mainLogger.Fatal("no archive configured")
	}
	archive, err := db.Open(s.Archive, dataLogger, db.AlwaysConfirm)
	if err != nil {
		mainLogger.Fatal("open archive", "error", err)
	}
	return mainLogger, archive
}

func runList(cmd *cobra.Command, args []string) {
	mainLogger, archive := mustArchive()
	defer archive.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	ts, err := archive.Recent(context.Background(), limit)
	if err != nil {
		mainLogger.Fatal("list transcripts", "error", err)
	}
	if len(ts) == 0 {
		fmt.Println("No transcripts found.")
		return
	}
	renderTranscripts(os.Stdout, ts)
}

func renderTranscripts(w io.Writer, ts []db.Transcript) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Created At", "Source", "Device", "Frames", "Tokens", "Status", "Text"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, t := range ts {
		table.Append([]string{
			t.ID,
			t.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			t.Source,
			t.Device,
			fmt.Sprintf("%d", t.Frames),
			fmt.Sprintf("%d", t.Tokens),
			t.Status,
			preview(t.Text, 48),
		})
	}
	table.Render()
}

// preview trims text to at most n runes for a table cell.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}

func runShow(cmd *cobra.Command, args []string) {
	mainLogger, archive := mustArchive()
	defer archive.Close()

	t, err := archive.Get(context.Background(), args[0])
	if err != nil {
		mainLogger.Fatal("show transcript", "error", err)
	}
	printTranscript(os.Stdout, t)
}

func printTranscript(w io.Writer, t db.Transcript) {
	fmt.Fprintf(w, "id:      %s\n", t.ID)
	fmt.Fprintf(w, "source:  %s\n", t.Source)
	fmt.Fprintf(w, "created: %s\n", t.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "model:   %s on %s\n", t.Model, t.Device)
	fmt.Fprintf(w, "frames:  %d, tokens: %d (%d degenerate), %s\n", t.Frames, t.Tokens, t.Degenerate, t.Elapsed)
	fmt.Fprintf(w, "status:  %s\n", t.Status)
	if t.Error != "" {
		fmt.Fprintf(w, "error:   %s\n", t.Error)
	}
	fmt.Fprintf(w, "\n%s\n", t.Text)
}
