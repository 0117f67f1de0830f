package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	"node.town/hark/config"
	"node.town/hark/etc"
	"node.town/hark/stt"
	"node.town/hark/transcription"
)

// Status values stored for a transcript.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

var ErrNotFound = errors.New("transcript not found")

// Transcript is one archived session.
type Transcript struct {
	ID         string
	Source     string
	Model      string
	Device     string
	SampleRate int
	Frames     int
	Tokens     int
	Degenerate int
	Text       string
	Status     string
	Error      string
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Record builds the archive row for a session that ran on source.
func Record(source string, params stt.Params, res transcription.Result, err error) Transcript {
	t := Transcript{
		Source:     source,
		Model:      params.Model,
		Device:     string(res.Device),
		SampleRate: params.SampleRate,
		Frames:     res.Frames,
		Tokens:     res.Tokens,
		Degenerate: res.Degenerate,
		Text:       res.Text,
		Status:     StatusDone,
		Elapsed:    res.Elapsed,
	}
	if err != nil {
		t.Status = StatusFailed
		t.Error = err.Error()
	}
	return t
}

// Archive stores finished and failed transcription sessions in SQLite.
type Archive struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens the archive at path (":memory:" works) and brings the schema
// up to date, asking confirm before each pending migration.
func Open(path string, logger *log.Logger, confirm Confirm) (*Archive, error) {
	if logger == nil {
		logger = log.Default()
	}
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(sqlDB, logger, confirm); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Archive{db: sqlDB, logger: logger}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Save inserts t, assigning an ID when it has none, and returns the ID.
func (a *Archive) Save(ctx context.Context, t Transcript) (string, error) {
	if t.ID == "" {
		t.ID = etc.NewFreshID()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO transcripts
			(id, source, model, device, sample_rate, frames, tokens, degenerate,
			 text, status, error, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, julianday('now'))`,
		t.ID, t.Source, t.Model, t.Device, t.SampleRate, t.Frames, t.Tokens, t.Degenerate,
		t.Text, t.Status, nullString(t.Error), t.Elapsed.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("insert transcript: %w", err)
	}
	a.logger.Debug("archived transcript", "id", t.ID, "status", t.Status, "tokens", t.Tokens)
	return t.ID, nil
}

const transcriptColumns = `
	id, source, COALESCE(model, ''), COALESCE(device, ''), COALESCE(sample_rate, 0),
	COALESCE(frames, 0), COALESCE(tokens, 0), degenerate, text, status,
	COALESCE(error, ''), elapsed_ms, created_at`

func scanTranscript(row interface{ Scan(...any) error }) (Transcript, error) {
	var (
		t         Transcript
		elapsedMS int64
		createdAt float64
	)
	err := row.Scan(
		&t.ID, &t.Source, &t.Model, &t.Device, &t.SampleRate,
		&t.Frames, &t.Tokens, &t.Degenerate, &t.Text, &t.Status,
		&t.Error, &elapsedMS, &createdAt,
	)
	if err != nil {
		return t, err
	}
	t.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	t.CreatedAt = etc.JulianDayToTime(createdAt)
	return t, nil
}

func (a *Archive) Get(ctx context.Context, id string) (Transcript, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE id = ?`, id)
	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return t, fmt.Errorf("get transcript: %w", err)
	}
	return t, nil
}

// Recent lists the newest transcripts first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Transcript, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (a *Archive) AllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}

func (a *Archive) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := a.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", config.ErrNotFound
	}
	return value, err
}

func (a *Archive) SetConfig(ctx context.Context, key, value string) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, julianday('now'))
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ config.Store = (*Archive)(nil)
