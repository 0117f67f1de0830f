package transcription

import (
	"io"
	"strings"
	"sync"
)

// Fragment is one append-only increment of the transcript.
type Fragment struct {
	Text      string
	Token     int
	Frame     int
	StartTime float64
}

// Sink receives fragments in order. A fragment must be visible to the
// reader by the time WriteFragment returns.
type Sink interface {
	WriteFragment(Fragment) error
}

type SinkFunc func(Fragment) error

func (f SinkFunc) WriteFragment(frag Fragment) error {
	return f(frag)
}

// WriterSink writes fragment text to an io.Writer and flushes after every
// fragment when the writer can be flushed or synced.
type WriterSink struct {
	w io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteFragment(f Fragment) error {
	if _, err := io.WriteString(s.w, f.Text); err != nil {
		return err
	}
	switch w := s.w.(type) {
	case interface{ Flush() error }:
		return w.Flush()
	case interface{ Flush() }:
		w.Flush()
	case interface{ Sync() error }:
		// Terminals and pipes reject fsync.
		w.Sync()
	}
	return nil
}

// MultiSink writes every fragment to each sink in turn and stops at the
// first error.
type MultiSink []Sink

func (m MultiSink) WriteFragment(f Fragment) error {
	for _, s := range m {
		if err := s.WriteFragment(f); err != nil {
			return err
		}
	}
	return nil
}

// Transcript collects fragments. It is safe to read while a session is
// writing to it.
type Transcript struct {
	mu        sync.Mutex
	b         strings.Builder
	fragments []Fragment
}

func (t *Transcript) WriteFragment(f Fragment) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.WriteString(f.Text)
	t.fragments = append(t.fragments, f)
	return nil
}

func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.b.String()
}

func (t *Transcript) Fragments() []Fragment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Fragment(nil), t.fragments...)
}
