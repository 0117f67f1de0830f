// Package transcription drives one waveform through a decoder and a
// detokenizer and writes the text to a sink as it appears.
package transcription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"node.town/hark/snd"
	"node.town/hark/stt"
	"node.town/hark/txt"
)

// Observer is told about a session's progress. Metrics hang off it.
type Observer interface {
	SessionStarted()
	FrameStepped(elapsed time.Duration, events int)
	TokenDecoded(fragment string)
	SessionFinished(res Result, err error)
}

type nopObserver struct{}

func (nopObserver) SessionStarted()                 {}
func (nopObserver) FrameStepped(time.Duration, int) {}
func (nopObserver) TokenDecoded(string)             {}
func (nopObserver) SessionFinished(Result, error)   {}

// Result summarizes a session. On failure it holds what was done before
// the failure, including the text already written to the sink.
type Result struct {
	Frames     int
	Events     int
	Tokens     int
	Fragments  int
	Degenerate int
	Text       string
	Device     stt.Device
	Elapsed    time.Duration
}

// Session is one waveform-to-transcript run. A Session owns its decoder
// and detokenizer for the duration of Run and must not be run twice
// concurrently.
type Session struct {
	Engine    stt.Engine
	Tokenizer txt.Tokenizer
	Sink      Sink
	Params    stt.Params

	// TailFrames is the number of silent frames fed after the audio so
	// the engine can close out trailing words.
	TailFrames int
	// LeadSilence is prepended to the audio before chunking.
	LeadSilence time.Duration
	// ResetOnEndWord clears the detokenizer context at word boundaries.
	ResetOnEndWord bool

	Observer Observer
	Logger   *log.Logger
}

func NewSession(engine stt.Engine, tok txt.Tokenizer, sink Sink) *Session {
	return &Session{
		Engine:     engine,
		Tokenizer:  tok,
		Sink:       sink,
		Params:     stt.DefaultParams(),
		TailFrames: snd.DefaultTailFrames,
	}
}

// Run transcribes w. Fragments reach the sink as soon as each token is
// decoded. Any failure ends the session and is returned as an *Error;
// fragments already written stay written.
func (s *Session) Run(ctx context.Context, w snd.Waveform) (Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	observer := s.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	var (
		res  Result
		text strings.Builder
	)
	started := time.Now()
	observer.SessionStarted()

	finish := func(err error) (Result, error) {
		res.Text = text.String()
		res.Elapsed = time.Since(started)
		observer.SessionFinished(res, err)
		if err != nil {
			logger.Error("session failed", "frames", res.Frames, "tokens", res.Tokens, "error", err)
		} else {
			logger.Info("session done", "frames", res.Frames, "tokens", res.Tokens, "elapsed", res.Elapsed)
		}
		return res, err
	}
	fail := func(stage error, frame int, err error) (Result, error) {
		return finish(&Error{Stage: stage, Frame: frame, Err: err})
	}

	if s.Engine == nil || s.Tokenizer == nil || s.Sink == nil {
		return fail(ErrInput, -1, errors.New("session needs an engine, a tokenizer and a sink"))
	}

	w, err := w.AtRate(snd.DecoderSampleRate)
	if err != nil {
		return fail(ErrInput, -1, err)
	}
	if s.LeadSilence > 0 {
		w = w.PrependSilence(s.LeadSilence)
	}

	params := s.Params
	if params.FrameSize <= 0 {
		params.FrameSize = snd.DefaultFrameSize
	}
	params.SampleRate = snd.DecoderSampleRate
	res.Device = params.Device

	dec, err := s.Engine.NewDecoder(ctx, params)
	if err != nil {
		return fail(ErrEngine, -1, err)
	}
	adapter := stt.NewAdapter(dec, params.FrameSize, logger)
	defer func() {
		if err := adapter.Close(); err != nil {
			logger.Warn("close decoder", "error", err)
		}
	}()

	detok := txt.NewDetokenizer(s.Tokenizer)
	chunks := snd.NewChunker(w, params.FrameSize, s.TailFrames)
	logger.Debug("session start",
		"samples", len(w.Samples),
		"frames", snd.FrameCount(len(w.Samples), params.FrameSize)+max(s.TailFrames, 0),
		"device", params.Device,
	)

	for frame, ok := chunks.Next(); ok; frame, ok = chunks.Next() {
		idx := adapter.Frames()
		stepStart := time.Now()
		events, err := adapter.Step(frame)
		if err != nil {
			res.Frames = adapter.Frames()
			return fail(ErrEngine, idx, err)
		}
		res.Frames = adapter.Frames()
		res.Events += len(events)
		observer.FrameStepped(time.Since(stepStart), len(events))

		for _, ev := range events {
			switch ev := ev.(type) {
			case stt.Step:
			case stt.EndWord:
				if s.ResetOnEndWord {
					detok.Reset()
				}
			case stt.Word:
				for _, tok := range ev.Tokens {
					frag, err := detok.Push(tok)
					if err != nil {
						return fail(ErrDecode, idx, err)
					}
					res.Tokens = detok.Tokens()
					res.Degenerate = detok.Degenerate()
					observer.TokenDecoded(frag)
					if frag == "" {
						continue
					}
					err = s.Sink.WriteFragment(Fragment{
						Text:      frag,
						Token:     tok,
						Frame:     idx,
						StartTime: ev.StartTime,
					})
					if err != nil {
						return fail(ErrOutput, idx, err)
					}
					text.WriteString(frag)
					res.Fragments++
				}
			}
		}
	}

	return finish(nil)
}
