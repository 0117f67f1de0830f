package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// DefaultModel is the model repository asked for when none is configured.
const DefaultModel = "kyutai/stt-1b-en_fr-candle"

var (
	// ErrProtocol is returned when an engine sends something the step
	// protocol does not allow.
	ErrProtocol = errors.New("engine protocol violation")
	// ErrDecoderFailed is returned by Step after an earlier step failed;
	// the decoder state is no longer usable.
	ErrDecoderFailed = errors.New("decoder already failed")
)

// Params configures one decoder session.
type Params struct {
	Model       string  `json:"model"`
	Device      Device  `json:"device"`
	BatchSize   int     `json:"batch_size"`
	AsrDelay    int     `json:"asr_delay_in_tokens"`
	Temperature float64 `json:"temperature"`
	SampleRate  int     `json:"sample_rate"`
	FrameSize   int     `json:"frame_size"`
}

func DefaultParams() Params {
	return Params{
		Model:      DefaultModel,
		Device:     CPU,
		BatchSize:  1,
		SampleRate: 24000,
		FrameSize:  1920,
	}
}

// Engine creates decoders. Implementations may be shared between sessions;
// the decoders they return may not.
type Engine interface {
	NewDecoder(ctx context.Context, params Params) (Decoder, error)
}

// Decoder is the stateful recognizer for one session. Step must be called
// once per frame, in frame order, from a single goroutine. It blocks until
// the engine has consumed the frame and returns the events it produced,
// in emission order.
type Decoder interface {
	Step(frame []float32) ([]Event, error)
	Close() error
}

// StepError is an engine failure while consuming a frame.
type StepError struct {
	Frame int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step frame %d: %v", e.Frame, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Adapter drives one Decoder for one session. It checks frame length,
// numbers frames and turns engine failures into *StepError. After a
// failure it refuses further frames.
type Adapter struct {
	dec       Decoder
	frameSize int
	logger    *log.Logger

	frames int
	events int
	failed bool
}

func NewAdapter(dec Decoder, frameSize int, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{
		dec:       dec,
		frameSize: frameSize,
		logger:    logger,
	}
}

// Step feeds one frame to the decoder.
func (a *Adapter) Step(frame []float32) ([]Event, error) {
	idx := a.frames
	if a.failed {
		return nil, &StepError{Frame: idx, Err: ErrDecoderFailed}
	}
	if len(frame) != a.frameSize {
		a.failed = true
		return nil, &StepError{
			Frame: idx,
			Err:   fmt.Errorf("frame has %d samples, want %d", len(frame), a.frameSize),
		}
	}

	events, err := a.dec.Step(frame)
	a.frames++
	if err != nil {
		a.failed = true
		return nil, &StepError{Frame: idx, Err: err}
	}
	for _, ev := range events {
		if ev == nil {
			a.failed = true
			return nil, &StepError{Frame: idx, Err: fmt.Errorf("nil event: %w", ErrProtocol)}
		}
	}

	a.events += len(events)
	if len(events) > 0 {
		a.logger.Debug("step", "frame", idx, "events", len(events))
	}
	return events, nil
}

// Frames is the number of frames handed to the decoder so far.
func (a *Adapter) Frames() int {
	return a.frames
}

// Events is the number of events received so far.
func (a *Adapter) Events() int {
	return a.events
}

func (a *Adapter) Close() error {
	return a.dec.Close()
}
