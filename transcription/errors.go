package transcription

import (
	"errors"
	"fmt"
)

// Stages a session can fail in. A failed Run returns an *Error whose
// Stage is one of these, so callers can test with errors.Is.
var (
	ErrInput  = errors.New("input")
	ErrEngine = errors.New("engine")
	ErrDecode = errors.New("decode")
	ErrOutput = errors.New("output")
)

// Error is the single terminal failure of a session. Frame is the index
// of the frame being processed, or -1 when no frame was involved.
type Error struct {
	Stage error
	Frame int
	Err   error
}

func (e *Error) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("transcription failed (%v): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("transcription failed (%v) at frame %d: %v", e.Stage, e.Frame, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

// StageOf reports which stage err failed in, or "" if it is not a
// session error.
func StageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage.Error()
	}
	return ""
}
