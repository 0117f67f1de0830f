package stt

import "fmt"

// Event is what the decoder reports after consuming a frame. The set of
// events is closed: Step, EndWord and Word are the only implementations.
type Event interface {
	isEvent()
}

// Step is internal decoder progress and carries no text.
type Step struct {
	StepIdx int
}

// EndWord marks a closed word boundary.
type EndWord struct {
	StopTime float64
}

// Word carries subword token IDs newly finalized for the current word.
type Word struct {
	Tokens    []int
	StartTime float64
}

func (Step) isEvent()    {}
func (EndWord) isEvent() {}
func (Word) isEvent()    {}

func (e Step) String() string {
	return fmt.Sprintf("Step(%d)", e.StepIdx)
}

func (e EndWord) String() string {
	return fmt.Sprintf("EndWord(%.2fs)", e.StopTime)
}

func (e Word) String() string {
	return fmt.Sprintf("Word(%v @%.2fs)", e.Tokens, e.StartTime)
}
