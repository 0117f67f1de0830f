package stt

import (
	"context"
	"errors"
	"testing"
)

// scriptDecoder replays a fixed list of per-frame events and fails on
// failAt when it is non-negative.
type scriptDecoder struct {
	script [][]Event
	failAt int
	steps  int
	closed bool
}

func (d *scriptDecoder) Step(frame []float32) ([]Event, error) {
	i := d.steps
	d.steps++
	if d.failAt >= 0 && i == d.failAt {
		return nil, errors.New("device lost")
	}
	if i < len(d.script) {
		return d.script[i], nil
	}
	return []Event{Step{StepIdx: i}}, nil
}

func (d *scriptDecoder) Close() error {
	d.closed = true
	return nil
}

type scriptEngine struct {
	dec    *scriptDecoder
	params Params
}

func (e *scriptEngine) NewDecoder(ctx context.Context, params Params) (Decoder, error) {
	e.params = params
	return e.dec, nil
}

func TestAdapterStep(t *testing.T) {
	dec := &scriptDecoder{
		failAt: -1,
		script: [][]Event{
			{Step{StepIdx: 0}},
			{Word{Tokens: []int{7}, StartTime: 0.08}, EndWord{StopTime: 0.16}},
		},
	}
	a := NewAdapter(dec, 4, nil)

	got, err := a.Step(make([]float32, 4))
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}

	got, err = a.Step(make([]float32, 4))
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if w, ok := got[0].(Word); !ok || w.Tokens[0] != 7 {
		t.Errorf("first event = %v, want Word([7])", got[0])
	}
	if _, ok := got[1].(EndWord); !ok {
		t.Errorf("second event = %v, want EndWord", got[1])
	}
	if a.Frames() != 2 || a.Events() != 3 {
		t.Errorf("Frames, Events = %d, %d, want 2, 3", a.Frames(), a.Events())
	}
}

func TestAdapterRejectsWrongFrameLength(t *testing.T) {
	dec := &scriptDecoder{failAt: -1}
	a := NewAdapter(dec, 4, nil)

	_, err := a.Step(make([]float32, 3))

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("err = %v, want *StepError", err)
	}
	if dec.steps != 0 {
		t.Error("decoder saw a frame of the wrong length")
	}
	if _, err := a.Step(make([]float32, 4)); !errors.Is(err, ErrDecoderFailed) {
		t.Errorf("after failure err = %v, want ErrDecoderFailed", err)
	}
}

func TestAdapterStopsAfterEngineFailure(t *testing.T) {
	dec := &scriptDecoder{failAt: 2}
	a := NewAdapter(dec, 2, nil)
	frame := make([]float32, 2)

	for i := 0; i < 2; i++ {
		if _, err := a.Step(frame); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	_, err := a.Step(frame)
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("err = %v, want *StepError", err)
	}
	if stepErr.Frame != 2 {
		t.Errorf("Frame = %d, want 2", stepErr.Frame)
	}

	_, err = a.Step(frame)
	if !errors.Is(err, ErrDecoderFailed) {
		t.Errorf("err = %v, want ErrDecoderFailed", err)
	}
	if dec.steps != 3 {
		t.Errorf("decoder stepped %d times, want 3", dec.steps)
	}
}

func TestAdapterRejectsNilEvent(t *testing.T) {
	dec := &scriptDecoder{failAt: -1, script: [][]Event{{nil}}}
	a := NewAdapter(dec, 1, nil)

	if _, err := a.Step([]float32{0}); !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestSelectDevice(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	tests := []struct {
		name   string
		cpu    bool
		probes []Probe
		want   Device
	}{
		{"forced cpu", true, []Probe{{CUDA, yes}}, CPU},
		{"cuda first", false, []Probe{{CUDA, yes}, {Metal, yes}}, CUDA},
		{"metal when no cuda", false, []Probe{{CUDA, no}, {Metal, yes}}, Metal},
		{"nothing available", false, []Probe{{CUDA, no}, {Metal, no}}, CPU},
		{"no probes", false, nil, CPU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectDevice(tt.cpu, tt.probes); got != tt.want {
				t.Errorf("SelectDevice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDevice(t *testing.T) {
	for in, want := range map[string]Device{
		"":      "",
		"auto":  "",
		"CPU":   CPU,
		" cuda": CUDA,
		"metal": Metal,
	} {
		got, err := ParseDevice(in)
		if err != nil {
			t.Errorf("ParseDevice(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDevice(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseDevice("tpu"); err == nil {
		t.Error("ParseDevice(\"tpu\") should fail")
	}
}
