package stt

import (
	"fmt"
)

// Step protocol message types. A client sends Hello once and Audio per
// frame; the engine answers Hello with Ready and every Audio with exactly
// one Events or Error message.
const (
	msgHello  = "Hello"
	msgReady  = "Ready"
	msgAudio  = "Audio"
	msgEvents = "Events"
	msgError  = "Error"
	evStep    = "Step"
	evWord    = "Word"
	evEndWord = "EndWord"
)

type message struct {
	Type    string      `json:"type"`
	Params  *Params     `json:"params,omitempty"`
	PCM     []float32   `json:"pcm,omitempty"`
	Events  []wireEvent `json:"events,omitempty"`
	Message string      `json:"message,omitempty"`
}

type wireEvent struct {
	Type      string  `json:"type"`
	StepIdx   int     `json:"step_idx,omitempty"`
	Tokens    []int   `json:"tokens,omitempty"`
	StartTime float64 `json:"start_time,omitempty"`
	StopTime  float64 `json:"stop_time,omitempty"`
}

func decodeEvents(in []wireEvent) ([]Event, error) {
	events := make([]Event, 0, len(in))
	for _, ev := range in {
		switch ev.Type {
		case evStep:
			events = append(events, Step{StepIdx: ev.StepIdx})
		case evEndWord:
			events = append(events, EndWord{StopTime: ev.StopTime})
		case evWord:
			events = append(events, Word{Tokens: ev.Tokens, StartTime: ev.StartTime})
		default:
			return nil, fmt.Errorf("event type %q: %w", ev.Type, ErrProtocol)
		}
	}
	return events, nil
}

func encodeEvents(in []Event) []wireEvent {
	out := make([]wireEvent, 0, len(in))
	for _, ev := range in {
		switch ev := ev.(type) {
		case Step:
			out = append(out, wireEvent{Type: evStep, StepIdx: ev.StepIdx})
		case EndWord:
			out = append(out, wireEvent{Type: evEndWord, StopTime: ev.StopTime})
		case Word:
			out = append(out, wireEvent{Type: evWord, Tokens: ev.Tokens, StartTime: ev.StartTime})
		}
	}
	return out
}

// transport moves step protocol messages to and from an engine.
type transport interface {
	send(message) error
	recv() (message, error)
	close() error
}

// wireDecoder is a Decoder speaking the step protocol over a transport.
type wireDecoder struct {
	t transport
}

func handshake(t transport, params Params) (*wireDecoder, error) {
	if err := t.send(message{Type: msgHello, Params: &params}); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}
	reply, err := t.recv()
	if err != nil {
		return nil, fmt.Errorf("wait for ready: %w", err)
	}
	switch reply.Type {
	case msgReady:
		return &wireDecoder{t: t}, nil
	case msgError:
		return nil, fmt.Errorf("engine refused session: %s", reply.Message)
	default:
		return nil, fmt.Errorf("expected %s, got %q: %w", msgReady, reply.Type, ErrProtocol)
	}
}

func (d *wireDecoder) Step(frame []float32) ([]Event, error) {
	if err := d.t.send(message{Type: msgAudio, PCM: frame}); err != nil {
		return nil, fmt.Errorf("send audio: %w", err)
	}
	reply, err := d.t.recv()
	if err != nil {
		return nil, fmt.Errorf("receive events: %w", err)
	}
	switch reply.Type {
	case msgEvents:
		return decodeEvents(reply.Events)
	case msgError:
		return nil, fmt.Errorf("engine: %s", reply.Message)
	default:
		return nil, fmt.Errorf("expected %s, got %q: %w", msgEvents, reply.Type, ErrProtocol)
	}
}

func (d *wireDecoder) Close() error {
	return d.t.close()
}
