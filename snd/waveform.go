package snd

import "time"

const (
	// DecoderSampleRate is the rate the decoder consumes audio at.
	DecoderSampleRate = 24000
	// DefaultFrameSize is one decoder step: 80ms at 24kHz.
	DefaultFrameSize = 1920
	// DefaultTailFrames of silence are fed after the real audio so the
	// decoder closes out its trailing words.
	DefaultTailFrames = 32
)

// Waveform is mono audio with samples normalized to [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// PrependSilence returns a copy of w with d of zero samples in front.
func (w Waveform) PrependSilence(d time.Duration) Waveform {
	n := int(d * time.Duration(w.SampleRate) / time.Second)
	if n <= 0 {
		return w
	}
	samples := make([]float32, n+len(w.Samples))
	copy(samples[n:], w.Samples)
	return Waveform{Samples: samples, SampleRate: w.SampleRate}
}

// AtRate converts w to rate, resampling once if needed.
func (w Waveform) AtRate(rate int) (Waveform, error) {
	if w.SampleRate == rate {
		return w, nil
	}
	samples, err := Resample(w.Samples, w.SampleRate, rate)
	if err != nil {
		return Waveform{}, err
	}
	return Waveform{Samples: samples, SampleRate: rate}, nil
}
