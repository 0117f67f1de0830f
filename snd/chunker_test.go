package snd

import (
	"testing"
)

func ramp(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i+1) / float32(n+1)
	}
	return samples
}

func collect(c *Chunker) [][]float32 {
	var frames [][]float32
	for {
		frame, ok := c.Next()
		if !ok {
			return frames
		}
		frames = append(frames, append([]float32(nil), frame...))
	}
}

func TestChunkerPadsShortWaveform(t *testing.T) {
	w := Waveform{Samples: ramp(1000), SampleRate: DecoderSampleRate}

	frames := collect(NewChunker(w, 1920, 0))

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if len(frames[0]) != 1920 {
		t.Fatalf("expected frame of 1920 samples, got %d", len(frames[0]))
	}
	for i := 0; i < 1000; i++ {
		if frames[0][i] != w.Samples[i] {
			t.Fatalf("sample %d = %v, want %v", i, frames[0][i], w.Samples[i])
		}
	}
	for i := 1000; i < 1920; i++ {
		if frames[0][i] != 0 {
			t.Fatalf("sample %d = %v, want silence", i, frames[0][i])
		}
	}
}

func TestChunkerCoverage(t *testing.T) {
	tests := []struct {
		name       string
		samples    int
		frameSize  int
		tailFrames int
	}{
		{"empty", 0, 1920, 0},
		{"empty with tail", 0, 1920, 3},
		{"exact multiple", 3840, 1920, 0},
		{"partial last frame", 5000, 1920, 2},
		{"one sample", 1, 4, 32},
		{"tiny frames", 17, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Waveform{Samples: ramp(tt.samples), SampleRate: DecoderSampleRate}
			c := NewChunker(w, tt.frameSize, tt.tailFrames)
			want := c.Len()

			frames := collect(c)

			if len(frames) != want {
				t.Fatalf("got %d frames, Len() said %d", len(frames), want)
			}
			realFrames := FrameCount(tt.samples, tt.frameSize)
			if len(frames) != realFrames+tt.tailFrames {
				t.Fatalf("got %d frames, want %d", len(frames), realFrames+tt.tailFrames)
			}

			var joined []float32
			for i, frame := range frames {
				if len(frame) != tt.frameSize {
					t.Fatalf("frame %d has %d samples, want %d", i, len(frame), tt.frameSize)
				}
				joined = append(joined, frame...)
			}
			for i, s := range w.Samples {
				if joined[i] != s {
					t.Fatalf("sample %d = %v, want %v", i, joined[i], s)
				}
			}
			for i := len(w.Samples); i < len(joined); i++ {
				if joined[i] != 0 {
					t.Fatalf("padding sample %d = %v, want 0", i, joined[i])
				}
			}
		})
	}
}

func TestChunkerIsNotRestartable(t *testing.T) {
	c := NewChunker(Waveform{Samples: ramp(10), SampleRate: DecoderSampleRate}, 4, 1)
	if n := len(collect(c)); n != 4 {
		t.Fatalf("expected 4 frames, got %d", n)
	}
	if _, ok := c.Next(); ok {
		t.Fatal("exhausted chunker yielded another frame")
	}
}

func TestChunkerDoesNotModifyWaveform(t *testing.T) {
	w := Waveform{Samples: ramp(9), SampleRate: DecoderSampleRate}
	orig := append([]float32(nil), w.Samples...)

	collect(NewChunker(w, 4, 2))

	for i := range orig {
		if w.Samples[i] != orig[i] {
			t.Fatalf("waveform sample %d changed", i)
		}
	}
}

func TestChunkerDefaults(t *testing.T) {
	c := NewChunker(Waveform{}, 0, -1)
	if c.FrameSize() != DefaultFrameSize {
		t.Errorf("FrameSize() = %d, want %d", c.FrameSize(), DefaultFrameSize)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}
