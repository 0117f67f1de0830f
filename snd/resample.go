package snd

import (
	"fmt"

	"github.com/gopxl/beep"
)

// ResampleQuality is the beep interpolation quality; 4 is plenty for speech.
const ResampleQuality = 4

// Resample converts mono samples from srcRate to dstRate. It keeps no
// state between calls.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	src := &monoStreamer{samples: samples}
	resampler := beep.Resample(
		ResampleQuality,
		beep.SampleRate(srcRate),
		beep.SampleRate(dstRate),
		src,
	)

	expected := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	out := make([]float32, 0, expected+1)
	buf := make([][2]float64, 4096)
	for {
		n, ok := resampler.Stream(buf)
		for _, s := range buf[:n] {
			out = append(out, float32(s[0]))
		}
		if !ok {
			break
		}
	}
	if err := resampler.Err(); err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return out, nil
}

// monoStreamer plays a mono slice as a beep.Streamer, duplicating the
// sample into both channels.
type monoStreamer struct {
	samples []float32
	pos     int
}

func (m *monoStreamer) Stream(buf [][2]float64) (int, bool) {
	if m.pos >= len(m.samples) {
		return 0, false
	}
	n := copyMono(buf, m.samples[m.pos:])
	m.pos += n
	return n, true
}

func (m *monoStreamer) Err() error {
	return nil
}

func copyMono(dst [][2]float64, src []float32) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		v := float64(src[i])
		dst[i] = [2]float64{v, v}
	}
	return n
}
