package snd

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/gopxl/beep/mp3"
)

// ErrUnsupported marks input the native decoders cannot read; Load then
// falls back to ffmpeg.
var ErrUnsupported = errors.New("unsupported audio encoding")

// FFmpegPath is the binary used for formats without a native decoder.
var FFmpegPath = "ffmpeg"

// Load decodes an audio file into a mono waveform at its native rate.
// WAV and MP3 are decoded in-process, everything else goes through ffmpeg.
func Load(ctx context.Context, path string) (Waveform, error) {
	var (
		w   Waveform
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		w, err = loadWAV(path)
	case ".mp3":
		w, err = loadMP3(path)
	default:
		err = ErrUnsupported
	}
	if errors.Is(err, ErrUnsupported) {
		w, err = loadFFmpeg(ctx, path, DecoderSampleRate)
	}
	if err != nil {
		return Waveform{}, fmt.Errorf("load %s: %w", path, err)
	}
	return w, nil
}

func loadWAV(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV reads integer PCM WAV data. Float or compressed WAV files
// return ErrUnsupported.
func DecodeWAV(r io.ReadSeeker) (Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Waveform{}, fmt.Errorf("invalid wav file")
	}
	if d.WavAudioFormat != 1 {
		return Waveform{}, fmt.Errorf("wav format %d: %w", d.WavAudioFormat, ErrUnsupported)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read pcm: %w", err)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	rate := int(d.SampleRate)
	if buf.Format != nil && buf.Format.SampleRate > 0 {
		rate = buf.Format.SampleRate
	}

	return Waveform{
		Samples:    mixDownInts(buf.Data, channels, depth),
		SampleRate: rate,
	}, nil
}

func mixDownInts(data []int, channels, depth int) []float32 {
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))
	out := make([]float32, len(data)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			v := data[i*channels+c]
			if depth == 8 {
				// 8-bit PCM is unsigned.
				v -= 128
			}
			sum += float32(v)
		}
		out[i] = sum / float32(channels) / scale
	}
	return out
}

func loadMP3(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, err
	}
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return Waveform{}, fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	var samples []float32
	buf := make([][2]float64, 4096)
	for {
		n, ok := streamer.Stream(buf)
		for _, s := range buf[:n] {
			samples = append(samples, float32((s[0]+s[1])/2))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return Waveform{}, fmt.Errorf("decode mp3: %w", err)
	}
	return Waveform{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}

func loadFFmpeg(ctx context.Context, path string, rate int) (Waveform, error) {
	if _, err := os.Stat(path); err != nil {
		return Waveform{}, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, FFmpegPath,
		"-nostdin",
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", fmt.Sprint(rate),
		"-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Waveform{}, fmt.Errorf(
			"ffmpeg: %w: %s",
			err,
			strings.TrimSpace(stderr.String()),
		)
	}
	return Waveform{Samples: DecodeF32LE(stdout.Bytes()), SampleRate: rate}, nil
}

// DecodeF32LE converts little-endian float32 PCM bytes to samples.
// A trailing partial sample is dropped.
func DecodeF32LE(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
