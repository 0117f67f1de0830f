package snd

// Chunker cuts a waveform into decoder frames. It reads the waveform in
// place and only allocates for the zero-padded final frame and the
// silent tail. A Chunker cannot be rewound.
type Chunker struct {
	samples    []float32
	frameSize  int
	tailFrames int

	pos     int
	tail    int
	silence []float32
}

func NewChunker(w Waveform, frameSize, tailFrames int) *Chunker {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	if tailFrames < 0 {
		tailFrames = 0
	}
	return &Chunker{
		samples:    w.Samples,
		frameSize:  frameSize,
		tailFrames: tailFrames,
	}
}

// Next returns the next frame, always exactly frameSize samples long.
// The returned slice must not be modified by the caller.
func (c *Chunker) Next() ([]float32, bool) {
	if rest := len(c.samples) - c.pos; rest > 0 {
		if rest >= c.frameSize {
			frame := c.samples[c.pos : c.pos+c.frameSize : c.pos+c.frameSize]
			c.pos += c.frameSize
			return frame, true
		}
		frame := make([]float32, c.frameSize)
		copy(frame, c.samples[c.pos:])
		c.pos = len(c.samples)
		return frame, true
	}

	if c.tail >= c.tailFrames {
		return nil, false
	}
	if c.silence == nil {
		c.silence = make([]float32, c.frameSize)
	}
	c.tail++
	return c.silence, true
}

// Len is the total number of frames the chunker yields.
func (c *Chunker) Len() int {
	return FrameCount(len(c.samples), c.frameSize) + c.tailFrames
}

func (c *Chunker) FrameSize() int {
	return c.frameSize
}

// FrameCount is the number of frames needed to cover n samples.
func FrameCount(n, frameSize int) int {
	return (n + frameSize - 1) / frameSize
}
