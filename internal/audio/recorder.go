// Package audio captures the microphone and keeps other applications quiet
// while the assistant speaks.
package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
)

type RecorderConfig struct {
	// RMS level above which a frame counts as speech.
	Threshold float64
	// Trailing silence that ends an utterance.
	Silence time.Duration
	MaxLength time.Duration
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Threshold: 0.015,
		Silence:   600 * time.Millisecond,
		MaxLength: 10 * time.Second,
	}
}

// Recorder reads utterances from the default input device.
type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Silence <= 0 {
		cfg.Silence = def.Silence
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() error {
	return portaudio.Terminate()
}

// Record blocks until one utterance ends, MaxLength passes or ctx is done.
// It returns nil samples when nobody spoke.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	det := newDetector(r.cfg)
	maxFrames := int(r.cfg.MaxLength / frameDuration)

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		if det.feed(buf) {
			break
		}
	}

	return det.out, nil
}

const frameDuration = time.Second * frameSize / SampleRate

// detector keeps frames from the first loud one until enough trailing
// silence.
type detector struct {
	cfg           RecorderConfig
	speaking      bool
	silenceFrames int
	out           []float32
}

func newDetector(cfg RecorderConfig) *detector {
	return &detector{cfg: cfg}
}

// feed consumes one frame and reports whether the utterance is over.
func (d *detector) feed(frame []float32) bool {
	if frameRMS(frame) > d.cfg.Threshold {
		d.speaking = true
		d.silenceFrames = 0
		d.out = append(d.out, frame...)
		return false
	}

	if !d.speaking {
		return false
	}

	d.silenceFrames++
	if time.Duration(d.silenceFrames)*frameDuration >= d.cfg.Silence {
		return true
	}
	d.out = append(d.out, frame...)
	return false
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
