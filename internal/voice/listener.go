package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nex/internal/bus"
)

// Recorder captures one utterance as mono 16 kHz PCM.
type Recorder interface {
	Record(ctx context.Context) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Notifier plays the "listening" chime.
type Notifier interface {
	Chime() error
}

const (
	DefaultCooldown    = 500 * time.Millisecond
	DefaultBackoff     = time.Second
	DefaultJoinTimeout = time.Second

	// MicSender tags events that came from the local microphone.
	MicSender = "mic"
)

type ListenerConfig struct {
	Wake        WakeWords
	Cooldown    time.Duration
	Backoff     time.Duration
	JoinTimeout time.Duration
	Chime       Notifier
}

// Listener runs the record, transcribe, wake-word loop on its own goroutine.
type Listener struct {
	bus *bus.Bus
	rec Recorder
	stt Transcriber
	cfg ListenerConfig
	log *slog.Logger

	running atomic.Bool
	armed   atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(b *bus.Bus, rec Recorder, stt Transcriber, cfg ListenerConfig, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Wake == nil {
		cfg.Wake = NewWakeWords(DefaultWakeWords...)
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}

	return &Listener{bus: b, rec: rec, stt: stt, cfg: cfg, log: logger}
}

func (l *Listener) Running() bool { return l.running.Load() }

// Start launches the loop. It is a no-op when already running.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.CompareAndSwap(false, true) {
		return
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go l.loop(ctx, l.done)
	l.log.Info("Voice listening started")
}

// Stop asks the loop to finish and waits at most the join timeout. It
// reports whether the loop actually exited in time.
func (l *Listener) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.CompareAndSwap(true, false) {
		return true
	}
	l.cancel()

	select {
	case <-l.done:
		l.log.Info("Voice listening stopped")
		return true
	case <-time.After(l.cfg.JoinTimeout):
		l.log.Warn("Voice loop did not stop in time")
		return false
	}
}

// Trigger makes the next utterance a command even without a wake word.
func (l *Listener) Trigger() {
	l.armed.Store(true)
	l.log.Info("Listening...")

	if l.cfg.Chime == nil {
		return
	}
	if err := l.cfg.Chime.Chime(); err != nil {
		l.log.Warn("Failed to play chime", "err", err)
	}
}

func (l *Listener) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for l.running.Load() {
		if err := l.step(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Error("Voice loop failed", "err", err)
			sleep(ctx, l.cfg.Backoff)
		}
	}
}

func (l *Listener) step(ctx context.Context) error {
	l.log.Debug("Listening for speech")

	pcm, err := l.rec.Record(ctx)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}

	text, err := l.stt.Transcribe(ctx, pcm)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	l.log.Debug("Heard", "text", text)

	cmd, ok := ExtractCommand(text, l.cfg.Wake)
	if l.armed.CompareAndSwap(true, false) && !ok {
		cmd, ok = strings.ToLower(text), true
	}
	if !ok {
		l.log.Debug("No wake word")
		return nil
	}
	if cmd == "" {
		l.log.Debug("Wake word without command")
		return nil
	}

	if !l.running.Load() {
		return errors.New("stopped before publishing")
	}

	l.log.Info("Wake word detected", "command", cmd)
	l.bus.Publish(ctx, bus.NewEvent(bus.VoiceInput, bus.Voice, map[string]any{
		bus.KeyText:   cmd,
		bus.KeySender: MicSender,
	}))

	sleep(ctx, l.cfg.Cooldown)
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
