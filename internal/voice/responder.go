package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"nex/internal/bus"
)

type Speaker interface {
	Speak(text string) error
}

// Ducker lowers other applications while the assistant talks.
type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Responder speaks voice responses one at a time.
type Responder struct {
	bus     *bus.Bus
	speaker Speaker
	ducker  Ducker
	log     *slog.Logger

	speaking sync.Mutex

	mu  sync.Mutex
	sub *bus.Subscription
}

// NewResponder builds a responder. ducker may be nil.
func NewResponder(b *bus.Bus, s Speaker, d Ducker, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{bus: b, speaker: s, ducker: d, log: logger}
}

func (r *Responder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub != nil {
		return
	}
	sub := r.bus.Subscribe(bus.VoiceResponse, r.onResponse)
	r.sub = &sub
}

func (r *Responder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub != nil {
		r.sub.Unsubscribe()
		r.sub = nil
	}
}

func (r *Responder) onResponse(ctx context.Context, e bus.Event) error {
	if e.Exit() {
		return nil
	}
	return r.Say(ctx, e.Text())
}

// Say speaks text, blocking until playback ends.
func (r *Responder) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	r.speaking.Lock()
	defer r.speaking.Unlock()

	r.log.Info("Speaking", "text", text)

	if r.ducker != nil {
		if err := r.ducker.Duck(ctx); err != nil {
			r.log.Warn("Failed to duck other audio", "err", err)
		}
		defer func() {
			if err := r.ducker.Restore(context.WithoutCancel(ctx)); err != nil {
				r.log.Warn("Failed to restore other audio", "err", err)
			}
		}()
	}

	if err := r.speaker.Speak(text); err != nil {
		return fmt.Errorf("speak: %w", err)
	}

	return nil
}
