package nlu

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const DefaultTimeout = 8 * time.Second

// Processor detects intents with a remote classifier and falls back to the
// keyword matcher on any classifier failure. Detect never fails.
type Processor struct {
	classifier Classifier
	timeout    time.Duration
	log        *slog.Logger
}

type Option func(*Processor)

func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.log = logger
		}
	}
}

// NewProcessor builds a Processor. A nil classifier means keyword matching only.
func NewProcessor(c Classifier, opts ...Option) *Processor {
	p := &Processor{
		classifier: c,
		timeout:    DefaultTimeout,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Detect(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return unknown(text)
	}

	if p.classifier != nil {
		res, err := p.classify(ctx, text)
		if err == nil {
			p.log.Debug("Detected", "intent", res.Intent, "slots", res.Slots)
			return res
		}
		p.log.Debug("Classifier failed, falling back to keywords", "err", err)
	}

	res := Fallback(text)
	p.log.Debug("Detected by keywords", "intent", res.Intent, "slots", res.Slots)
	return res
}

func (p *Processor) classify(ctx context.Context, text string) (res Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	res, err = p.classifier.Classify(ctx, text)
	if err != nil {
		return Result{}, err
	}
	if !res.Intent.Valid() {
		return Result{}, ErrUnknownIntent
	}
	if res.Slots == nil {
		res.Slots = Slots{}
	}
	res.Text = text

	return res, nil
}
