// Package coordinator turns channel input into intents and intents into
// responses on the channel the input came from.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"nex/internal/action"
	"nex/internal/bus"
	"nex/internal/nlu"
)

type Detector interface {
	Detect(ctx context.Context, text string) nlu.Result
}

type Executor interface {
	Execute(ctx context.Context, res nlu.Result, ch bus.Channel) string
}

type Coordinator struct {
	bus     *bus.Bus
	nlu     Detector
	actions Executor
	log     *slog.Logger

	mu   sync.Mutex
	subs []bus.Subscription
}

func New(b *bus.Bus, d Detector, e Executor, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{bus: b, nlu: d, actions: e, log: logger}
}

// Start subscribes to both input kinds and to detected intents. Calling it
// twice is a no-op.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subs) > 0 {
		return
	}

	c.subs = append(c.subs,
		c.bus.Subscribe(bus.VoiceInput, c.onInput),
		c.bus.Subscribe(bus.ChatInput, c.onInput),
		c.bus.Subscribe(bus.IntentDetected, c.onIntent),
	)

	c.log.Debug("Coordinator started")
}

func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
}

func (c *Coordinator) onInput(ctx context.Context, e bus.Event) error {
	text := strings.TrimSpace(e.Text())
	if text == "" {
		return nil
	}

	source, ok := bus.InputChannel(e.Kind)
	if !ok {
		return fmt.Errorf("not an input kind: %s", e.Kind)
	}

	res := c.nlu.Detect(ctx, text)
	c.log.Info("Intent detected", "intent", res.Intent, "slots", res.Slots, "source", source)
	res.Slots = maps.Clone(res.Slots)

	c.bus.Publish(ctx, bus.NewEvent(bus.IntentDetected, source, map[string]any{
		bus.KeyIntent:       res,
		bus.KeySource:       string(source),
		bus.KeyOriginalText: text,
		bus.KeySender:       e.Sender(),
	}))

	return nil
}

func (c *Coordinator) onIntent(ctx context.Context, e bus.Event) error {
	source := bus.Channel(e.GetString(bus.KeySource))

	kind, ok := bus.ResponseKind(source)
	if !ok {
		c.log.Warn("Intent from unknown source", "source", source, "event", e.ID)
		return nil
	}

	res, _ := e.Get(bus.KeyIntent)
	intent, ok := res.(nlu.Result)
	if !ok {
		return fmt.Errorf("intent payload has type %T", res)
	}
	original := e.GetString(bus.KeyOriginalText)
	if intent.Text == "" {
		intent.Text = original
	}

	text := c.actions.Execute(ctx, intent, source)
	exit := text == action.Exit

	c.log.Debug("Responding", "source", source, "exit", exit)

	c.bus.Publish(ctx, bus.NewEvent(kind, source, map[string]any{
		bus.KeyText:         text,
		bus.KeyOriginalText: original,
		bus.KeySender:       e.Sender(),
		bus.KeySource:       string(source),
		bus.KeyExit:         exit,
	}))

	return nil
}
