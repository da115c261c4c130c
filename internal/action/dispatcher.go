// Package action maps detected intents to handlers and normalizes what they
// return into a single user-facing response string.
package action

import (
	"context"
	"fmt"
	"log/slog"

	"nex/internal/bus"
	"nex/internal/nlu"
)

const (
	// Exit is returned by the system-control handler to ask for shutdown.
	// It is a control signal, not something to say to the user.
	Exit = "EXIT"

	NotHandled = "I don't know how to answer that, but I'm here."
	Completed  = "Action completed."
)

type Request struct {
	Slots   nlu.Slots
	Channel bus.Channel
	// Text is the original utterance.
	Text string
}

// Handler serves one intent. Missing slots are answered with a clarifying
// question; an error is reserved for real failures.
type Handler func(ctx context.Context, req Request) (string, error)

// Handlers is the registry: one field per intent. A nil field means the
// intent is not handled. Adding an intent means adding a field here and a
// case in lookup.
type Handlers struct {
	Weather       Handler
	Time          Handler
	Date          Handler
	ReminderSet   Handler
	ReminderList  Handler
	Timer         Handler
	Joke          Handler
	Search        Handler
	OpenSite      Handler
	PlayMusic     Handler
	Define        Handler
	Calculate     Handler
	SystemControl Handler
	SmallTalk     Handler
}

func (h Handlers) lookup(intent nlu.Intent) Handler {
	switch intent {
	case nlu.Weather:
		return h.Weather
	case nlu.Time:
		return h.Time
	case nlu.Date:
		return h.Date
	case nlu.ReminderSet:
		return h.ReminderSet
	case nlu.ReminderList:
		return h.ReminderList
	case nlu.Timer:
		return h.Timer
	case nlu.Joke:
		return h.Joke
	case nlu.Search:
		return h.Search
	case nlu.OpenSite:
		return h.OpenSite
	case nlu.PlayMusic:
		return h.PlayMusic
	case nlu.Define:
		return h.Define
	case nlu.Calculate:
		return h.Calculate
	case nlu.SystemControl:
		return h.SystemControl
	case nlu.SmallTalk:
		return h.SmallTalk
	case nlu.Unknown:
		return nil
	default:
		return nil
	}
}

// Dispatcher is immutable after construction and safe for concurrent use.
type Dispatcher struct {
	handlers Handlers
	log      *slog.Logger
}

func NewDispatcher(h Handlers, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: h, log: logger}
}

func (d *Dispatcher) Execute(ctx context.Context, res nlu.Result, ch bus.Channel) string {
	handler := d.handlers.lookup(res.Intent)
	if handler == nil {
		d.log.Debug("No handler", "intent", res.Intent, "channel", ch)
		return NotHandled
	}

	slots := res.Slots
	if slots == nil {
		slots = nlu.Slots{}
	}

	d.log.Debug("Executing", "intent", res.Intent, "slots", slots, "channel", ch)

	out, err := d.run(ctx, handler, Request{Slots: slots, Channel: ch, Text: res.Text})
	if err != nil {
		d.log.Debug("Handler failed", "intent", res.Intent, "err", err)
		return fmt.Sprintf("Sorry, I had trouble with that: %v", err)
	}
	if out == "" {
		return Completed
	}

	return out
}

func (d *Dispatcher) run(ctx context.Context, h Handler, req Request) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	return h(ctx, req)
}
