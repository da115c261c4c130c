package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"nex/internal/bus"
	"nex/internal/nlu"
)

func TestExecuteNotHandled(t *testing.T) {
	called := false
	d := NewDispatcher(Handlers{
		Joke: func(context.Context, Request) (string, error) {
			called = true
			return "ha", nil
		},
	}, nil)

	for _, ch := range []bus.Channel{bus.Voice, bus.Chat} {
		for _, intent := range []nlu.Intent{nlu.Unknown, nlu.Weather, "order_pizza"} {
			got := d.Execute(context.Background(), nlu.Result{Intent: intent}, ch)
			assert.Equal(t, "I don't know how to answer that, but I'm here.", got)
		}
	}
	assert.False(t, called)
}

func TestExecuteNormalizesOutput(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler
		want    string
	}{
		{
			name:    "plain",
			handler: func(context.Context, Request) (string, error) { return "Hello!", nil },
			want:    "Hello!",
		},
		{
			name:    "empty",
			handler: func(context.Context, Request) (string, error) { return "", nil },
			want:    "Action completed.",
		},
		{
			name:    "error",
			handler: func(context.Context, Request) (string, error) { return "", errors.New("service unavailable") },
			want:    "Sorry, I had trouble with that: service unavailable",
		},
		{
			name:    "panic",
			handler: func(context.Context, Request) (string, error) { panic("nil map write") },
			want:    "Sorry, I had trouble with that: nil map write",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDispatcher(Handlers{SmallTalk: tc.handler}, nil)
			got := d.Execute(context.Background(), nlu.Result{Intent: nlu.SmallTalk}, bus.Chat)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExecutePassesRequest(t *testing.T) {
	var got Request
	d := NewDispatcher(Handlers{
		Weather: func(_ context.Context, req Request) (string, error) {
			got = req
			return "ok", nil
		},
	}, nil)

	d.Execute(context.Background(), nlu.Result{
		Intent: nlu.Weather,
		Slots:  nlu.Slots{nlu.SlotCity: "Oslo"},
		Text:   "weather in Oslo",
	}, bus.Voice)

	assert.Equal(t, Request{
		Slots:   nlu.Slots{nlu.SlotCity: "Oslo"},
		Channel: bus.Voice,
		Text:    "weather in Oslo",
	}, got)

	d.Execute(context.Background(), nlu.Result{Intent: nlu.Weather}, bus.Chat)
	assert.NotNil(t, got.Slots)
}

// Every intent but unknown must be reachable through the registry.
func TestHandlersCoverClosedSet(t *testing.T) {
	var hit nlu.Intent
	mk := func(i nlu.Intent) Handler {
		return func(context.Context, Request) (string, error) {
			hit = i
			return string(i), nil
		}
	}

	h := Handlers{
		Weather: mk(nlu.Weather), Time: mk(nlu.Time), Date: mk(nlu.Date),
		ReminderSet: mk(nlu.ReminderSet), ReminderList: mk(nlu.ReminderList), Timer: mk(nlu.Timer),
		Joke: mk(nlu.Joke), Search: mk(nlu.Search), OpenSite: mk(nlu.OpenSite),
		PlayMusic: mk(nlu.PlayMusic), Define: mk(nlu.Define), Calculate: mk(nlu.Calculate),
		SystemControl: mk(nlu.SystemControl), SmallTalk: mk(nlu.SmallTalk),
	}
	d := NewDispatcher(h, nil)

	for _, intent := range nlu.Intents() {
		hit = ""
		got := d.Execute(context.Background(), nlu.Result{Intent: intent}, bus.Chat)
		if intent == nlu.Unknown {
			assert.Equal(t, NotHandled, got)
			continue
		}
		assert.Equal(t, intent, hit)
		assert.Equal(t, string(intent), got)
	}
}
