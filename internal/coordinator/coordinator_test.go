package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nex/internal/action"
	"nex/internal/bus"
	"nex/internal/nlu"
)

type recorder struct {
	events map[bus.Kind][]bus.Event
}

func record(b *bus.Bus, kinds ...bus.Kind) *recorder {
	r := &recorder{events: make(map[bus.Kind][]bus.Event)}
	for _, k := range kinds {
		b.Subscribe(k, func(_ context.Context, e bus.Event) error {
			r.events[e.Kind] = append(r.events[e.Kind], e)
			return nil
		})
	}
	return r
}

func setup(t *testing.T, h action.Handlers) (*bus.Bus, *recorder) {
	t.Helper()

	b := bus.New(nil)
	c := New(b, nlu.NewProcessor(nil), action.NewDispatcher(h, nil), nil)
	c.Start()
	t.Cleanup(c.Stop)

	return b, record(b, bus.IntentDetected, bus.VoiceResponse, bus.ChatResponse)
}

func input(ch bus.Channel, text, sender string) bus.Event {
	kind, _ := bus.InputKind(ch)
	return bus.NewEvent(kind, ch, map[string]any{bus.KeyText: text, bus.KeySender: sender})
}

func TestChatTimeRoundTrip(t *testing.T) {
	clock := action.Clock{Now: func() time.Time { return time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC) }}
	b, rec := setup(t, action.Handlers{Time: clock.Time})

	b.Publish(context.Background(), input(bus.Chat, "what time is it", "terminal"))

	require.Len(t, rec.events[bus.IntentDetected], 1)
	detected := rec.events[bus.IntentDetected][0]
	assert.Equal(t, "chat", detected.GetString(bus.KeySource))
	assert.Equal(t, "what time is it", detected.GetString(bus.KeyOriginalText))

	require.Len(t, rec.events[bus.ChatResponse], 1)
	assert.Empty(t, rec.events[bus.VoiceResponse])

	resp := rec.events[bus.ChatResponse][0]
	assert.True(t, strings.HasPrefix(resp.Text(), "The time is "), resp.Text())
	assert.Equal(t, "The time is 09:05 AM", resp.Text())
	assert.Equal(t, "terminal", resp.Sender())
	assert.Equal(t, "what time is it", resp.GetString(bus.KeyOriginalText))
	assert.False(t, resp.Exit())
}

func TestVoiceReminderUsesUtterance(t *testing.T) {
	var got action.Request
	b, rec := setup(t, action.Handlers{
		ReminderSet: func(_ context.Context, req action.Request) (string, error) {
			got = req
			return "Reminder set: call mom", nil
		},
	})

	b.Publish(context.Background(), input(bus.Voice, "remind me to call mom", "mic"))

	assert.Equal(t, bus.Voice, got.Channel)
	assert.Equal(t, "remind me to call mom", got.Text)

	require.Len(t, rec.events[bus.VoiceResponse], 1)
	assert.Empty(t, rec.events[bus.ChatResponse])
	assert.Equal(t, "Reminder set: call mom", rec.events[bus.VoiceResponse][0].Text())
	assert.Equal(t, "mic", rec.events[bus.VoiceResponse][0].Sender())
}

func TestEmptyInputIsIgnored(t *testing.T) {
	b, rec := setup(t, action.Handlers{})

	b.Publish(context.Background(), input(bus.Chat, "   ", "terminal"))
	b.Publish(context.Background(), input(bus.Voice, "", "mic"))

	assert.Empty(t, rec.events[bus.IntentDetected])
	assert.Empty(t, rec.events[bus.ChatResponse])
	assert.Empty(t, rec.events[bus.VoiceResponse])
}

func TestUnknownIntentStillAnswers(t *testing.T) {
	b, rec := setup(t, action.Handlers{})

	b.Publish(context.Background(), input(bus.Chat, "xyzzy", "terminal"))

	require.Len(t, rec.events[bus.ChatResponse], 1)
	assert.Equal(t, action.NotHandled, rec.events[bus.ChatResponse][0].Text())
}

func TestExitIsFlagged(t *testing.T) {
	sys := action.System{Launch: func(string, ...string) error { return nil }}
	b, rec := setup(t, action.Handlers{SystemControl: sys.Control})

	b.Publish(context.Background(), bus.NewEvent(bus.IntentDetected, bus.Voice, map[string]any{
		bus.KeyIntent:       nlu.Result{Intent: nlu.SystemControl, Slots: nlu.Slots{nlu.SlotTarget: "goodbye"}},
		bus.KeySource:       "voice",
		bus.KeyOriginalText: "goodbye nex",
	}))

	require.Len(t, rec.events[bus.VoiceResponse], 1)
	assert.True(t, rec.events[bus.VoiceResponse][0].Exit())
	assert.Equal(t, action.Exit, rec.events[bus.VoiceResponse][0].Text())
}

func TestUnknownSourceDropped(t *testing.T) {
	b, rec := setup(t, action.Handlers{})

	b.Publish(context.Background(), bus.NewEvent(bus.IntentDetected, "", map[string]any{
		bus.KeyIntent: nlu.Result{Intent: nlu.Joke},
		bus.KeySource: "sms",
	}))

	assert.Empty(t, rec.events[bus.ChatResponse])
	assert.Empty(t, rec.events[bus.VoiceResponse])
}

func TestStopUnsubscribes(t *testing.T) {
	b := bus.New(nil)
	c := New(b, nlu.NewProcessor(nil), action.NewDispatcher(action.Handlers{}, nil), nil)

	c.Start()
	c.Start()
	assert.Equal(t, 1, b.Subscribers(bus.ChatInput))
	assert.Equal(t, 1, b.Subscribers(bus.IntentDetected))

	c.Stop()
	assert.Zero(t, b.Subscribers(bus.VoiceInput))
	assert.Zero(t, b.Subscribers(bus.ChatInput))
	assert.Zero(t, b.Subscribers(bus.IntentDetected))
}

type fixedDetector nlu.Result

func (d fixedDetector) Detect(context.Context, string) nlu.Result { return nlu.Result(d) }

func TestDetectedSlotsAreCopied(t *testing.T) {
	slots := nlu.Slots{nlu.SlotCity: "Paris"}
	b := bus.New(nil)
	c := New(b, fixedDetector{Intent: nlu.Weather, Slots: slots}, action.NewDispatcher(action.Handlers{}, nil), nil)
	c.Start()
	t.Cleanup(c.Stop)
	rec := record(b, bus.IntentDetected)

	b.Publish(context.Background(), input(bus.Chat, "weather in paris", "terminal"))
	slots[nlu.SlotCity] = "Rome"

	require.Len(t, rec.events[bus.IntentDetected], 1)
	v, ok := rec.events[bus.IntentDetected][0].Get(bus.KeyIntent)
	require.True(t, ok)
	res, ok := v.(nlu.Result)
	require.True(t, ok)
	assert.Equal(t, "Paris", res.Slots.Get(nlu.SlotCity))
}
