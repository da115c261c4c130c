package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New(nil)

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), NewEvent(ChatInput, Chat, map[string]any{KeyText: "hi"}))
	})
}

func TestPublishOrder(t *testing.T) {
	b := New(nil)

	var got []int
	for i := 1; i <= 3; i++ {
		b.Subscribe(ChatInput, func(context.Context, Event) error {
			got = append(got, i)
			return nil
		})
	}
	b.Subscribe(VoiceInput, func(context.Context, Event) error {
		t.Error("voice handler must not see chat events")
		return nil
	})

	b.Publish(context.Background(), NewEvent(ChatInput, Chat, nil))

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestFailingHandlerIsolated(t *testing.T) {
	tests := []struct {
		name string
		fn   Handler
	}{
		{"error", func(context.Context, Event) error { return errors.New("boom") }},
		{"panic", func(context.Context, Event) error { panic("boom") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New(nil)

			var seen string
			b.Subscribe(ChatResponse, tc.fn)
			b.Subscribe(ChatResponse, func(_ context.Context, e Event) error {
				seen = e.Text()
				return nil
			})

			b.Publish(context.Background(), NewEvent(ChatResponse, Chat, map[string]any{KeyText: "still here"}))

			assert.Equal(t, "still here", seen)
		})
	}
}

func TestSubscribeDuringPublish(t *testing.T) {
	b := New(nil)

	var late int
	b.Subscribe(VoiceInput, func(context.Context, Event) error {
		b.Subscribe(VoiceInput, func(context.Context, Event) error {
			late++
			return nil
		})
		return nil
	})

	b.Publish(context.Background(), NewEvent(VoiceInput, Voice, nil))
	assert.Equal(t, 0, late, "handler added mid-delivery must not see the in-flight event")

	b.Publish(context.Background(), NewEvent(VoiceInput, Voice, nil))
	assert.Equal(t, 1, late)
}

func TestRepublishFromHandler(t *testing.T) {
	b := New(nil)

	var resp string
	b.Subscribe(ChatInput, func(ctx context.Context, e Event) error {
		b.Publish(ctx, NewEvent(ChatResponse, Chat, map[string]any{KeyText: "echo " + e.Text()}))
		return nil
	})
	b.Subscribe(ChatResponse, func(_ context.Context, e Event) error {
		resp = e.Text()
		return nil
	})

	b.Publish(context.Background(), NewEvent(ChatInput, Chat, map[string]any{KeyText: "ping"}))

	assert.Equal(t, "echo ping", resp)
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)

	var calls int
	sub := b.Subscribe(ChatInput, func(context.Context, Event) error {
		calls++
		return nil
	})
	require.Equal(t, 1, b.Subscribers(ChatInput))

	sub.Unsubscribe()
	sub.Unsubscribe()

	b.Publish(context.Background(), NewEvent(ChatInput, Chat, nil))
	assert.Zero(t, calls)
	assert.Zero(t, b.Subscribers(ChatInput))
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	b := New(nil)

	var (
		mu    sync.Mutex
		count int
	)
	handler := func(context.Context, Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}
	b.Subscribe(ChatInput, handler)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Publish(context.Background(), NewEvent(ChatInput, Chat, nil))
		}()
		go func() {
			defer wg.Done()
			b.Subscribe(VoiceInput, handler)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
	assert.Equal(t, 50, b.Subscribers(VoiceInput))
}
