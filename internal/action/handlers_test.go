package action

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nex/internal/nlu"
)

func TestClock(t *testing.T) {
	c := Clock{Now: func() time.Time {
		return time.Date(2024, time.March, 5, 15, 4, 0, 0, time.UTC)
	}}

	got, err := c.Time(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "The time is 03:04 PM", got)

	got, err = c.Date(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Today is Tuesday, March 05, 2024", got)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"", "What should I calculate?"},
		{"2 + 2", "The answer is 4"},
		{"7 times 6", "The answer is 42"},
		{"10 / 4", "The answer is 2.5"},
		{"1 / 0", "I couldn't calculate that."},
		{"rm -rf /", "I couldn't calculate that."},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Calculate(context.Background(), Request{Slots: nlu.Slots{nlu.SlotExpr: tc.expr}})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSystemControl(t *testing.T) {
	tests := []struct {
		target   string
		want     string
		launched string
	}{
		{"exit", Exit, ""},
		{"Goodbye Nex", Exit, ""},
		{"quit please", Exit, ""},
		{"open the calculator", "Opening calculator.", "gnome-calculator"},
		{"console", "Opening terminal.", "gnome-terminal"},
		{"vscode", "Opening VS Code.", "code"},
		{"reboot", "I can't do that system action yet.", ""},
		{"", "I can't do that system action yet.", ""},
	}

	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			var launched string
			s := System{Launch: func(name string, _ ...string) error {
				launched = name
				return nil
			}}

			got, err := s.Control(context.Background(), Request{Slots: nlu.Slots{nlu.SlotTarget: tc.target}})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.launched, launched)
		})
	}
}

func TestSystemControlLaunchFailure(t *testing.T) {
	s := System{Launch: func(string, ...string) error { return errors.New("not installed") }}
	d := NewDispatcher(Handlers{SystemControl: s.Control}, nil)

	got := d.Execute(context.Background(), nlu.Result{
		Intent: nlu.SystemControl,
		Slots:  nlu.Slots{nlu.SlotTarget: "terminal"},
	}, "chat")

	assert.Equal(t, "Sorry, I had trouble with that: not installed", got)
}

func TestSmallTalkCanned(t *testing.T) {
	s := NewSmallTalk(nil, "")

	tests := []struct {
		text string
		want string
	}{
		{"hello nex", "Hello! How can I help you?"},
		{"Hey", "Hello! How can I help you?"},
		{"how are you", "I'm a program, always ready to assist!"},
		{"tell me about the moon", NotHandled},
		{"", NotHandled},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got, err := s.Reply(context.Background(), Request{Text: tc.text})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSmallTalkChatModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": " The moon is about 384,000 km away. "}}},
		})
	}))
	defer srv.Close()

	s := NewSmallTalk(NewChatClient("test", srv.URL+"/v1", nil), "llama-3.1-8b-instant")

	got, err := s.Reply(context.Background(), Request{Text: "tell me about the moon"})
	require.NoError(t, err)
	assert.Equal(t, "The moon is about 384,000 km away.", got)
}
