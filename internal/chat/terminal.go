// Package chat holds the text channel adapters: the terminal prompt and the
// websocket hub client.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"nex/internal/bus"
)

// TerminalSender tags events typed at the local prompt.
const TerminalSender = "terminal"

// Prompt is the line editor the terminal reads from. *readline.Instance
// satisfies it.
type Prompt interface {
	Readline() (string, error)
	Stdout() io.Writer
	Close() error
}

// NewPrompt opens a readline prompt with history at historyFile, which may
// be empty.
func NewPrompt(historyFile string) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("open prompt: %w", err)
	}
	return rl, nil
}

type Terminal struct {
	bus    *bus.Bus
	prompt Prompt
	log    *slog.Logger

	mu     sync.Mutex
	sub    *bus.Subscription
	closed bool
}

func NewTerminal(b *bus.Bus, p Prompt, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Terminal{bus: b, prompt: p, log: logger}
}

// Run owns the foreground until the user ends input or Close is called.
func (t *Terminal) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.sub == nil {
		sub := t.bus.Subscribe(bus.ChatResponse, t.onResponse)
		t.sub = &sub
	}
	t.mu.Unlock()
	defer t.unsubscribe()

	fmt.Fprintln(t.prompt.Stdout(), "Nex chat. Ctrl-D to quit.")

	for {
		line, err := t.prompt.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if t.isClosed() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		t.bus.Publish(ctx, bus.NewEvent(bus.ChatInput, bus.Chat, map[string]any{
			bus.KeyText:   line,
			bus.KeySender: TerminalSender,
		}))
	}
}

func (t *Terminal) onResponse(_ context.Context, e bus.Event) error {
	if e.Exit() || IsHubSender(e.Sender()) {
		return nil
	}

	_, err := fmt.Fprintf(t.prompt.Stdout(), "Nex: %s\n", e.Text())
	return err
}

// Close unblocks a pending Run.
func (t *Terminal) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.prompt.Close()
}

func (t *Terminal) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Terminal) unsubscribe() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub != nil {
		t.sub.Unsubscribe()
		t.sub = nil
	}
}
