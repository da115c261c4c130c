package assistant

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nex/internal/bus"
	"nex/internal/config"
	"nex/internal/ipc"
	"nex/internal/nlu"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir, err := os.MkdirTemp("", "nex")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := config.Default()
	cfg.Socket = filepath.Join(dir, "c.sock")
	cfg.Reminders.File = filepath.Join(dir, "reminders.json")
	cfg.Secrets = config.Secrets{}
	cfg.Voice.StopTimeout = 200 * time.Millisecond
	return cfg
}

// exitOn classifies the given phrase as a request to quit.
type exitOn string

func (e exitOn) Classify(_ context.Context, text string) (nlu.Result, error) {
	if text == string(e) {
		return nlu.Result{Intent: nlu.SystemControl, Slots: nlu.Slots{nlu.SlotTarget: "exit"}}, nil
	}
	return nlu.Fallback(text), nil
}

type linePrompt struct {
	mu     sync.Mutex
	lines  chan string
	out    bytes.Buffer
	closed chan struct{}
	once   sync.Once
}

func newLinePrompt(lines ...string) *linePrompt {
	p := &linePrompt{lines: make(chan string, len(lines)), closed: make(chan struct{})}
	for _, l := range lines {
		p.lines <- l
	}
	return p
}

func (p *linePrompt) Readline() (string, error) {
	select {
	case l := <-p.lines:
		return l, nil
	case <-p.closed:
		return "", io.EOF
	}
}

func (p *linePrompt) Stdout() io.Writer { return p }

func (p *linePrompt) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *linePrompt) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

func (p *linePrompt) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func runAsync(a *Assistant, ctx context.Context) chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestTerminalSessionEndsOnExit(t *testing.T) {
	cfg := testConfig(t)
	p := newLinePrompt("6 * 7", "quit now")

	a := New(cfg, Deps{Classifier: exitOn("quit now"), Prompt: p}, nil)
	done := runAsync(a, context.Background())

	waitDone(t, done)
	assert.Contains(t, p.String(), "Nex: The answer is 42\n")
	assert.NotContains(t, p.String(), "EXIT")
}

func TestControlSocket(t *testing.T) {
	cfg := testConfig(t)
	cfg.Terminal.Enabled = false

	a := New(cfg, Deps{}, nil)

	var (
		mu      sync.Mutex
		replies []bus.Event
	)
	a.Bus().Subscribe(bus.ChatResponse, func(_ context.Context, e bus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		replies = append(replies, e)
		return nil
	})

	done := runAsync(a, context.Background())

	require.Eventually(t, func() bool {
		return ipc.SendCommand(cfg.Socket, ipc.ControlMessage{Cmd: ipc.CmdChat, Text: "remind me to stretch"}) == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replies) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "Reminder set: stretch", replies[0].Text())
	assert.Equal(t, CtlSender, replies[0].Sender())
	mu.Unlock()

	require.NoError(t, ipc.SendCommand(cfg.Socket, ipc.ControlMessage{Cmd: ipc.CmdStop}))
	waitDone(t, done)

	data, err := os.ReadFile(cfg.Reminders.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text": "stretch"`)
}

type speaker struct {
	mu   sync.Mutex
	said []string
}

func (s *speaker) Speak(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
	return nil
}

func (s *speaker) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.said...)
}

// mic hears each queued utterance once, then waits for cancellation.
type mic struct {
	heard chan string
	next  string
}

func (m *mic) Record(ctx context.Context) ([]float32, error) {
	select {
	case m.next = <-m.heard:
		return []float32{0.2}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mic) Transcribe(context.Context, []float32) (string, error) {
	return m.next, nil
}

func TestVoiceSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.Terminal.Enabled = false
	cfg.Socket = ""

	sp := &speaker{}
	m := &mic{heard: make(chan string, 2)}
	m.heard <- "Nex, what's the date today?"
	m.heard <- "nex goodbye"

	a := New(cfg, Deps{
		Classifier:  exitOn("goodbye"),
		Recorder:    m,
		Transcriber: m,
		Speaker:     sp,
	}, nil)

	waitDone(t, runAsync(a, context.Background()))

	said := sp.lines()
	require.Len(t, said, 2)
	assert.Equal(t, Greeting, said[0])
	assert.True(t, strings.HasPrefix(said[1], "Today is "), said[1])
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Terminal.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(New(cfg, Deps{}, nil), ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()
	waitDone(t, done)
}
