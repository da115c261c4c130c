package bus

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Channel is the surface a request came from and must be answered through.
type Channel string

const (
	Voice Channel = "voice"
	Chat  Channel = "chat"
)

func (ch Channel) Valid() bool {
	return ch == Voice || ch == Chat
}

type Kind uint

const (
	VoiceInput Kind = iota + 1
	ChatInput
	IntentDetected
	VoiceResponse
	ChatResponse
)

var kindNames = map[Kind]string{
	VoiceInput:     "voice_input",
	ChatInput:      "chat_input",
	IntentDetected: "intent_detected",
	VoiceResponse:  "voice_response",
	ChatResponse:   "chat_response",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint(k))
}

// InputKind returns the ChannelInput kind for ch.
func InputKind(ch Channel) (Kind, bool) {
	switch ch {
	case Voice:
		return VoiceInput, true
	case Chat:
		return ChatInput, true
	}
	return 0, false
}

// ResponseKind returns the ChannelResponse kind for ch.
func ResponseKind(ch Channel) (Kind, bool) {
	switch ch {
	case Voice:
		return VoiceResponse, true
	case Chat:
		return ChatResponse, true
	}
	return 0, false
}

// InputChannel reports which channel an input kind belongs to.
func InputChannel(k Kind) (Channel, bool) {
	switch k {
	case VoiceInput:
		return Voice, true
	case ChatInput:
		return Chat, true
	}
	return "", false
}

// Payload keys.
const (
	KeyText         = "text"
	KeyIntent       = "intent"
	KeySource       = "source"
	KeyOriginalText = "original_text"
	KeySender       = "sender"
	KeyExit         = "exit"
)

// Event is immutable once built: the payload map is copied on the way in
// and never handed out directly.
type Event struct {
	ID     string
	Kind   Kind
	Origin Channel
	At     time.Time

	payload map[string]any
}

func NewEvent(kind Kind, origin Channel, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Origin:  origin,
		At:      time.Now(),
		payload: maps.Clone(payload),
	}
}

func (e Event) Get(key string) (any, bool) {
	v, ok := e.payload[key]
	return v, ok
}

// GetString returns the payload value for key when it is a string.
func (e Event) GetString(key string) string {
	s, _ := e.payload[key].(string)
	return s
}

func (e Event) Bool(key string) bool {
	b, _ := e.payload[key].(bool)
	return b
}

func (e Event) Text() string   { return e.GetString(KeyText) }
func (e Event) Sender() string { return e.GetString(KeySender) }

// Exit reports whether the event carries the shutdown sentinel.
func (e Event) Exit() bool { return e.Bool(KeyExit) }

// Payload returns a shallow copy of the payload.
func (e Event) Payload() map[string]any {
	if e.payload == nil {
		return map[string]any{}
	}
	return maps.Clone(e.payload)
}
