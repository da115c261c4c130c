// Package voice is the microphone and speaker side of the assistant: it
// listens for the wake word, forwards commands to the bus and speaks voice
// responses.
package voice

import (
	"strings"
	"unicode"
)

// DefaultWakeWords covers the usual mishearings of "Nex".
var DefaultWakeWords = []string{"nex", "next", "necks", "neks", "lex", "nacks", "neck", "nek"}

// WakeWords is a case-insensitive set.
type WakeWords map[string]struct{}

func NewWakeWords(words ...string) WakeWords {
	w := make(WakeWords, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			w[word] = struct{}{}
		}
	}
	return w
}

func (w WakeWords) Has(word string) bool {
	_, ok := w[strings.ToLower(word)]
	return ok
}

// ExtractCommand finds the first wake word in text and returns what follows
// it. The command is empty when the wake word was the last thing said; ok is
// false when there was no wake word at all.
func ExtractCommand(text string, wake WakeWords) (cmd string, ok bool) {
	words := strings.Fields(strings.ToLower(text))

	for i, w := range words {
		if !wake.Has(trimPunct(w)) {
			continue
		}
		return strings.Join(words[i+1:], " "), true
	}

	return "", false
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
