package nlu

import "strings"

// Fallback is the deterministic keyword matcher used when the classifier is
// unavailable. Branches are tried in order and the first match wins; the
// order is part of the observable behaviour, e.g. "play search for cats"
// resolves to search because search is checked before play_music.
// Keyword tests run on a lower-cased copy, slot values are cut from the
// original text.
func Fallback(text string) Result {
	t := strings.ToLower(text)

	res := func(intent Intent, slots Slots) Result {
		return Result{Intent: intent, Slots: slots, Text: text}
	}

	switch {
	case containsAny(t, "weather", "temperature", "temp", "forecast", "rain", "snow"):
		return res(Weather, Slots{SlotCity: extractAfter(t, "in")})

	case containsAny(t, "time", "what time", "clock"):
		return res(Time, Slots{})

	case containsAny(t, "date", "what day", "today", "day is it"):
		return res(Date, Slots{})

	case strings.Contains(t, "joke"):
		return res(Joke, Slots{})

	case containsAny(t, "search", "look up", "find"):
		return res(Search, Slots{SlotQuery: strip(text, "search", "look up")})

	case containsAny(t, "open", "go to"):
		return res(OpenSite, Slots{SlotTarget: strip(text, "open", "go to")})

	case containsAny(t, "play", "song", "music"):
		return res(PlayMusic, Slots{SlotSong: strip(text, "play")})

	case containsAny(t, "define", "definition", "what does"):
		return res(Define, Slots{SlotWord: strip(text, "define")})

	case strings.ContainsAny(t, "+-*/") || strings.Contains(t, "calculate"):
		return res(Calculate, Slots{SlotExpr: strip(text, "calculate")})

	case strings.Contains(t, "remind"):
		return res(ReminderSet, Slots{})

	case strings.Contains(t, "timer"):
		return res(Timer, Slots{})

	case containsAny(t, "hello", "hi", "hey", "how are you"):
		return res(SmallTalk, Slots{})
	}

	return unknown(text)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// strip removes every occurrence of words, case-sensitively, and trims.
func strip(s string, words ...string) string {
	for _, w := range words {
		s = strings.ReplaceAll(s, w, "")
	}
	return strings.TrimSpace(s)
}

// extractAfter returns the piece between the first and second occurrence
// of sep, trimmed.
func extractAfter(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
