package reminder

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"nex/internal/action"
	"nex/internal/bus"
	"nex/internal/nlu"
)

// Timers starts one-shot countdowns.
type Timers interface {
	After(d time.Duration, label string, ch bus.Channel)
}

// Service serves the reminder_set, reminder_list and timer intents.
type Service struct {
	store  *Store
	timers Timers
	Now    func() time.Time
}

func NewService(store *Store, timers Timers) *Service {
	return &Service{store: store, timers: timers, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) Set(_ context.Context, req action.Request) (string, error) {
	text := reminderText(req)
	if text == "" {
		return "What should I remind you about?", nil
	}

	now := s.now()
	created := now.Format(time.RFC3339)

	when := created
	if raw := req.Slots.Get(nlu.SlotDatetime); raw != "" {
		when = ParseWhen(raw, now)
	}

	ch := req.Channel
	if !ch.Valid() {
		ch = bus.Chat
	}

	err := s.store.Add(Reminder{Text: text, When: when, Created: created, Channel: string(ch)})
	if err != nil {
		return "", err
	}

	return "Reminder set: " + text, nil
}

func (s *Service) List(context.Context, action.Request) (string, error) {
	list := s.store.All()
	if len(list) == 0 {
		return "You have no reminders.", nil
	}

	lines := make([]string, 0, len(list))
	for _, r := range list {
		lines = append(lines, fmt.Sprintf("- %s at %s", r.Text, r.When))
	}

	return strings.Join(lines, "\n"), nil
}

func (s *Service) Timer(_ context.Context, req action.Request) (string, error) {
	raw := req.Slots.Get(nlu.SlotAmount)
	if raw == "" {
		return "How long should the timer be?", nil
	}

	amount, err := strconv.Atoi(raw)
	if err != nil || amount < 0 {
		return "Timer cancelled.", nil
	}

	scale := 1
	unit := strings.ToLower(req.Slots.Get(nlu.SlotUnit))
	switch {
	case strings.HasPrefix(unit, "min"):
		scale = 60
	case strings.HasPrefix(unit, "hour"):
		scale = 3600
	}
	if int64(amount) > math.MaxInt64/int64(time.Second)/int64(scale) {
		return "Timer cancelled.", nil
	}
	amount *= scale

	if s.timers == nil {
		return "Timer cancelled.", nil
	}
	s.timers.After(time.Duration(amount)*time.Second, "Timer", req.Channel)

	return fmt.Sprintf("Timer set for %d seconds.", amount), nil
}

var reminderPrefixes = []string{"remind me to", "remind me"}

func reminderText(req action.Request) string {
	for _, slot := range []string{nlu.SlotTarget, nlu.SlotQuery} {
		if v := req.Slots.Get(slot); v != "" {
			return v
		}
	}

	text := strings.TrimSpace(req.Text)
	lower := strings.ToLower(text)
	for _, p := range reminderPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(text[len(p):])
		}
	}

	return text
}

var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseWhen normalizes a datetime slot to RFC3339 in now's location. A bare
// clock time means today. Unparseable input is returned unchanged.
func ParseWhen(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	loc := now.Location()

	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.Format(time.RFC3339)
		}
	}

	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"} {
		if t, err := time.ParseInLocation(layout, strings.ToUpper(raw), loc); err == nil {
			day := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, loc)
			return day.Format(time.RFC3339)
		}
	}

	return raw
}
