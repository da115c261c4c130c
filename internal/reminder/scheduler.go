package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"nex/internal/bus"
)

const DefaultCheckInterval = 30 * time.Second

// once fires a single time, d after the runner first asks for its next
// activation. Next is only called from the runner goroutine.
type once struct {
	d  time.Duration
	at time.Time
}

func (o *once) Next(t time.Time) time.Time {
	if o.at.IsZero() {
		o.at = t.Add(o.d)
		return o.at
	}
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// Scheduler runs timers and the periodic due-reminder check on a cron
// runner. Everything it fires is published as a response event on the
// channel it belongs to.
type Scheduler struct {
	cron     *cron.Cron
	bus      *bus.Bus
	store    *Store
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func NewScheduler(b *bus.Bus, store *Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	return &Scheduler{
		cron:     cron.New(),
		bus:      b,
		store:    store,
		interval: interval,
		log:      logger,
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.lastCheck = s.now()
	s.mu.Unlock()

	if s.store != nil {
		if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.CheckDue); err != nil {
			return fmt.Errorf("schedule reminder check: %w", err)
		}
	}

	s.cron.Start()
	s.log.Debug("Scheduler started", "interval", s.interval)
	return nil
}

// Stop halts the runner and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler jobs still running at shutdown")
	}
}

// After publishes "<label> done." on ch once d has elapsed.
func (s *Scheduler) After(d time.Duration, label string, ch bus.Channel) {
	if !ch.Valid() {
		ch = bus.Chat
	}

	if d < 0 {
		d = 0
	}

	id := make(chan cron.EntryID, 1)
	id <- s.cron.Schedule(&once{d: d}, cron.FuncJob(func() {
		s.announce(ch, label+" done.")
		s.cron.Remove(<-id)
	}))

	s.log.Debug("Timer scheduled", "label", label, "in", d, "channel", ch)
}

// CheckDue announces stored reminders whose time fell after the previous
// check. Reminders without an explicit time are never announced.
func (s *Scheduler) CheckDue() {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	from := s.lastCheck
	to := s.now()
	s.lastCheck = to
	s.mu.Unlock()

	for _, r := range s.store.All() {
		when, err := time.Parse(time.RFC3339, r.When)
		if err != nil || r.When == r.Created {
			continue
		}
		if !when.After(from) || when.After(to) {
			continue
		}

		ch := bus.Channel(r.Channel)
		if !ch.Valid() {
			ch = bus.Chat
		}
		s.announce(ch, "Reminder: "+r.Text)
	}
}

func (s *Scheduler) announce(ch bus.Channel, text string) {
	kind, ok := bus.ResponseKind(ch)
	if !ok {
		return
	}
	s.log.Info("Announcing", "channel", ch, "text", text)

	ev := bus.NewEvent(kind, ch, map[string]any{
		bus.KeyText:   text,
		bus.KeySource: string(ch),
	})
	s.bus.Publish(context.Background(), ev)
}
