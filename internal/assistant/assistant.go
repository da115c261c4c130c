// Package assistant wires the bus, the coordinator, the intent handlers and
// the channel adapters into one running session.
package assistant

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nex/internal/action"
	"nex/internal/bus"
	"nex/internal/chat"
	"nex/internal/config"
	"nex/internal/coordinator"
	"nex/internal/ipc"
	"nex/internal/nlu"
	"nex/internal/reminder"
	"nex/internal/voice"
	"nex/internal/web"
)

const (
	Greeting = "Nex session started"

	// CtlSender tags chat lines injected over the control socket.
	CtlSender = "ctl"

	shutdownTimeout = 2 * time.Second
)

// Deps are the pieces that touch hardware, the desktop or the network. A
// nil field switches the matching feature off.
type Deps struct {
	Classifier  nlu.Classifier
	HTTPClient  *http.Client
	Recorder    voice.Recorder
	Transcriber voice.Transcriber
	Speaker     voice.Speaker
	Ducker      voice.Ducker
	Chime       voice.Notifier
	Prompt      chat.Prompt
	Launcher    action.Launcher
	Opener      web.Opener
}

type Assistant struct {
	cfg *config.Config
	log *slog.Logger

	bus       *bus.Bus
	coord     *coordinator.Coordinator
	scheduler *reminder.Scheduler
	listener  *voice.Listener
	responder *voice.Responder
	terminal  *chat.Terminal
	hub       *chat.Hub

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}

	b := bus.New(logger.With("component", "bus"))

	store := reminder.NewStore(cfg.Reminders.File)
	sched := reminder.NewScheduler(b, store, cfg.Reminders.CheckInterval, logger.With("component", "scheduler"))
	reminders := reminder.NewService(store, sched)

	processor := nlu.NewProcessor(deps.Classifier,
		nlu.WithTimeout(cfg.Classifier.Timeout),
		nlu.WithLogger(logger.With("component", "nlu")),
	)
	dispatcher := action.NewDispatcher(handlers(cfg, deps, reminders), logger.With("component", "action"))

	a := &Assistant{
		cfg:       cfg,
		log:       logger,
		bus:       b,
		coord:     coordinator.New(b, processor, dispatcher, logger.With("component", "coordinator")),
		scheduler: sched,
	}

	if cfg.Voice.Enabled && deps.Recorder != nil && deps.Transcriber != nil {
		a.listener = voice.NewListener(b, deps.Recorder, deps.Transcriber, voice.ListenerConfig{
			Wake:        voice.NewWakeWords(cfg.WakeWords...),
			Cooldown:    cfg.Voice.Cooldown,
			JoinTimeout: cfg.Voice.StopTimeout,
			Chime:       deps.Chime,
		}, logger.With("component", "listener"))
	}
	if cfg.Voice.Enabled && deps.Speaker != nil {
		a.responder = voice.NewResponder(b, deps.Speaker, deps.Ducker, logger.With("component", "responder"))
	}
	if cfg.Terminal.Enabled && deps.Prompt != nil {
		a.terminal = chat.NewTerminal(b, deps.Prompt, logger.With("component", "terminal"))
	}
	if cfg.Hub.URL != "" {
		a.hub = chat.NewHub(b, cfg.Hub.URL, cfg.Hub.Reconnect, logger.With("component", "hub"))
	}

	return a
}

func handlers(cfg *config.Config, deps Deps, reminders *reminder.Service) action.Handlers {
	getter := web.Getter{Client: deps.HTTPClient, Timeout: cfg.HTTP.Timeout}
	browser := web.NewBrowser(deps.Opener)
	weather := &web.Weather{Getter: getter, APIKey: cfg.Secrets.OpenWeatherAPIKey}
	dictionary := &web.Dictionary{Getter: getter}
	jokes := &web.Jokes{Getter: getter}
	clock := action.Clock{}
	system := action.System{Launch: deps.Launcher}

	var smallTalk *action.SmallTalk
	if key := cfg.ChatKey(); key != "" && cfg.SmallTalk.Model != "" {
		doer := http.DefaultClient
		if deps.HTTPClient != nil {
			doer = deps.HTTPClient
		}
		smallTalk = action.NewSmallTalk(action.NewChatClient(key, cfg.SmallTalk.BaseURL, doer), cfg.SmallTalk.Model)
	} else {
		smallTalk = action.NewSmallTalk(nil, "")
	}

	return action.Handlers{
		Weather:       weather.Handle,
		Time:          clock.Time,
		Date:          clock.Date,
		ReminderSet:   reminders.Set,
		ReminderList:  reminders.List,
		Timer:         reminders.Timer,
		Joke:          jokes.Handle,
		Search:        browser.Search,
		OpenSite:      browser.OpenSite,
		PlayMusic:     browser.PlayMusic,
		Define:        dictionary.Handle,
		Calculate:     action.Calculate,
		SystemControl: system.Control,
		SmallTalk:     smallTalk.Reply,
	}
}

func (a *Assistant) Bus() *bus.Bus { return a.bus }

// Run blocks until ctx ends, the user exits or a stop command arrives. The
// terminal, when enabled, owns the foreground.
func (a *Assistant) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	exitSubs := []bus.Subscription{
		a.bus.Subscribe(bus.VoiceResponse, a.onResponse),
		a.bus.Subscribe(bus.ChatResponse, a.onResponse),
	}
	defer func() {
		for _, s := range exitSubs {
			s.Unsubscribe()
		}
	}()

	a.coord.Start()
	defer a.coord.Stop()

	if err := a.scheduler.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	if a.hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.hub.Run(ctx); err != nil {
				a.log.Error("Hub stopped", "err", err)
			}
		}()
	}

	if a.cfg.Socket != "" {
		if err := ipc.StartServer(ctx, a.cfg.Socket, a.control); err != nil {
			a.log.Warn("Control socket unavailable", "path", a.cfg.Socket, "err", err)
		} else {
			a.log.Debug("Control socket ready", "path", a.cfg.Socket)
		}
	}

	if a.responder != nil {
		a.responder.Start()
		if err := a.responder.Say(ctx, Greeting); err != nil {
			a.log.Warn("Failed to speak greeting", "err", err)
		}
	}
	if a.listener != nil {
		a.listener.Start(ctx)
	}

	a.log.Info(Greeting,
		"voice", a.listener != nil,
		"terminal", a.terminal != nil,
		"hub", a.hub != nil,
	)

	var runErr error
	if a.terminal != nil {
		stop := context.AfterFunc(ctx, func() { a.terminal.Close() })
		runErr = a.terminal.Run(ctx)
		stop()
		cancel()
	} else {
		<-ctx.Done()
	}

	a.shutdown()
	wg.Wait()

	a.log.Info("Nex session ended")
	return runErr
}

// Shutdown asks a running session to stop.
func (a *Assistant) Shutdown() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (a *Assistant) shutdown() {
	if a.listener != nil {
		a.listener.Stop()
	}
	if a.terminal != nil {
		a.terminal.Close()
	}
	if a.responder != nil {
		a.responder.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.scheduler.Stop(ctx)
}

func (a *Assistant) onResponse(_ context.Context, e bus.Event) error {
	if e.Exit() {
		a.log.Info("Exit requested", "channel", e.Origin)
		a.Shutdown()
	}
	return nil
}

func (a *Assistant) control(msg ipc.ControlMessage) {
	switch msg.Cmd {
	case ipc.CmdTrigger:
		if a.listener == nil {
			a.log.Warn("Push-to-talk without voice")
			return
		}
		a.listener.Trigger()
	case ipc.CmdChat:
		a.bus.Publish(context.Background(), bus.NewEvent(bus.ChatInput, bus.Chat, map[string]any{
			bus.KeyText:   msg.Text,
			bus.KeySender: CtlSender,
		}))
	case ipc.CmdStop:
		a.log.Info("Stop requested over control socket")
		a.Shutdown()
	default:
		a.log.Warn("Unknown command", "cmd", msg.Cmd)
	}
}
