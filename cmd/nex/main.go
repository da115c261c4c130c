package main

import (
	"context"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"nex/internal/assistant"
	"nex/internal/audio"
	"nex/internal/chat"
	"nex/internal/config"
	"nex/internal/nlu"
	"nex/internal/notify"
	"nex/internal/proxy"
	"nex/internal/tts"
	"nex/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfgFile := cli.StringP("config", "c", "nex.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (overrides config)")
	noVoice := cli.Bool("no-voice", false, "Disable microphone and speech")
	noTerminal := cli.Bool("no-terminal", false, "Disable the terminal chat")
	hubURL := cli.String("hub", "", "Websocket hub url (overrides config)")
	cli.Parse()

	// .env only fills variables that are not already set
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to load env file", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	level := logLevelMap[*logLevel]
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
	})))

	log.Info("Booting up")

	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if *hubURL != "" {
		cfg.Hub.URL = *hubURL
	}
	if *noVoice {
		cfg.Voice.Enabled = false
	}
	if *noTerminal {
		cfg.Terminal.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	httpClient, err := proxy.NewClient(cfg.Proxy, cfg.HTTP.Timeout)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	// xdg-open chatter would garble the terminal prompt
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	deps := assistant.Deps{HTTPClient: httpClient}

	if cfg.Secrets.GroqAPIKey != "" {
		client := openai.NewClient(
			option.WithAPIKey(cfg.Secrets.GroqAPIKey),
			option.WithBaseURL(cfg.Classifier.BaseURL),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		)
		deps.Classifier = nlu.NewOpenAIClassifier(client, cfg.Classifier.Model)
		log.Debug("Loaded classifier", "model", cfg.Classifier.Model)
	} else {
		log.Warn("GROQ_API_KEY not set, using keyword intents only")
	}

	if cfg.Voice.Enabled {
		closeVoice, err := setupVoice(cfg, &deps)
		if err != nil {
			log.Error("Failed to init voice, continuing without it", "err", err)
			cfg.Voice.Enabled = false
		} else {
			defer closeVoice()
		}
	}

	if cfg.Terminal.Enabled {
		prompt, err := chat.NewPrompt(cfg.Terminal.History)
		if err != nil {
			log.Error("Failed to open terminal", "err", err)
			os.Exit(1)
		}
		defer prompt.Close()
		deps.Prompt = prompt
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Boot up - successful")

	if err := assistant.New(cfg, deps, log.Default()).Run(ctx); err != nil {
		log.Error("Session failed", "err", err)
		os.Exit(1)
	}
}

func setupVoice(cfg *config.Config, deps *assistant.Deps) (func(), error) {
	rec := audio.NewRecorder(audio.RecorderConfig{MaxLength: cfg.Voice.MaxRecord})
	if err := rec.Init(); err != nil {
		return nil, err
	}
	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.Voice.Model, stt.Options{Language: cfg.Voice.Language})
	if err != nil {
		rec.Close()
		return nil, err
	}
	log.Debug("Loaded whisper", "model", cfg.Voice.Model)

	deps.Recorder = rec
	deps.Transcriber = whisper
	deps.Speaker = tts.NewEspeak(cfg.Voice.Language, 0)
	deps.Chime = notify.NewChime(cfg.Voice.Chime)

	if cfg.Voice.Duck {
		if _, err := exec.LookPath("pactl"); err == nil {
			deps.Ducker = audio.NewDucker(audio.DuckerConfig{
				SelfNames: []string{filepath.Base(os.Args[0]), "espeak"},
				Factor:    cfg.Voice.DuckFactor,
				MinVolume: 10,
				Fade:      cfg.Voice.Cooldown / 2,
			}, nil)
		} else {
			log.Warn("pactl not found, ducking disabled")
		}
	}

	return func() {
		whisper.Close()
		rec.Close()
	}, nil
}
