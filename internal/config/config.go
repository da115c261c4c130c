// Package config loads the assistant settings: non-secret options from a
// YAML file, secrets and a few overrides from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Debug     bool     `yaml:"debug" env:"NEX_DEBUG"`
	WakeWords []string `yaml:"wake_words" env:"NEX_WAKE_WORDS" envSeparator:","`

	// SOCKS5 proxy for outbound HTTP. Empty means direct.
	Proxy  string `yaml:"proxy"`
	Socket string `yaml:"socket"`

	Classifier ClassifierConfig `yaml:"classifier"`
	SmallTalk  SmallTalkConfig  `yaml:"small_talk"`
	HTTP       HTTPConfig       `yaml:"http"`
	Voice      VoiceConfig      `yaml:"voice"`
	Terminal   TerminalConfig   `yaml:"terminal"`
	Hub        HubConfig        `yaml:"hub"`
	Reminders  RemindersConfig  `yaml:"reminders"`

	Secrets Secrets `yaml:"-"`
}

type ClassifierConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type SmallTalkConfig struct {
	BaseURL string `yaml:"base_url"`
	// Empty disables the chat model; greetings still work.
	Model string `yaml:"model"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type VoiceConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Model       string        `yaml:"model"`
	Language    string        `yaml:"language"`
	Chime       string        `yaml:"chime"`
	Duck        bool          `yaml:"duck"`
	DuckFactor  float64       `yaml:"duck_factor"`
	MaxRecord   time.Duration `yaml:"max_record"`
	Cooldown    time.Duration `yaml:"cooldown"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

type TerminalConfig struct {
	Enabled bool   `yaml:"enabled"`
	History string `yaml:"history"`
}

type HubConfig struct {
	// Empty disables the hub client.
	URL       string        `yaml:"url"`
	Reconnect time.Duration `yaml:"reconnect"`
}

type RemindersConfig struct {
	File          string        `yaml:"file"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// Secrets only ever come from the environment.
type Secrets struct {
	GroqAPIKey        string `env:"GROQ_API_KEY"`
	OpenWeatherAPIKey string `env:"OPENWEATHER_API_KEY"`
	ChatAPIKey        string `env:"NEX_CHAT_API_KEY"`
}

const groqBaseURL = "https://api.groq.com/openai/v1"

func Default() *Config {
	return &Config{
		WakeWords: []string{"nex", "next", "necks", "neks", "lex", "nacks", "neck", "nek"},
		Socket:    "/tmp/nex.sock",
		Classifier: ClassifierConfig{
			BaseURL: groqBaseURL,
			Model:   "llama-3.1-8b-instant",
			Timeout: 8 * time.Second,
		},
		SmallTalk: SmallTalkConfig{
			BaseURL: groqBaseURL,
			Model:   "llama-3.1-8b-instant",
		},
		HTTP: HTTPConfig{Timeout: 8 * time.Second},
		Voice: VoiceConfig{
			Enabled:     true,
			Model:       "models/ggml-base.en.bin",
			Language:    "en",
			Chime:       "beep.mp3",
			DuckFactor:  0.3,
			MaxRecord:   10 * time.Second,
			Cooldown:    500 * time.Millisecond,
			StopTimeout: time.Second,
		},
		Terminal: TerminalConfig{Enabled: true},
		Hub:      HubConfig{Reconnect: 3 * time.Second},
		Reminders: RemindersConfig{
			File:          "data/reminders.json",
			CheckInterval: 30 * time.Second,
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromReader(strings.NewReader(""))
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return LoadFromReader(strings.NewReader(""))
	}
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	return LoadFromReader(f)
}

// LoadFromReader decodes YAML over the defaults, then applies the
// environment.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()

	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Reminders.File = expandHome(cfg.Reminders.File)
	cfg.Terminal.History = expandHome(cfg.Terminal.History)

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.WakeWords) == 0 {
		errs = append(errs, errors.New("wake_words must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"classifier.timeout":       c.Classifier.Timeout,
		"http.timeout":             c.HTTP.Timeout,
		"voice.stop_timeout":       c.Voice.StopTimeout,
		"reminders.check_interval": c.Reminders.CheckInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Reminders.File == "" {
		errs = append(errs, errors.New("reminders.file must be set"))
	}

	return errors.Join(errs...)
}

// ChatKey is the key for the small-talk endpoint, falling back to the
// classifier key when both talk to the same provider.
func (c *Config) ChatKey() string {
	if c.Secrets.ChatAPIKey != "" {
		return c.Secrets.ChatAPIKey
	}
	return c.Secrets.GroqAPIKey
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
