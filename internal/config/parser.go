// Package config provides configuration loading from environment and file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/spf13/viper"
)

// Environment variables read by the parser.
const (
	EnvAppURL         = "STREAMLIT_APP_URL"
	EnvGitHubActions  = "GITHUB_ACTIONS"
	EnvChromeBin      = "CHROME_BIN"
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Defaults of the wake protocol.
const (
	DefaultButtonText    = "Yes, get this app back up!"
	DefaultInitialWait   = 10 * time.Second
	DefaultPostClickWait = 20 * time.Second
	DefaultSearchTimeout = 5 * time.Second
	DefaultWindowSize    = "1920,1080"
)

// ErrMissingAppURL is returned when no target URL is configured.
var ErrMissingAppURL = errors.New("environment variable " + EnvAppURL + " is not set")

// Parser handles configuration parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	_ = v.BindEnv("wake.app_url", EnvAppURL)
	_ = v.BindEnv("browser.bin", EnvChromeBin)
	_ = v.BindEnv("telegram.bot_token", EnvTelegramToken)
	_ = v.BindEnv("telegram.chat_id", EnvTelegramChatID)
	return &Parser{v: v}
}

// LoadEnv loads configuration from the environment only.
func (p *Parser) LoadEnv() (*models.AppConfig, error) {
	return p.parse()
}

// LoadFile loads configuration from a file path, environment values win.
func (p *Parser) LoadFile(path string) (*models.AppConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.AppConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

// SetAppURL overrides the target URL, e.g. from a command line flag.
func (p *Parser) SetAppURL(url string) {
	p.v.Set("wake.app_url", url)
}

func (p *Parser) parse() (*models.AppConfig, error) {
	cfg := &models.AppConfig{}

	// Parse wake settings. The URL is checked by Validate so that
	// `validate` can report it alongside the other fields.
	cfg.Wake = models.WakeConfig{
		AppURL:        strings.TrimSpace(p.expandEnv(p.v.GetString("wake.app_url"))),
		ButtonText:    p.v.GetString("wake.button_text"),
		InitialWait:   p.v.GetDuration("wake.initial_wait"),
		PostClickWait: p.v.GetDuration("wake.post_click_wait"),
		SearchTimeout: p.v.GetDuration("wake.search_timeout"),
	}

	if cfg.Wake.ButtonText == "" {
		cfg.Wake.ButtonText = DefaultButtonText
	}
	if cfg.Wake.InitialWait == 0 {
		cfg.Wake.InitialWait = DefaultInitialWait
	}
	if cfg.Wake.PostClickWait == 0 {
		cfg.Wake.PostClickWait = DefaultPostClickWait
	}
	if cfg.Wake.SearchTimeout == 0 {
		cfg.Wake.SearchTimeout = DefaultSearchTimeout
	}
	if cfg.Wake.InitialWait < 0 || cfg.Wake.PostClickWait < 0 || cfg.Wake.SearchTimeout < 0 {
		return nil, fmt.Errorf("wake durations must not be negative")
	}

	// Parse browser settings.
	cfg.Browser = models.BrowserConfig{
		Headless:   p.v.GetBool("browser.headless"),
		WindowSize: p.v.GetString("browser.window_size"),
		Bin:        p.expandEnv(p.v.GetString("browser.bin")),
	}

	// CI runners have no display and run as root.
	if _, ok := os.LookupEnv(EnvGitHubActions); ok {
		cfg.Browser.CI = true
		cfg.Browser.Headless = true
		cfg.Browser.NoSandbox = true
		cfg.Browser.DisableGPU = true
		cfg.Browser.DisableDevShm = true
		if cfg.Browser.WindowSize == "" {
			cfg.Browser.WindowSize = DefaultWindowSize
		}
	}

	// Parse optional probe config.
	if p.v.IsSet("probe") {
		cfg.Probe = &models.ProbeConfig{
			URL:          p.expandEnv(p.v.GetString("probe.url")),
			Timeout:      p.v.GetDuration("probe.timeout"),
			PollInterval: p.v.GetDuration("probe.poll_interval"),
		}

		// Set defaults.
		if cfg.Probe.URL == "" {
			cfg.Probe.URL = cfg.Wake.AppURL
		}
		if cfg.Probe.Timeout == 0 {
			cfg.Probe.Timeout = 2 * time.Minute
		}
		if cfg.Probe.PollInterval == 0 {
			cfg.Probe.PollInterval = 5 * time.Second
		}
	}

	// Parse optional Telegram config.
	token := p.expandEnv(p.v.GetString("telegram.bot_token"))
	chatID := p.expandEnv(p.v.GetString("telegram.chat_id"))
	if token != "" || chatID != "" {
		if token == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if chatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
		cfg.Telegram = &models.TelegramConfig{
			BotToken: token,
			ChatID:   chatID,
		}
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Wake.AppURL == "" {
		return ErrMissingAppURL
	}

	if cfg.Wake.ButtonText == "" {
		return fmt.Errorf("wake.button_text is required")
	}

	if cfg.Probe != nil && cfg.Probe.URL == "" {
		return fmt.Errorf("probe.url is required when probe is configured")
	}

	return nil
}
