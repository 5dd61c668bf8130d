package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for tradebot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Inbox     InboxConfig     `json:"inbox"`
	Browser   BrowserConfig   `json:"browser"`
	Reply     ReplyConfig     `json:"reply"`
	Session   SessionConfig   `json:"session"`
	Capture   CaptureConfig   `json:"capture"`
	Notify    NotifyConfig    `json:"notify"`
	Metrics   MetricsConfig   `json:"metrics"`
	Selectors SelectorsConfig `json:"selectors"`
}

type GeneralConfig struct {
	Workspace string `json:"workspace"`
	LogLevel  string `json:"logLevel"`
	LogFile   string `json:"logFile,omitempty"`
}

// InboxConfig tunes the polling loop against the messenger UI.
type InboxConfig struct {
	MainURL                 string `json:"mainUrl"`
	BaseURL                 string `json:"baseUrl"`
	PollMinSeconds          int    `json:"pollMinSeconds"`
	PollMaxSeconds          int    `json:"pollMaxSeconds"`
	RefreshMinSeconds       int    `json:"refreshMinSeconds"`
	RefreshMaxSeconds       int    `json:"refreshMaxSeconds"`
	IdleCyclesBeforeRefresh int    `json:"idleCyclesBeforeRefresh"`
	StaleLabelSeconds       int    `json:"staleLabelSeconds"` // labeled-but-unresolved threshold
}

type BrowserConfig struct {
	Headless      bool   `json:"headless"`
	ProfileDir    string `json:"profileDir,omitempty"`
	CookiesFile   string `json:"cookiesFile"`
	LaunchRetries int    `json:"launchRetries"`
	LoginRetries  int    `json:"loginRetries"`
}

type ReplyConfig struct {
	AnswerServiceURL string `json:"answerServiceUrl"`
	TimeoutSeconds   int    `json:"timeoutSeconds"`
	UseAssistantUI   bool   `json:"useAssistantUi"` // mutates shared UI state; off in hardened setups
	TemplatesFile    string `json:"templatesFile,omitempty"`
}

type SessionConfig struct {
	HealthCheckMinutes   int `json:"healthCheckMinutes"`
	MaxRecoveryAttempts  int `json:"maxRecoveryAttempts"`
	MaxConsecutiveErrors int `json:"maxConsecutiveErrors"`
}

type CaptureConfig struct {
	Enabled        bool   `json:"enabled"`
	WebhookURL     string `json:"webhookUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	LedgerPath     string `json:"ledgerPath"`
	FollowUpDays   int    `json:"followUpDays"`
}

// NotifyConfig configures optional operator alerts over Telegram.
type NotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Endpoint string `json:"endpoint"`
}

// SelectorsConfig keeps every page lookup key data-driven so presentation
// drift can be patched in config without touching control logic.
type SelectorsConfig struct {
	UnreadBadge      string `json:"unreadBadge"`
	BadgeAncestors   int    `json:"badgeAncestors"` // element levels from badge to container
	ContactTime      string `json:"contactTime"`
	LabelTag         string `json:"labelTag"`
	RecipientAttr    string `json:"recipientAttr"`
	DialogClose      string `json:"dialogClose"`
	LatestMessage    string `json:"latestMessage"`
	TypeInfoAttr     string `json:"typeInfoAttr"`
	RichContent      string `json:"richContent"`
	MessageImage     string `json:"messageImage"`
	Description      string `json:"description"`
	DescriptionImage string `json:"descriptionImage"`
	FileCard         string `json:"fileCard"`
	FileCardAttr     string `json:"fileCardAttr"`
	SendBox          string `json:"sendBox"`
	SendButton       string `json:"sendButton"`
	AssistantEntry   string `json:"assistantEntry"`
	AssistantUse     string `json:"assistantUse"`
	AssistantDraft   string `json:"assistantDraft"`

	// InquirySummary is an ordered fallback list; the UI uses inconsistent
	// class names for the summary line across views.
	InquirySummary  []string       `json:"inquirySummary"`
	InquiryKeywords []string       `json:"inquiryKeywords"`
	BuyerStats      []StatSelector `json:"buyerStats,omitempty"`
}

// StatSelector maps one buyer profile counter to its lookup key.
type StatSelector struct {
	Name     string `json:"name"` // profile_views | inquiry_count | rfq_count | login_days | spam_count | blacklist_count
	Selector string `json:"selector"`
}

// DefaultConfigDir returns the default config directory (~/.tradebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tradebot"
	}
	return filepath.Join(home, ".tradebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.Workspace = ExpandPath(cfg.General.Workspace)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Browser.CookiesFile = ExpandPath(cfg.Browser.CookiesFile)
	cfg.Browser.ProfileDir = ExpandPath(cfg.Browser.ProfileDir)
	cfg.Capture.LedgerPath = ExpandPath(cfg.Capture.LedgerPath)
	cfg.Reply.TemplatesFile = ExpandPath(cfg.Reply.TemplatesFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Inbox.MainURL == "" {
		errs = append(errs, "inbox.mainUrl is required")
	}
	if cfg.Inbox.PollMinSeconds < 1 || cfg.Inbox.PollMaxSeconds < cfg.Inbox.PollMinSeconds {
		errs = append(errs, "inbox.pollMinSeconds/pollMaxSeconds must form a valid range")
	}
	if cfg.Inbox.RefreshMinSeconds < 1 || cfg.Inbox.RefreshMaxSeconds < cfg.Inbox.RefreshMinSeconds {
		errs = append(errs, "inbox.refreshMinSeconds/refreshMaxSeconds must form a valid range")
	}
	if cfg.Inbox.IdleCyclesBeforeRefresh < 1 {
		errs = append(errs, "inbox.idleCyclesBeforeRefresh must be >= 1")
	}
	if cfg.Inbox.StaleLabelSeconds < 1 {
		errs = append(errs, "inbox.staleLabelSeconds must be >= 1")
	}

	if cfg.Session.HealthCheckMinutes < 1 {
		errs = append(errs, "session.healthCheckMinutes must be >= 1")
	}
	if cfg.Session.MaxRecoveryAttempts < 1 || cfg.Session.MaxRecoveryAttempts > 10 {
		errs = append(errs, "session.maxRecoveryAttempts must be between 1 and 10")
	}
	if cfg.Session.MaxConsecutiveErrors < 1 {
		errs = append(errs, "session.maxConsecutiveErrors must be >= 1")
	}

	if cfg.Browser.LaunchRetries < 1 {
		errs = append(errs, "browser.launchRetries must be >= 1")
	}
	if cfg.Browser.LoginRetries < 1 {
		errs = append(errs, "browser.loginRetries must be >= 1")
	}
	if cfg.Reply.TimeoutSeconds < 1 {
		errs = append(errs, "reply.timeoutSeconds must be >= 1")
	}
	if cfg.Capture.Enabled && cfg.Capture.WebhookURL == "" {
		errs = append(errs, "capture.webhookUrl is required when capture is enabled")
	}
	if cfg.Capture.FollowUpDays < 0 {
		errs = append(errs, "capture.followUpDays must be >= 0")
	}
	if cfg.Notify.Enabled && cfg.Notify.Token == "" {
		errs = append(errs, "notify.token is required when notify is enabled")
	}
	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, "metrics.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
