package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradebot/internal/agent"
	"tradebot/internal/browser"
	"tradebot/internal/capture"
	"tradebot/internal/config"
	"tradebot/internal/domain"
	"tradebot/internal/inbox"
	"tradebot/internal/metrics"
	"tradebot/internal/notify"
	"tradebot/internal/reply"
	"tradebot/internal/session"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.1"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "tradebot",
		Short: "Tradebot: marketplace inbox auto-reply bot",
		Long:  "Tradebot drives a Chrome session against the marketplace messenger, answering unread buyer messages and capturing sales inquiries.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.tradebot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(recordsCmd())

	if err := root.Execute(); err != nil {
		if fe, ok := domain.AsFatal(err); ok {
			os.Exit(fe.Code)
		}
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// setupLogger rebuilds the global logger from config: level, and optionally
// a log file teed with stderr.
func setupLogger(cfg *config.Config) error {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.General.Workspace), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "version", version)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the inbox auto-reply loop",
		Long:  "Launches Chrome, authenticates from saved cookies, and polls the inbox until interrupted. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier, err = notify.New(cfg.Notify.Token, cfg.Notify.ChatID, logger)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
	}

	auth := browser.NewAuthenticator(browser.AuthConfig{
		BaseURL: cfg.Inbox.BaseURL,
		MainURL: cfg.Inbox.MainURL,
		Cookies: browser.CookieStore{Path: cfg.Browser.CookiesFile},
		Logger:  logger,
	})

	// connect launches a fresh browser and brings it to the authenticated
	// inbox. It is used for the initial session and every recovery.
	connect := func(ctx context.Context) (session.Handle, error) {
		c, err := browser.LaunchWithRetry(ctx, browser.ChromeConfig{
			ProfileDir: cfg.Browser.ProfileDir,
			Headless:   cfg.Browser.Headless,
			Logger:     logger,
		}, cfg.Browser.LaunchRetries)
		if err != nil {
			return nil, err
		}
		var loginErr error
		for attempt := 0; attempt < cfg.Browser.LoginRetries; attempt++ {
			loginErr = auth.Login(ctx, c)
			if loginErr == nil || errors.Is(loginErr, browser.ErrNoCookies) {
				break
			}
			logger.Warn("login failed, retrying", "attempt", attempt+1, "err", loginErr)
		}
		if loginErr != nil {
			_ = c.Terminate(ctx)
			if errors.Is(loginErr, browser.ErrNoCookies) {
				return nil, domain.Fatal(domain.ExitLoginFailed, "not logged in", loginErr)
			}
			return nil, fmt.Errorf("login: %w", loginErr)
		}
		browser.DismissPopup(ctx, c.Page(), cfg.Selectors.DialogClose, logger)
		return c, nil
	}

	handle, err := connect(ctx)
	if err != nil {
		if fe, ok := domain.AsFatal(err); ok {
			logger.Error("startup failed", "reason", fe.Reason, "err", fe.Err)
			notifier.Alert("tradebot startup failed: %s", fe.Reason)
			return fe
		}
		return err
	}

	proxy := session.NewPageProxy(handle.Page())
	detector := inbox.NewDetector(proxy, cfg.Selectors, logger)
	triage := inbox.NewTriage(inbox.TriageConfig{
		Page:       proxy,
		Selectors:  cfg.Selectors,
		StaleAfter: time.Duration(cfg.Inbox.StaleLabelSeconds) * time.Second,
		Inquiry:    detector,
		Logger:     logger,
	})
	classifier := inbox.NewClassifier(proxy, cfg.Selectors, logger)
	composer := inbox.NewComposer(proxy, cfg.Selectors, nil, logger)

	canned := reply.NewCanned(cfg.Reply.TemplatesFile, logger)
	answerAPI := reply.NewAnswerAPI(cfg.Reply.AnswerServiceURL,
		time.Duration(cfg.Reply.TimeoutSeconds)*time.Second, logger)
	var assistant reply.Source
	if cfg.Reply.UseAssistantUI {
		assistant = reply.NewAssistant(proxy, cfg.Selectors, logger)
	}
	chain := reply.NewChain(canned, logger, answerAPI, assistant)

	var sink agent.InquirySink
	if cfg.Capture.Enabled {
		var ledger *capture.Ledger
		if cfg.Capture.LedgerPath != "" {
			ledger, err = capture.NewLedger(cfg.Capture.LedgerPath, logger)
			if err != nil {
				return fmt.Errorf("inquiry ledger: %w", err)
			}
			defer ledger.Close()
		}
		sink = capture.NewService(capture.ServiceConfig{
			Webhook:      capture.NewWebhook(cfg.Capture.WebhookURL, time.Duration(cfg.Capture.TimeoutSeconds)*time.Second),
			Ledger:       ledger,
			FollowUpDays: cfg.Capture.FollowUpDays,
			Logger:       logger,
		})
	}

	monitor := session.NewMonitor(proxy, logger)
	controller := session.NewController(session.ControllerConfig{
		Connect:     connect,
		Handle:      handle,
		Proxy:       proxy,
		MaxAttempts: cfg.Session.MaxRecoveryAttempts,
		Logger:      logger,
	})

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics)
	}

	loop := agent.NewLoop(agent.LoopConfig{
		Page:       proxy,
		Scanner:    triage,
		Classifier: classifier,
		Replier:    chain,
		Sender:     composer,
		Monitor:    monitor,
		Recoverer:  alertingRecoverer{inner: controller, notifier: notifier},
		Sink:       sink,
		Stats:      detector.Stats,
		MainURL:    cfg.Inbox.MainURL,
		Poll:       agent.Seconds(cfg.Inbox.PollMinSeconds, cfg.Inbox.PollMaxSeconds),
		Refresh:    agent.Seconds(cfg.Inbox.RefreshMinSeconds, cfg.Inbox.RefreshMaxSeconds),
		OpenPause:  agent.Seconds(2, 5),

		IdleCyclesBeforeRefresh: cfg.Inbox.IdleCyclesBeforeRefresh,
		MaxConsecutiveErrors:    cfg.Session.MaxConsecutiveErrors,
		HealthInterval:          time.Duration(cfg.Session.HealthCheckMinutes) * time.Minute,
		Logger:                  logger,
	})

	runErr := loop.Run(ctx, domain.NewSessionState(handle.PID(), time.Now()))

	// Tear down whatever browser the controller currently owns.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if h := controller.Handle(); h != nil {
		if err := h.Terminate(shutdownCtx); err != nil {
			logger.Warn("browser shutdown failed", "err", err)
			_ = h.Kill()
		}
	}

	if runErr != nil {
		if fe, ok := domain.AsFatal(runErr); ok {
			logger.Error("bot stopped", "reason", fe.Reason, "err", fe.Err)
			notifier.Alert("tradebot stopped: %s", fe.Reason)
			return fe
		}
		return runErr
	}
	logger.Info("bot stopped")
	return nil
}

// alertingRecoverer notifies the operator around each recovery run.
type alertingRecoverer struct {
	inner    *session.Controller
	notifier *notify.Notifier
}

func (r alertingRecoverer) Recover(ctx context.Context, state domain.SessionState) (domain.SessionState, error) {
	r.notifier.Alert("tradebot session lost, recovering")
	next, err := r.inner.Recover(ctx, state)
	if err != nil {
		r.notifier.Alert("tradebot session recovery failed: %v", err)
		return next, err
	}
	r.notifier.Alert("tradebot session recovered (pid %d)", next.PID)
	return next, nil
}

func startMetricsServer(ctx context.Context, cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "/metrics"
	}
	mux.Handle(endpoint, metrics.Collector.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("metrics server listening", "addr", srv.Addr, "endpoint", endpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to the marketplace in a visible browser",
		Long:  "Opens a visible Chrome window for a manual login. Cookies are saved for later headless runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := setupLogger(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := browser.LaunchWithRetry(ctx, browser.ChromeConfig{
				ProfileDir: cfg.Browser.ProfileDir,
				Headless:   false,
				Logger:     logger,
			}, cfg.Browser.LaunchRetries)
			if err != nil {
				return err
			}
			defer func() { _ = c.Terminate(context.Background()) }()

			auth := browser.NewAuthenticator(browser.AuthConfig{
				BaseURL: cfg.Inbox.BaseURL,
				MainURL: cfg.Inbox.MainURL,
				Cookies: browser.CookieStore{Path: cfg.Browser.CookiesFile},
				Logger:  logger,
			})
			return auth.CaptureLogin(ctx, c)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			cookies := browser.CookieStore{Path: cfg.Browser.CookiesFile}
			logger.Info("credentials", "cookies", cfg.Browser.CookiesFile, "present", cookies.Exists())

			canned := reply.NewCanned(cfg.Reply.TemplatesFile, logger)
			logger.Info("reply chain",
				"answerService", cfg.Reply.AnswerServiceURL,
				"assistantUi", cfg.Reply.UseAssistantUI,
				"templates", len(canned.Templates()))

			if cfg.Capture.Enabled && cfg.Capture.LedgerPath != "" {
				ledger, err := capture.NewLedger(cfg.Capture.LedgerPath, logger)
				if err != nil {
					logger.Warn("ledger unavailable", "err", err)
					return nil
				}
				defer ledger.Close()
				recs, err := ledger.List(cmd.Context(), 1)
				if err != nil {
					logger.Warn("ledger read failed", "err", err)
					return nil
				}
				logger.Info("inquiry ledger", "path", cfg.Capture.LedgerPath, "reachable", true, "hasRecords", len(recs) > 0)
			}
			return nil
		},
	}
}

func recordsCmd() *cobra.Command {
	var limit int
	var due bool
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List captured inquiry records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Capture.LedgerPath == "" {
				return fmt.Errorf("capture.ledgerPath is not configured")
			}
			ledger, err := capture.NewLedger(cfg.Capture.LedgerPath, logger)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer ledger.Close()

			var recs []domain.InquiryRecord
			if due {
				recs, err = ledger.DueFollowUps(cmd.Context(), limit)
			} else {
				recs, err = ledger.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(recs, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to list")
	cmd.Flags().BoolVar(&due, "due", false, "only records whose follow-up date has passed")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. inbox.pollMinSeconds)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. browser.headless true)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
