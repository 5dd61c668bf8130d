package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"tradebot/internal/domain"
)

// ChromeConfig holds launch options for the owned Chrome instance.
type ChromeConfig struct {
	ProfileDir string // user data directory (persists cookies/sessions)
	Headless   bool
	Logger     *slog.Logger
}

// Chrome owns one Chrome process and exposes it as a domain.Page. The
// process id is tracked so cleanup never touches a browser we did not start.
type Chrome struct {
	cfg    ChromeConfig
	logger *slog.Logger

	taskCtx     context.Context
	taskCancel  context.CancelFunc
	allocCancel context.CancelFunc
	pid         int
	page        *page
}

// Launch starts a fresh Chrome with anti-detection flags and waits for the
// CDP connection to come up.
func Launch(ctx context.Context, cfg ChromeConfig) (*Chrome, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProfileDir != "" {
		if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
			cfg.Logger.Error("failed to create profile dir", "dir", cfg.ProfileDir, "err", err)
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
	)
	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start so launch failures surface here.
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	c := &Chrome{
		cfg:         cfg,
		logger:      cfg.Logger,
		taskCtx:     taskCtx,
		taskCancel:  taskCancel,
		allocCancel: allocCancel,
	}
	if cc := chromedp.FromContext(taskCtx); cc != nil && cc.Browser != nil {
		if proc := cc.Browser.Process(); proc != nil {
			c.pid = proc.Pid
		}
	}
	c.page = &page{chrome: c, logger: cfg.Logger}

	cfg.Logger.Info("chrome started", "pid", c.pid, "headless", cfg.Headless)
	return c, nil
}

// LaunchWithRetry launches Chrome with bounded backoff retries. Exhausting
// the budget is a fatal condition for the caller to act on.
func LaunchWithRetry(ctx context.Context, cfg ChromeConfig, retries int) (*Chrome, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt)*time.Second + time.Duration(rand.Int63n(int64(time.Second)))
			cfg.Logger.Warn("retrying chrome launch", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		c, err := Launch(ctx, cfg)
		if err == nil {
			return c, nil
		}
		lastErr = err
		cfg.Logger.Error("chrome launch failed", "attempt", attempt+1, "err", err)
	}
	return nil, domain.Fatal(domain.ExitLaunchFailed,
		fmt.Sprintf("browser launch failed after %d attempts", retries), lastErr)
}

// Page returns the automation port backed by this Chrome instance.
func (c *Chrome) Page() domain.Page { return c.page }

// PID returns the OS process id of the owned Chrome, or 0 when unknown.
func (c *Chrome) PID() int { return c.pid }

// Context returns the live chromedp task context for cookie plumbing.
func (c *Chrome) Context() context.Context { return c.taskCtx }

// Terminate shuts the browser down gracefully, waiting briefly for the
// process to exit.
func (c *Chrome) Terminate(ctx context.Context) error {
	cancelCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := chromedp.Cancel(c.taskCtx)
	c.taskCancel()
	c.allocCancel()

	select {
	case <-cancelCtx.Done():
	default:
	}
	return err
}

// Kill force-terminates the Chrome process this instance launched. It never
// targets a process we do not own.
func (c *Chrome) Kill() error {
	if c.pid == 0 {
		return nil
	}
	proc, err := os.FindProcess(c.pid)
	if err != nil {
		return fmt.Errorf("find chrome process %d: %w", c.pid, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("kill chrome process %d: %w", c.pid, err)
	}
	c.logger.Info("killed chrome process", "pid", c.pid)
	return nil
}
