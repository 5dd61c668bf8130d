package browser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tradebot/internal/domain"
)

// AuthConfig configures the login flow against the marketplace.
type AuthConfig struct {
	BaseURL string // site root where cookies attach
	MainURL string // inbox entry point
	Cookies CookieStore
	Logger  *slog.Logger
}

// Authenticator re-establishes an authenticated session on a fresh browser,
// from saved cookies or through a guided first-login capture.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger

	// WaitForOperator blocks until the operator confirms the manual login.
	// Overridable for tests; the default reads a line from stdin.
	WaitForOperator func(ctx context.Context) error
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Authenticator{
		cfg:             cfg,
		logger:          cfg.Logger,
		WaitForOperator: waitForEnter,
	}
}

// ErrNoCookies means no saved credentials exist and the current mode cannot
// run the interactive capture (e.g. headless daemon).
var ErrNoCookies = errors.New("no saved cookies; run `tradebot login` first")

// Login authenticates the given browser using saved cookies and lands on the
// inbox. It fails with ErrNoCookies when the cookie file is absent.
func (a *Authenticator) Login(ctx context.Context, c *Chrome) error {
	if !a.cfg.Cookies.Exists() {
		return ErrNoCookies
	}

	pg := c.Page()
	if err := pg.Navigate(ctx, a.cfg.BaseURL); err != nil {
		return fmt.Errorf("open site root: %w", err)
	}

	cookies, err := a.cfg.Cookies.Load()
	if err != nil {
		return err
	}
	if err := c.SetCookies(ctx, cookies); err != nil {
		return fmt.Errorf("inject cookies: %w", err)
	}
	a.logger.Info("cookies loaded", "count", len(cookies), "file", a.cfg.Cookies.Path)

	if err := pg.Navigate(ctx, a.cfg.MainURL); err != nil {
		return fmt.Errorf("open inbox: %w", err)
	}
	return nil
}

// CaptureLogin runs the guided first-login flow: the operator signs in by
// hand in a visible browser, then cookies are dumped to the cookie file.
func (a *Authenticator) CaptureLogin(ctx context.Context, c *Chrome) error {
	pg := c.Page()
	if err := pg.Navigate(ctx, a.cfg.BaseURL); err != nil {
		return fmt.Errorf("open site root: %w", err)
	}

	a.logger.Info("no cookies found, waiting for manual login in the browser window")
	if err := a.WaitForOperator(ctx); err != nil {
		return err
	}

	if err := pg.Navigate(ctx, a.cfg.MainURL); err != nil {
		return fmt.Errorf("open inbox after login: %w", err)
	}
	// Let the PWA settle so session cookies are all written.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
	}

	cookies, err := c.DumpCookies(ctx)
	if err != nil {
		return fmt.Errorf("dump cookies: %w", err)
	}
	if err := a.cfg.Cookies.Save(cookies); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	a.logger.Info("cookies saved after manual login", "count", len(cookies), "file", a.cfg.Cookies.Path)
	return nil
}

// DismissPopup closes the blocking dialog the inbox sometimes opens on
// entry. A missing dialog is the normal case.
func DismissPopup(ctx context.Context, pg domain.Page, selector string, logger *slog.Logger) {
	el, err := pg.Find(ctx, selector)
	if err != nil {
		if !errors.Is(err, domain.ErrElementNotFound) {
			logger.Debug("popup probe failed", "err", err)
		}
		return
	}
	if err := pg.Click(ctx, el); err != nil {
		logger.Debug("popup close failed", "err", err)
		return
	}
	logger.Info("closed entry popup")
}

func waitForEnter(ctx context.Context) error {
	fmt.Fprintln(os.Stderr, "Log in manually in the browser window, then press Enter here...")
	done := make(chan struct{})
	go func() {
		reader := bufio.NewReader(os.Stdin)
		_, _ = reader.ReadString('\n')
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
