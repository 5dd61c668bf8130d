package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// Cookie is one opaque credential record persisted between runs.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expiry,omitempty"` // unix seconds, 0 = session cookie
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
}

// CookieStore reads and writes the cookie file.
type CookieStore struct {
	Path string
}

// Exists reports whether a saved cookie file is present.
func (s CookieStore) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

func (s CookieStore) Load() ([]Cookie, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read cookies %s: %w", s.Path, err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookies %s: %w", s.Path, err)
	}
	return cookies, nil
}

func (s CookieStore) Save(cookies []Cookie) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create cookie directory: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o600)
}

// SetCookies injects saved cookies into the live browser session.
func (c *Chrome) SetCookies(ctx context.Context, cookies []Cookie) error {
	action := chromedp.ActionFunc(func(cctx context.Context) error {
		for _, ck := range cookies {
			params := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(ck.Path).
				WithSecure(ck.Secure).
				WithHTTPOnly(ck.HTTPOnly)
			if ck.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
				params = params.WithExpires(&exp)
			}
			if err := params.Do(cctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", ck.Name, err)
			}
		}
		return nil
	})
	return c.page.run(ctx, "set cookies", action)
}

// DumpCookies reads all cookies from the live browser session.
func (c *Chrome) DumpCookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	action := chromedp.ActionFunc(func(cctx context.Context) error {
		cookies, err := storage.GetCookies().Do(cctx)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			out = append(out, Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				Expires:  ck.Expires,
				Secure:   ck.Secure,
				HTTPOnly: ck.HTTPOnly,
			})
		}
		return nil
	})
	if err := c.page.run(ctx, "dump cookies", action); err != nil {
		return nil, err
	}
	return out, nil
}
