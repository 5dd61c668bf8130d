package session

import (
	"context"
	"errors"
	"sync"

	"tradebot/internal/domain"
)

// PageProxy is a stable domain.Page whose backing page is swapped on
// recovery. Components hold the proxy for the process lifetime and never see
// a stale browser handle.
type PageProxy struct {
	mu     sync.RWMutex
	target domain.Page
}

func NewPageProxy(target domain.Page) *PageProxy {
	return &PageProxy{target: target}
}

// Swap points the proxy at the page of a freshly recovered browser.
func (p *PageProxy) Swap(target domain.Page) {
	p.mu.Lock()
	p.target = target
	p.mu.Unlock()
}

func (p *PageProxy) current() (domain.Page, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.target == nil {
		return nil, &domain.SessionError{Op: "page access", Err: errors.New("no live browser")}
	}
	return p.target, nil
}

func (p *PageProxy) Navigate(ctx context.Context, url string) error {
	pg, err := p.current()
	if err != nil {
		return err
	}
	return pg.Navigate(ctx, url)
}

func (p *PageProxy) Reload(ctx context.Context) error {
	pg, err := p.current()
	if err != nil {
		return err
	}
	return pg.Reload(ctx)
}

func (p *PageProxy) Location(ctx context.Context) (string, error) {
	pg, err := p.current()
	if err != nil {
		return "", err
	}
	return pg.Location(ctx)
}

func (p *PageProxy) Title(ctx context.Context) (string, error) {
	pg, err := p.current()
	if err != nil {
		return "", err
	}
	return pg.Title(ctx)
}

func (p *PageProxy) Find(ctx context.Context, selector string) (domain.Element, error) {
	pg, err := p.current()
	if err != nil {
		return nil, err
	}
	return pg.Find(ctx, selector)
}

func (p *PageProxy) FindAll(ctx context.Context, selector string) ([]domain.Element, error) {
	pg, err := p.current()
	if err != nil {
		return nil, err
	}
	return pg.FindAll(ctx, selector)
}

func (p *PageProxy) FindWithin(ctx context.Context, root domain.Element, selector string) (domain.Element, error) {
	pg, err := p.current()
	if err != nil {
		return nil, err
	}
	return pg.FindWithin(ctx, root, selector)
}

func (p *PageProxy) Ancestor(ctx context.Context, el domain.Element, levels int) (domain.Element, error) {
	pg, err := p.current()
	if err != nil {
		return nil, err
	}
	return pg.Ancestor(ctx, el, levels)
}

func (p *PageProxy) Text(ctx context.Context, el domain.Element) (string, error) {
	pg, err := p.current()
	if err != nil {
		return "", err
	}
	return pg.Text(ctx, el)
}

func (p *PageProxy) Attribute(ctx context.Context, el domain.Element, name string) (string, error) {
	pg, err := p.current()
	if err != nil {
		return "", err
	}
	return pg.Attribute(ctx, el, name)
}

func (p *PageProxy) Click(ctx context.Context, el domain.Element) error {
	pg, err := p.current()
	if err != nil {
		return err
	}
	return pg.Click(ctx, el)
}

func (p *PageProxy) Clear(ctx context.Context, el domain.Element) error {
	pg, err := p.current()
	if err != nil {
		return err
	}
	return pg.Clear(ctx, el)
}

func (p *PageProxy) Type(ctx context.Context, el domain.Element, text string) error {
	pg, err := p.current()
	if err != nil {
		return err
	}
	return pg.Type(ctx, el, text)
}
