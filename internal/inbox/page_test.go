package inbox

import (
	"context"
	"strings"

	"tradebot/internal/domain"
)

// fakeEl is a stub element identified by a string.
type fakeEl string

func (e fakeEl) ID() string { return string(e) }

// fakePage is an in-memory domain.Page for tests. Lookups are keyed by
// selector, scoped lookups by "rootID|selector", attributes by "elID@name".
type fakePage struct {
	elements  map[string][]domain.Element
	within    map[string]domain.Element
	ancestors map[string]domain.Element
	texts     map[string]string
	attrs     map[string]string
	errs      map[string]error // selector or op -> forced error

	clicked   []string
	typed     []string
	cleared   []string
	navigated []string
	reloads   int
}

func newFakePage() *fakePage {
	return &fakePage{
		elements:  map[string][]domain.Element{},
		within:    map[string]domain.Element{},
		ancestors: map[string]domain.Element{},
		texts:     map[string]string{},
		attrs:     map[string]string{},
		errs:      map[string]error{},
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	if err := p.errs["navigate"]; err != nil {
		return err
	}
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) Reload(context.Context) error {
	if err := p.errs["reload"]; err != nil {
		return err
	}
	p.reloads++
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) {
	if err := p.errs["location"]; err != nil {
		return "", err
	}
	return "https://example.test/inbox", nil
}

func (p *fakePage) Title(context.Context) (string, error) {
	if err := p.errs["title"]; err != nil {
		return "", err
	}
	return "Inbox", nil
}

func (p *fakePage) Find(_ context.Context, selector string) (domain.Element, error) {
	if err := p.errs[selector]; err != nil {
		return nil, err
	}
	els := p.elements[selector]
	if len(els) == 0 {
		return nil, domain.ErrElementNotFound
	}
	return els[0], nil
}

func (p *fakePage) FindAll(_ context.Context, selector string) ([]domain.Element, error) {
	if err := p.errs[selector]; err != nil {
		return nil, err
	}
	return p.elements[selector], nil
}

func (p *fakePage) FindWithin(_ context.Context, root domain.Element, selector string) (domain.Element, error) {
	key := root.ID() + "|" + selector
	if err := p.errs[key]; err != nil {
		return nil, err
	}
	el, ok := p.within[key]
	if !ok {
		return nil, domain.ErrElementNotFound
	}
	return el, nil
}

func (p *fakePage) Ancestor(_ context.Context, el domain.Element, _ int) (domain.Element, error) {
	anc, ok := p.ancestors[el.ID()]
	if !ok {
		return nil, domain.ErrElementNotFound
	}
	return anc, nil
}

func (p *fakePage) Text(_ context.Context, el domain.Element) (string, error) {
	if err := p.errs["text:"+el.ID()]; err != nil {
		return "", err
	}
	return p.texts[el.ID()], nil
}

func (p *fakePage) Attribute(_ context.Context, el domain.Element, name string) (string, error) {
	if err := p.errs["attr:"+el.ID()]; err != nil {
		return "", err
	}
	return p.attrs[el.ID()+"@"+name], nil
}

func (p *fakePage) Click(_ context.Context, el domain.Element) error {
	if err := p.errs["click:"+el.ID()]; err != nil {
		return err
	}
	p.clicked = append(p.clicked, el.ID())
	return nil
}

func (p *fakePage) Clear(_ context.Context, el domain.Element) error {
	p.cleared = append(p.cleared, el.ID())
	return nil
}

func (p *fakePage) Type(_ context.Context, el domain.Element, text string) error {
	if err := p.errs["type:"+el.ID()]; err != nil {
		return err
	}
	p.typed = append(p.typed, el.ID()+"="+text)
	return nil
}

// typedText returns the text typed into the given element, if any.
func (p *fakePage) typedText(elID string) string {
	for _, t := range p.typed {
		if strings.HasPrefix(t, elID+"=") {
			return strings.TrimPrefix(t, elID+"=")
		}
	}
	return ""
}
