package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"tradebot/internal/domain"
)

// opTimeout bounds every single page operation so a wedged renderer cannot
// stall the control loop.
const opTimeout = 15 * time.Second

// page implements domain.Page on top of a Chrome instance.
type page struct {
	chrome *Chrome
	logger *slog.Logger
}

// node wraps a CDP node id as an opaque domain.Element.
type node struct {
	id cdp.NodeID
}

func (n *node) ID() string { return fmt.Sprintf("node-%d", n.id) }

// run executes actions on the browser's task context with a bounded timeout
// and classifies driver-unusable failures as session errors.
func (p *page) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	runCtx, cancel := mergeDeadline(p.chrome.taskCtx, ctx, opTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return domain.ClassifySessionError(op, err)
	}
	return nil
}

// mergeDeadline derives a bounded context from the browser task context,
// honoring cancellation of the caller's context.
func mergeDeadline(taskCtx, callerCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(taskCtx, timeout)
	stop := context.AfterFunc(callerCtx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, "navigate", chromedp.Navigate(url), chromedp.WaitReady("body"))
}

func (p *page) Reload(ctx context.Context) error {
	return p.run(ctx, "reload", chromedp.Reload(), chromedp.WaitReady("body"))
}

func (p *page) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, "location", chromedp.Location(&loc))
	return loc, err
}

func (p *page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, "title", chromedp.Title(&title))
	return title, err
}

func (p *page) Find(ctx context.Context, selector string) (domain.Element, error) {
	els, err := p.findAll(ctx, selector, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("find %q: %w", selector, domain.ErrElementNotFound)
	}
	return els[0], nil
}

func (p *page) FindAll(ctx context.Context, selector string) ([]domain.Element, error) {
	return p.findAll(ctx, selector, nil, 0)
}

func (p *page) FindWithin(ctx context.Context, root domain.Element, selector string) (domain.Element, error) {
	rn, err := asNode(root)
	if err != nil {
		return nil, err
	}
	els, err := p.findAll(ctx, selector, rn, 1)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("find %q within %s: %w", selector, rn.ID(), domain.ErrElementNotFound)
	}
	return els[0], nil
}

func (p *page) findAll(ctx context.Context, selector string, root *node, limit int) ([]domain.Element, error) {
	var ids []cdp.NodeID
	action := chromedp.ActionFunc(func(cctx context.Context) error {
		rootID, err := p.rootNodeID(cctx, root)
		if err != nil {
			return err
		}
		found, err := dom.QuerySelectorAll(rootID, selector).Do(cctx)
		if err != nil {
			return err
		}
		ids = found
		return nil
	})
	if err := p.run(ctx, "find "+selector, action); err != nil {
		return nil, err
	}

	els := make([]domain.Element, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		els = append(els, &node{id: id})
		if limit > 0 && len(els) >= limit {
			break
		}
	}
	return els, nil
}

// rootNodeID resolves the query root: the document when root is nil.
func (p *page) rootNodeID(ctx context.Context, root *node) (cdp.NodeID, error) {
	if root != nil {
		return root.id, nil
	}
	doc, err := dom.GetDocument().Do(ctx)
	if err != nil {
		return 0, err
	}
	return doc.NodeID, nil
}

func (p *page) Ancestor(ctx context.Context, el domain.Element, levels int) (domain.Element, error) {
	n, err := asNode(el)
	if err != nil {
		return nil, err
	}

	var out *node
	action := chromedp.ActionFunc(func(cctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(n.id).Do(cctx)
		if err != nil {
			return err
		}
		decl := fmt.Sprintf(
			`function() { let e = this; for (let i = 0; i < %d; i++) { if (e.parentElement) { e = e.parentElement; } } return e; }`,
			levels,
		)
		res, exc, err := runtime.CallFunctionOn(decl).WithObjectID(obj.ObjectID).Do(cctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("ancestor walk: %s", exc.Text)
		}
		id, err := dom.RequestNode(res.ObjectID).Do(cctx)
		if err != nil {
			return err
		}
		out = &node{id: id}
		return nil
	})
	if err := p.run(ctx, "ancestor", action); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *page) Text(ctx context.Context, el domain.Element) (string, error) {
	n, err := asNode(el)
	if err != nil {
		return "", err
	}
	var text string
	action := p.callOnNode(n, `function() { return this.innerText || this.textContent || ''; }`, &text)
	if err := p.run(ctx, "text", action); err != nil {
		return "", err
	}
	return text, nil
}

func (p *page) Attribute(ctx context.Context, el domain.Element, name string) (string, error) {
	n, err := asNode(el)
	if err != nil {
		return "", err
	}
	var value string
	action := chromedp.ActionFunc(func(cctx context.Context) error {
		attrs, err := dom.GetAttributes(n.id).Do(cctx)
		if err != nil {
			return err
		}
		// Attributes come back as a flat name/value list.
		for i := 0; i+1 < len(attrs); i += 2 {
			if attrs[i] == name {
				value = attrs[i+1]
				return nil
			}
		}
		return nil
	})
	if err := p.run(ctx, "attribute "+name, action); err != nil {
		return "", err
	}
	return value, nil
}

func (p *page) Click(ctx context.Context, el domain.Element) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	return p.run(ctx, "click",
		chromedp.MouseClickNode(&cdp.Node{NodeID: n.id}),
	)
}

func (p *page) Clear(ctx context.Context, el domain.Element) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	var ignored string
	action := p.callOnNode(n,
		`function() {
			if ('value' in this) { this.value = ''; } else { this.innerText = ''; }
			this.dispatchEvent(new Event('input', { bubbles: true }));
			return '';
		}`, &ignored)
	return p.run(ctx, "clear", action)
}

func (p *page) Type(ctx context.Context, el domain.Element, text string) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	focus := chromedp.ActionFunc(func(cctx context.Context) error {
		return dom.Focus().WithNodeID(n.id).Do(cctx)
	})
	return p.run(ctx, "type", focus, chromedp.KeyEvent(text))
}

// callOnNode builds an action that runs a JS function with the node as
// `this` and decodes a string result into out.
func (p *page) callOnNode(n *node, decl string, out *string) chromedp.Action {
	return chromedp.ActionFunc(func(cctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(n.id).Do(cctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(cctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("page script: %s", exc.Text)
		}
		if res != nil && res.Value != nil {
			return json.Unmarshal(res.Value, out)
		}
		return nil
	})
}

func asNode(el domain.Element) (*node, error) {
	n, ok := el.(*node)
	if !ok || n == nil {
		return nil, fmt.Errorf("stale or foreign element handle: %w", domain.ErrElementNotFound)
	}
	return n, nil
}
