package domain

import "context"

// Element is an opaque handle to a node on the current page render.
// Handles are invalidated by any navigation or refresh and must never be
// cached across loop iterations.
type Element interface {
	// ID returns a debug identifier for log lines. It carries no meaning
	// beyond the current render.
	ID() string
}

// Page is the automation port the core drives the inbox through. Selectors
// are opaque lookup keys supplied by the presentation layer; the core never
// assumes a selector dialect.
//
// Lookup misses return ErrElementNotFound. A dead driver surfaces as a
// SessionError from any method.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error

	// Location and Title double as cheap liveness probes.
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	FindWithin(ctx context.Context, root Element, selector string) (Element, error)
	// Ancestor walks up the DOM a fixed number of element levels.
	Ancestor(ctx context.Context, el Element, levels int) (Element, error)

	Text(ctx context.Context, el Element) (string, error)
	// Attribute returns "" with no error when the attribute is absent.
	Attribute(ctx context.Context, el Element, name string) (string, error)
	Click(ctx context.Context, el Element) error
	Clear(ctx context.Context, el Element) error
	Type(ctx context.Context, el Element, text string) error
}
