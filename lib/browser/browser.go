package browser

import (
	"context"
	"fmt"
)

// The page automation capability the bot drives. Every method is a
// suspension point against an external browser process and may time
// out; callers treat timeouts as ordinary failures.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Close releases the underlying browser resources. It is safe to
	// call at any time and more than once.
	Close(ctx context.Context) error
}

type Page interface {
	Navigate(ctx context.Context, url string) error
	// Find resolves a CSS selector to an element handle. A selector
	// that does not resolve returns an error wrapping
	// ErrElementNotFound.
	Find(ctx context.Context, selector string) (Element, error)
	CurrentURL(ctx context.Context) (string, error)
	Source(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

type Element interface {
	Click(ctx context.Context) error
	Type(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Text(ctx context.Context) (string, error)
}

var ErrElementNotFound = fmt.Errorf("element not found")
