package bot

import (
	"context"
	"fmt"
	"testing"

	"sheetpilot-backend/lib/browser"
	"sheetpilot-backend/lib/telemetry"
)

func newTestTelemetry(t *testing.T) func() {
	t.Helper()
	return telemetry.SetupForTesting("test:bot")
}

type fakeElement struct {
	page     *fakePage
	selector string
	text     string
	clickErr error
	typeErr  error
}

func (e *fakeElement) Click(ctx context.Context) error {
	if e.clickErr != nil {
		return e.clickErr
	}
	e.page.record("click " + e.selector)
	return nil
}

func (e *fakeElement) Type(ctx context.Context, text string) error {
	if e.typeErr != nil {
		return e.typeErr
	}
	e.page.record("type " + e.selector + " " + text)
	return nil
}

func (e *fakeElement) PressKey(ctx context.Context, key string) error {
	e.page.record("key " + e.selector + " " + key)
	return nil
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	return e.text, nil
}

type fakePage struct {
	elements    map[string]*fakeElement
	actions     []string
	navigations []string
	navFails    int
	url         string
	source      string
	closed      bool
}

func newFakePage(selectors ...string) *fakePage {
	p := &fakePage{elements: map[string]*fakeElement{}}
	for _, sel := range selectors {
		p.addElement(sel)
	}
	return p
}

func (p *fakePage) addElement(selector string) *fakeElement {
	el := &fakeElement{page: p, selector: selector}
	p.elements[selector] = el
	return el
}

func (p *fakePage) removeElement(selector string) {
	delete(p.elements, selector)
}

func (p *fakePage) record(action string) {
	p.actions = append(p.actions, action)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.navFails > 0 {
		p.navFails--
		return fmt.Errorf("net::ERR_CONNECTION_RESET")
	}
	p.navigations = append(p.navigations, url)
	return nil
}

func (p *fakePage) Find(ctx context.Context, selector string) (browser.Element, error) {
	el, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return el, nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) {
	return p.url, nil
}

func (p *fakePage) Source(ctx context.Context) (string, error) {
	return p.source, nil
}

func (p *fakePage) Close(ctx context.Context) error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page       *fakePage
	newPageErr error
	closes     int
}

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close(ctx context.Context) error {
	b.closes++
	return nil
}

// loginSelectors covers every element the default step table touches,
// so a page built from it completes the whole login sequence.
func loginSelectors() []string {
	return []string{
		"#loginEmail",
		"#formControl",
		"a.clsJspButtonWide",
		"#i0116",
		"#idSIButton9",
		"#passwordInput",
		"#submitButton",
		"#idBtn_Back",
		"input[aria-label='Project']",
	}
}

// formSelectors covers every field the filler targets plus a submit
// button.
func formSelectors() []string {
	return []string{
		"input[aria-label='Project']",
		"input[placeholder='mm/dd/yyyy']",
		"input[aria-label='Hours']",
		"input[aria-label*='Tool']",
		"textarea[aria-label='Task Description']",
		"input[aria-label='Detail Charge Code']",
		"button[type='submit']",
	}
}

// instantDelays removes every settle and backoff so tests run fast.
func instantDelays() Delays {
	return Delays{NavRetries: 3}
}
