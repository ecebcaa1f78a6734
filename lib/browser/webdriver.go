package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sheetpilot-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

// W3C WebDriver element identifier key.
const webElementID = "element-6066-11e4-a52e-4f735466cecf"

// webdriver key codepoints for the keys the form bot needs
var keyCodes = map[string]string{
	"ArrowDown": "",
	"Enter":     "",
	"Tab":       "",
	"Escape":    "",
}

type Options struct {
	// Endpoint is the address of a running chromedriver,
	// e.g. http://localhost:9515
	Endpoint string
	Headless bool
}

// Client speaks the W3C WebDriver wire protocol to a chromedriver
// instance. It implements Browser.
type Client struct {
	http *resty.Client
	opts Options

	mu       sync.Mutex
	sessions map[string]struct{}
	closed   bool
}

func NewClient(opts Options) *Client {
	client := resty.New()
	client.SetBaseURL(opts.Endpoint)
	client.SetHeader("content-type", "application/json")
	client.SetTimeout(time.Second * 60)

	telemetry.InstrumentResty(client, "sheetpilot.lib.browser")

	return &Client{
		http:     client,
		opts:     opts,
		sessions: map[string]struct{}{},
	}
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeValue(body []byte, out any) error {
	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Value, out)
}

func wireErrorOf(res *resty.Response) error {
	var e wireError
	if err := decodeValue(res.Body(), &e); err != nil || e.Error == "" {
		return fmt.Errorf("webdriver: unexpected status %d", res.StatusCode())
	}
	if e.Error == "no such element" {
		return fmt.Errorf("%w: %s", ErrElementNotFound, e.Message)
	}
	return fmt.Errorf("webdriver: %s: %s", e.Error, e.Message)
}

func (c *Client) NewPage(ctx context.Context) (Page, error) {
	args := []string{"--disable-gpu", "--window-size=1440,900"}
	if c.opts.Headless {
		args = append(args, "--headless=new")
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"capabilities": map[string]any{
				"alwaysMatch": map[string]any{
					"browserName": "chrome",
					"goog:chromeOptions": map[string]any{
						"args": args,
					},
				},
			},
		}).
		Post("/session")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, wireErrorOf(res)
	}

	var created struct {
		SessionId string `json:"sessionId"`
	}
	if err := decodeValue(res.Body(), &created); err != nil {
		return nil, err
	}
	if created.SessionId == "" {
		return nil, fmt.Errorf("webdriver: session response carried no session id")
	}

	c.mu.Lock()
	c.sessions[created.SessionId] = struct{}{}
	c.mu.Unlock()

	return &session{client: c, id: created.SessionId}, nil
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	open := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		open = append(open, id)
	}
	c.sessions = map[string]struct{}{}
	c.mu.Unlock()

	var lastErr error
	for _, id := range open {
		_, err := c.http.R().
			SetContext(ctx).
			Delete("/session/" + id)
		if err != nil {
			lastErr = err
		}
	}
	return lastErr
}

type session struct {
	client *Client
	id     string
}

func (s *session) do(ctx context.Context, method, path string, body, out any) error {
	req := s.client.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	res, err := req.Execute(method, "/session/"+s.id+path)
	if err != nil {
		return err
	}
	if res.IsError() {
		return wireErrorOf(res)
	}
	if out != nil {
		return decodeValue(res.Body(), out)
	}
	return nil
}

func (s *session) Navigate(ctx context.Context, url string) error {
	return s.do(ctx, "POST", "/url", map[string]string{"url": url}, nil)
}

func (s *session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.do(ctx, "GET", "/url", nil, &url)
	return url, err
}

func (s *session) Source(ctx context.Context) (string, error) {
	var src string
	err := s.do(ctx, "GET", "/source", nil, &src)
	return src, err
}

func (s *session) Find(ctx context.Context, selector string) (Element, error) {
	var found map[string]string
	err := s.do(ctx, "POST", "/element", map[string]string{
		"using": "css selector",
		"value": selector,
	}, &found)
	if err != nil {
		return nil, err
	}
	id := found[webElementID]
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return &element{session: s, id: id}, nil
}

func (s *session) Close(ctx context.Context) error {
	s.client.mu.Lock()
	_, open := s.client.sessions[s.id]
	delete(s.client.sessions, s.id)
	s.client.mu.Unlock()
	if !open {
		return nil
	}

	_, err := s.client.http.R().
		SetContext(ctx).
		Delete("/session/" + s.id)
	return err
}

type element struct {
	session *session
	id      string
}

func (e *element) Click(ctx context.Context) error {
	return e.session.do(ctx, "POST", "/element/"+e.id+"/click", map[string]string{}, nil)
}

func (e *element) Type(ctx context.Context, text string) error {
	return e.session.do(ctx, "POST", "/element/"+e.id+"/value", map[string]string{"text": text}, nil)
}

func (e *element) PressKey(ctx context.Context, key string) error {
	code, ok := keyCodes[key]
	if !ok {
		return fmt.Errorf("webdriver: unknown key %q", key)
	}
	return e.session.do(ctx, "POST", "/element/"+e.id+"/value", map[string]string{"text": code}, nil)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.do(ctx, "GET", "/element/"+e.id+"/text", nil, &text)
	return text, err
}
