package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
)

const (
	pathShutdown     = "/shutdown"
	pathMessages     = "/messages"
	pathMessagesSend = "/messages/send"

	// DefaultTimeout bounds every control request.
	DefaultTimeout = 5 * time.Second
)

// ClientConfig is the configuration of the bot control endpoint client.
type ClientConfig struct {
	// BaseURL is the bot control endpoint (e.g. http://localhost:3000). Required.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "control.Client"})
	return nil
}

// Client talks to the local HTTP control endpoint of the bot. Calls are synchronous, callers
// must not invoke them from a rendering loop.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     log.Logger
}

// NewClient returns a new control client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}, nil
}

type messageJSON struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

type sendMessageJSON struct {
	Text string `json:"text"`
}

// RequestShutdown asks the bot to shut down gracefully.
func (c *Client) RequestShutdown(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, pathShutdown, nil)
	if err != nil {
		return err
	}

	c.logger.Debugf("Shutdown requested")
	return nil
}

// FetchMessages returns the chat messages relayed by the bot, an empty body means no messages.
func (c *Client) FetchMessages(ctx context.Context) ([]model.ChatMessage, error) {
	body, err := c.do(ctx, http.MethodGet, pathMessages, nil)
	if err != nil {
		return nil, err
	}

	msgs := []model.ChatMessage{}
	if len(bytes.TrimSpace(body)) == 0 {
		return msgs, nil
	}

	var mjs []messageJSON
	if err := json.Unmarshal(body, &mjs); err != nil {
		return nil, fmt.Errorf("decoding messages: %w: %w", model.ErrNet, err)
	}

	for _, m := range mjs {
		msgs = append(msgs, model.ChatMessage{Author: m.Author, Content: m.Content})
	}

	return msgs, nil
}

// SendMessage sends a chat message through the bot. Blank text is rejected without any request.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("message text is empty: %w", model.ErrNotValid)
	}

	payload, err := json.Marshal(sendMessageJSON{Text: text})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPost, pathMessagesSend, payload); err != nil {
		return err
	}

	c.logger.Debugf("Message sent")
	return nil
}

// Healthy returns nil when the control endpoint answers.
func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, pathMessages, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, model.ErrNet, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w: %w", method, path, model.ErrNet, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: HTTP %d: %w", method, path, resp.StatusCode, model.ErrNet)
	}

	return data, nil
}
