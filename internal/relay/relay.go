package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
)

// MessagesErrorText is what front ends show when messages could not be fetched.
const MessagesErrorText = "Failed to load messages."

// DefaultInterval is the default polling interval.
const DefaultInterval = 2 * time.Second

// Fetcher fetches the chat messages relayed by the bot.
type Fetcher interface {
	FetchMessages(ctx context.Context) ([]model.ChatMessage, error)
}

//go:generate mockery --case underscore --output relaymock --outpkg relaymock --name Fetcher

// PollerConfig is the configuration of the message poller.
type PollerConfig struct {
	Fetcher    Fetcher
	Interval   time.Duration
	OnMessages func([]model.ChatMessage)
	OnError    func(error)
	Logger     log.Logger
}

func (c *PollerConfig) defaults() error {
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.OnMessages == nil {
		c.OnMessages = func([]model.ChatMessage) {}
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "relay.Poller"})
	return nil
}

// Poller fetches the bot messages periodically.
type Poller struct {
	fetcher    Fetcher
	interval   time.Duration
	onMessages func([]model.ChatMessage)
	onError    func(error)
	logger     log.Logger
}

// NewPoller returns a new message poller.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Poller{
		fetcher:    cfg.Fetcher,
		interval:   cfg.Interval,
		onMessages: cfg.OnMessages,
		onError:    cfg.OnError,
		logger:     cfg.Logger,
	}, nil
}

// Run polls right away and then on every interval until the context is done. Fetch errors
// never stop the polling.
func (p *Poller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	msgs, err := p.fetcher.FetchMessages(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Debugf("Could not fetch messages: %v", err)
		p.onError(err)
		return
	}

	p.onMessages(msgs)
}

// Format renders a message as shown to users.
func Format(m model.ChatMessage) string {
	return fmt.Sprintf("[%s] %s", m.Author, m.Content)
}
