package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/relay"
)

// Client is the bot control endpoint client.
type Client interface {
	FetchMessages(ctx context.Context) ([]model.ChatMessage, error)
	SendMessage(ctx context.Context, text string) error
	RequestShutdown(ctx context.Context) error
}

//go:generate mockery --case underscore --output chatmock --outpkg chatmock --name Client

// ServiceConfig is the configuration for the chat service.
type ServiceConfig struct {
	Client Client
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Chat"})
	return nil
}

// Service relays chat messages through the bot and controls it.
type Service struct {
	client Client
	logger log.Logger
}

// NewService creates a new chat service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// Messages returns the messages relayed by the bot.
func (s *Service) Messages(ctx context.Context) ([]model.ChatMessage, error) {
	msgs, err := s.client.FetchMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch messages: %w", err)
	}
	return msgs, nil
}

// Send sends a message through the bot.
func (s *Service) Send(ctx context.Context, text string) error {
	if err := s.client.SendMessage(ctx, text); err != nil {
		return fmt.Errorf("could not send message: %w", err)
	}
	s.logger.Infof("Message sent")
	return nil
}

// Shutdown asks the bot to shut down gracefully.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.client.RequestShutdown(ctx); err != nil {
		return fmt.Errorf("could not request shutdown: %w", err)
	}
	s.logger.Infof("Shutdown requested")
	return nil
}

// FollowRequest represents the follow request parameters.
type FollowRequest struct {
	Interval time.Duration
	// OnNew receives only the messages not seen in previous polls.
	OnNew   func([]model.ChatMessage)
	OnError func(error)
}

// Follow polls the messages until the context is done. When the bot message list shrinks
// (bot restarted) the whole list is considered new.
func (s *Service) Follow(ctx context.Context, req FollowRequest) error {
	if req.OnNew == nil {
		return fmt.Errorf("on new callback is required")
	}

	seen := 0
	p, err := relay.NewPoller(relay.PollerConfig{
		Fetcher:  s.client,
		Interval: req.Interval,
		OnMessages: func(msgs []model.ChatMessage) {
			if len(msgs) < seen {
				seen = 0
			}
			if len(msgs) > seen {
				req.OnNew(msgs[seen:])
			}
			seen = len(msgs)
		},
		OnError: req.OnError,
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create poller: %w", err)
	}

	return p.Run(ctx)
}
