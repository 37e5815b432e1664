package lib

import (
	"context"
	"fmt"
)

// StartBot launches the bot. The bot is starting until it settles, then running.
//
// Returns [ErrAlreadyRunning] if the bot is not stopped, or [ErrSpawnFailed] if
// the process could not be created.
func (c *Client) StartBot(ctx context.Context) (*Process, error) {
	mp, err := c.ctrl.StartBot(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	p := fromInternalProcess(*mp)
	return &p, nil
}

// StopBot asks the bot to shut down through its control endpoint and kills it if
// it doesn't exit in the configured grace period. It returns when the bot is stopped.
//
// Returns [ErrNotRunning] if there is no bot, or [ErrStopInProgress] if another
// stop is ongoing.
func (c *Client) StopBot(ctx context.Context) error {
	return mapError(c.ctrl.StopBot(ctx))
}

// Status returns the bot state.
func (c *Client) Status() BotState {
	return BotState(c.ctrl.Status())
}

// Process returns the bot process, if the client owns one.
func (c *Client) Process() (*Process, bool) {
	mp, ok := c.ctrl.Process()
	if !ok {
		return nil, false
	}

	p := fromInternalProcess(*mp)
	return &p, true
}

// Logs reads the whole bot log file.
func (c *Client) Logs() LogSnapshot {
	return fromInternalLogSnapshot(c.ctrl.Logs())
}

// Messages returns the chat messages the bot has relayed.
//
// Returns [ErrNet] if the bot control endpoint can't be reached.
func (c *Client) Messages(ctx context.Context) ([]ChatMessage, error) {
	msgs, err := c.ctrl.Messages(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return fromInternalMessages(msgs), nil
}

// SendMessage sends a chat message through the bot.
//
// Returns [ErrNotValid] on empty messages, or [ErrNet] if the bot control
// endpoint can't be reached.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	return mapError(c.ctrl.SendMessage(ctx, text))
}

// WatchOpts are the handlers of [Client.Watch], all of them are optional.
type WatchOpts struct {
	// OnLogs receives the whole log file periodically and when it changes.
	OnLogs func(LogSnapshot)
	// OnMessages receives the whole message list on every poll.
	OnMessages func([]ChatMessage)
	// OnMessagesError receives the message poll errors.
	OnMessagesError func(error)
}

// Watch follows the bot log file and chat messages until the context is done.
// When Watch returns the bot is stopped. Only one Watch can run at a time.
//
// Handlers are called from background goroutines.
func (c *Client) Watch(ctx context.Context, opts WatchOpts) error {
	c.mu.Lock()
	if c.watch != nil {
		c.mu.Unlock()
		return fmt.Errorf("watch in progress: %w", ErrAlreadyRunning)
	}
	c.watch = &opts
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.watch = nil
		c.mu.Unlock()
	}()

	return mapError(c.ctrl.Run(ctx))
}
