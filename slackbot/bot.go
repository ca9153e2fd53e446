// Package slackbot provides the human-in-the-loop shim SDL workflows use to
// notify operators and gate on their approval.
//
// It adapts the slack-go client behind a send-message / ask-approval /
// await-response contract. Approval is reaction-based: the bot posts a
// prompt with Approve and Deny buttons and then polls the message reactions,
// which keeps the device free of any inbound webhook surface.
package slackbot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/slack-go/slack"

	"github.com/acclab/go-sdl-utils/internal/pool"
	"github.com/acclab/go-sdl-utils/logger"
)

// Environment variables consulted when the corresponding argument is empty.
const (
	EnvBotToken       = "SLACK_BOT_TOKEN"
	EnvDefaultChannel = "DEFAULT_SLACK_CHANNEL"
)

var (
	// ErrNoToken indicates that no bot token was provided or found in the
	// environment.
	ErrNoToken = errors.New("slack bot token not set")

	// ErrApprovalTimeout indicates that no operator responded before the
	// approval deadline.
	ErrApprovalTimeout = errors.New("approval request timed out")
)

// Decision is an operator's response to an approval request.
type Decision uint8

const (
	// Approved indicates the operator approved the request.
	Approved Decision = iota
	// Denied indicates the operator denied the request.
	Denied
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// api is the subset of the slack-go client the bot depends on.
type api interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	GetReactions(item slack.ItemRef, params slack.GetReactionsParameters) ([]slack.ItemReaction, error)
}

// Bot posts messages and approval requests to Slack channels.
type Bot struct {
	api            api
	defaultChannel string
	pollInterval   time.Duration
	logger         logger.Logger
}

// NewBot creates a Slack bot.
//
// token falls back to SLACK_BOT_TOKEN; defaultChannel falls back to
// DEFAULT_SLACK_CHANNEL, then "#general".
func NewBot(token, defaultChannel string, l logger.Logger) (*Bot, error) {
	if token == "" {
		token = os.Getenv(EnvBotToken)
	}
	if token == "" {
		return nil, ErrNoToken
	}

	if defaultChannel == "" {
		defaultChannel = os.Getenv(EnvDefaultChannel)
	}
	if defaultChannel == "" {
		defaultChannel = "#general"
	}

	if l == nil {
		l = logger.GetLogger()
	}

	return &Bot{
		api:            slack.New(token),
		defaultChannel: defaultChannel,
		pollInterval:   5 * time.Second,
		logger:         l,
	}, nil
}

// SendMessage posts a plain text message and returns its timestamp, which
// identifies the message within its channel. An empty channel targets the
// default channel.
func (b *Bot) SendMessage(channel, text string) (string, error) {
	channel = b.resolveChannel(channel)

	_, ts, err := b.api.PostMessage(channel, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("post message to %s: %w", channel, err)
	}

	b.logger.Debug("slack message sent", "channel", channel, "ts", ts)

	return ts, nil
}

// AskApproval posts a prompt with Approve and Deny buttons and returns the
// message timestamp needed to await the response.
func (b *Bot) AskApproval(channel, prompt string) (string, error) {
	channel = b.resolveChannel(channel)

	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, prompt, false, false), nil, nil)

	approve := slack.NewButtonBlockElement("approve", "approve",
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false))
	approve.Style = slack.StylePrimary

	deny := slack.NewButtonBlockElement("deny", "deny",
		slack.NewTextBlockObject(slack.PlainTextType, "Deny", false, false))
	deny.Style = slack.StyleDanger

	actions := slack.NewActionBlock("approval", approve, deny)

	_, ts, err := b.api.PostMessage(channel, slack.MsgOptionBlocks(section, actions))
	if err != nil {
		return "", fmt.Errorf("post approval request to %s: %w", channel, err)
	}

	b.logger.Info("approval requested", "channel", channel, "ts", ts)

	return ts, nil
}

// AwaitApproval polls the reactions on the message identified by channel and
// ts until an operator reacts with +1 (approve) or -1 (deny), the timeout
// elapses, or ctx is canceled.
func (b *Bot) AwaitApproval(ctx context.Context, channel, ts string, timeout time.Duration) (Decision, error) {
	channel = b.resolveChannel(channel)
	deadline := time.Now().Add(timeout)
	item := slack.NewRefToMessage(channel, ts)

	for {
		reactions, err := b.api.GetReactions(item, slack.NewGetReactionsParameters())
		if err != nil {
			b.logger.Warn("failed to fetch reactions", "channel", channel, "ts", ts, "error", err)
		}

		for _, reaction := range reactions {
			switch reaction.Name {
			case "+1", "thumbsup", "white_check_mark":
				b.logger.Info("approval granted", "channel", channel, "ts", ts, "reaction", reaction.Name)
				return Approved, nil
			case "-1", "thumbsdown", "x":
				b.logger.Info("approval denied", "channel", channel, "ts", ts, "reaction", reaction.Name)
				return Denied, nil
			}
		}

		if time.Now().After(deadline) {
			return Denied, fmt.Errorf("no response within %v: %w", timeout, ErrApprovalTimeout)
		}

		timer := pool.GetTimer(b.pollInterval)
		select {
		case <-ctx.Done():
			pool.PutTimer(timer)
			return Denied, ctx.Err()
		case <-timer.C:
		}
		pool.PutTimer(timer)
	}
}

func (b *Bot) resolveChannel(channel string) string {
	if channel == "" {
		return b.defaultChannel
	}

	return channel
}
