package publish

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/parrot/internal/config"
)

// Slack posts to a channel with a bot token.
type Slack struct {
	api       *slack.Client
	channelID string
}

func NewSlack(cfg config.SlackConfig, opts ...slack.Option) (*Slack, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("slack: token and channelId are required")
	}
	return &Slack{api: slack.New(cfg.Token, opts...), channelID: cfg.ChannelID}, nil
}

func (s *Slack) Name() string { return "slack" }

// Publish returns the message timestamp, which Slack uses as its id.
func (s *Slack) Publish(ctx context.Context, text string) (string, error) {
	_, ts, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", slackError(err))
	}
	return ts, nil
}
