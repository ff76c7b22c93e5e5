// Package publish posts composed text to a social network and notifies an
// optional webhook.
package publish

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/parrot/internal/config"
)

// Publisher posts one text and returns the service's id for it.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, text string) (string, error)
}

// Targets lists the names New accepts.
var Targets = []string{"x", "telegram", "discord", "slack"}

// New builds the publisher named by target (cfg.Target when empty).
func New(cfg config.PublishConfig, target string) (Publisher, error) {
	if target == "" {
		target = cfg.Target
	}
	var (
		p   Publisher
		err error
	)
	switch target {
	case "x":
		p, err = NewX(cfg.X)
	case "telegram":
		p, err = NewTelegram(cfg.Telegram)
	case "discord":
		p, err = NewDiscord(cfg.Discord)
	case "slack":
		p, err = NewSlack(cfg.Slack)
	default:
		return nil, fmt.Errorf("unknown publish target %q", target)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Prefix != "" {
		p = &prefixed{Publisher: p, prefix: cfg.Prefix}
	}
	return p, nil
}

// prefixed prepends a fixed marker (e.g. "[bot] ") to every post.
type prefixed struct {
	Publisher
	prefix string
}

func (p *prefixed) Publish(ctx context.Context, text string) (string, error) {
	return p.Publisher.Publish(ctx, p.prefix+text)
}
