package publish

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/parrot/internal/config"
)

// Discord posts to a channel as a bot user. Only the REST API is used, so
// no gateway session is opened.
type Discord struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscord(cfg config.DiscordConfig) (*Discord, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord: token and channelId are required")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Discord{session: s, channelID: cfg.ChannelID}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Publish(ctx context.Context, text string) (string, error) {
	msg, err := d.session.ChannelMessageSend(d.channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: send message: %w", discordError(err))
	}
	return msg.ID, nil
}
