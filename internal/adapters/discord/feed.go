package discord

import (
	"context"
	"fmt"
	"log/slog"

	"world-state-engine/internal/adapters/discord/formatting"
	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/core/domain"

	"github.com/bwmarrin/discordgo"
)

type DiscordSession interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Feed posts operator-relevant events to the ops channel of one guild.
// Events operators do not act on are ignored.
type Feed struct {
	session DiscordSession
	guildID string
	channel string
	cache   *channelCache
}

func NewFeed(session DiscordSession, guildID, channel string) *Feed {
	return &Feed{
		session: session,
		guildID: guildID,
		channel: channel,
		cache:   newChannelCache(),
	}
}

func (f *Feed) Name() string { return "discord" }

func (f *Feed) Publish(ctx context.Context, event domain.Event) error {
	content, ok := formatEvent(event)
	if !ok {
		return nil
	}
	return f.Send(content)
}

func formatEvent(event domain.Event) (string, bool) {
	switch p := event.Payload.(type) {
	case domain.PopulationAlert:
		return formatting.MsgPopulationAlert(p), true
	case domain.PlanTransition:
		return formatting.MsgPlanTransition(p), true
	case domain.ActionFailure:
		return formatting.MsgActionFailed(p), true
	case domain.MaintenanceCommand:
		return formatting.MsgMaintenance(p), true
	case domain.ControlShiftEvent:
		return formatting.MsgControlShift(p), true
	case domain.ImpactResult:
		if p.AggregatedLevel == domain.LevelHigh || p.AggregatedLevel == domain.LevelCritical {
			return formatting.MsgImpact(p), true
		}
	}
	return "", false
}

func (f *Feed) Send(message string) error {
	channelID, err := f.resolveChannelID()
	if err != nil {
		slog.Error("Failed to get channel ID", "guild_id", f.guildID, "channel_name", f.channel, "error", err)
		metrics.DiscordMessagesSent.WithLabelValues("ops", "failure").Inc()
		return err
	}

	if _, err := f.session.ChannelMessageSend(channelID, message); err != nil {
		slog.Error("Failed to send message", "channel_id", channelID, "error", err)
		f.cache.Invalidate(f.guildID, f.channel)
		metrics.DiscordMessagesSent.WithLabelValues("ops", "failure").Inc()
		return err
	}

	metrics.DiscordMessagesSent.WithLabelValues("ops", "success").Inc()
	return nil
}

func (f *Feed) resolveChannelID() (string, error) {
	if id, ok := f.cache.Get(f.guildID, f.channel); ok {
		return id, nil
	}

	channels, err := f.session.GuildChannels(f.guildID)
	if err != nil {
		return "", err
	}
	for _, ch := range channels {
		if ch.Name == f.channel && ch.Type == discordgo.ChannelTypeGuildText {
			f.cache.Set(f.guildID, f.channel, ch.ID)
			return ch.ID, nil
		}
	}

	return "", fmt.Errorf("channel %s not found", f.channel)
}
