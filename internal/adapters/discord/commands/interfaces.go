package commands

import (
	"context"

	"world-state-engine/internal/core/domain"

	"github.com/bwmarrin/discordgo"
)

type DiscordSession interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

type CommandSession interface {
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

type MaintenanceService interface {
	IssueMaintenanceCommand(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error)
	CompleteMaintenance(ctx context.Context, commandID domain.ID) (*domain.MaintenanceCommand, error)
	ListOpen(ctx context.Context) ([]domain.MaintenanceCommand, error)
}

type FatigueService interface {
	ResetFatigue(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error)
}

type RegionService interface {
	Region(ctx context.Context, regionID domain.ID) (*domain.RegionControl, error)
}
