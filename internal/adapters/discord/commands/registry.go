package commands

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

var adminPerms = int64(discordgo.PermissionAdministrator)

func GetApplicationCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "maintenance-start",
			Description:              "Freeze writes on one or more engines",
			DefaultMemberPermissions: &adminPerms,
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("reason", "Why the engines are frozen", true, false),
				stringOption("scope", "Comma separated engines or all", true, false),
				integerOption("start-in", "Minutes until the freeze starts"),
				integerOption("resume-in", "Expected freeze length in minutes"),
			},
		},
		{
			Name:                     "maintenance-end",
			Description:              "Lift a maintenance freeze",
			DefaultMemberPermissions: &adminPerms,
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("command-id", "Maintenance command to complete", true, true),
			},
		},
		{
			Name:                     "maintenance-list",
			Description:              "List open maintenance commands",
			DefaultMemberPermissions: &adminPerms,
		},
		{
			Name:                     "reset-fatigue",
			Description:              "Reset a character's fatigue for one skill",
			DefaultMemberPermissions: &adminPerms,
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("character-id", "Character id", true, false),
				stringOption("skill-id", "Skill id", true, false),
				stringOption("reason", "Reason recorded in the audit trail", false, false),
			},
		},
		{
			Name:                     "region-status",
			Description:              "Show the current owner of a region",
			DefaultMemberPermissions: &adminPerms,
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("region-id", "Region id", true, false),
			},
		},
	}
}

func integerOption(name, description string) *discordgo.ApplicationCommandOption {
	minValue := float64(1)
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		MinValue:    &minValue,
	}
}

func stringOption(name, description string, required, autocomplete bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         name,
		Description:  description,
		Required:     required,
		Autocomplete: autocomplete,
	}
}

func RegisterCommands(session CommandSession, commands []*discordgo.ApplicationCommand, userID, guildID string) []*discordgo.ApplicationCommand {
	registered := make([]*discordgo.ApplicationCommand, len(commands))

	for i, cmd := range commands {
		result, err := session.ApplicationCommandCreate(userID, guildID, cmd)
		if err != nil {
			slog.Error("Cannot create command", "name", cmd.Name, "error", err)
			continue
		}
		registered[i] = result
		slog.Info("Registered command", "name", cmd.Name, "guild", guildID)
	}

	return registered
}

func CleanupCommands(session CommandSession, commands []*discordgo.ApplicationCommand, userID, guildID string) {
	for _, cmd := range commands {
		if cmd == nil {
			continue
		}
		if err := session.ApplicationCommandDelete(userID, guildID, cmd.ID); err != nil {
			slog.Error("Cannot delete command", "name", cmd.Name, "error", err)
		}
	}
}
