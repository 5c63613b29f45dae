package commands

import (
	"log/slog"
	"time"

	"world-state-engine/internal/adapters/discord/formatting"

	"github.com/bwmarrin/discordgo"
)

type Middleware func(CommandHandler) CommandHandler

// Chain wraps h so the first middleware runs outermost.
func Chain(h CommandHandler, mws ...Middleware) CommandHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WithAdmin lets only guild administrators reach the console. Denials are logged with the operator.
func WithAdmin(next CommandHandler) CommandHandler {
	return func(s DiscordSession, i *discordgo.InteractionCreate) {
		if !isAdmin(i) {
			slog.Warn("Console command denied",
				"command", commandName(i),
				"operator", operator(i),
				"guild_id", i.GuildID)
			respond(s, i, formatting.MsgAdminRequired, true)
			return
		}
		next(s, i)
	}
}

// WithLogging records who ran which console command and how long it took.
func WithLogging(next CommandHandler) CommandHandler {
	return func(s DiscordSession, i *discordgo.InteractionCreate) {
		start := time.Now()
		next(s, i)
		if i.Type == discordgo.InteractionApplicationCommandAutocomplete {
			return
		}
		slog.Info("Console command handled",
			"command", commandName(i),
			"operator", operator(i),
			"duration", time.Since(start))
	}
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func commandName(i *discordgo.InteractionCreate) string {
	if data, ok := i.Data.(discordgo.ApplicationCommandInteractionData); ok {
		return data.Name
	}
	return ""
}
