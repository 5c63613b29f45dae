package commands

import (
	"log/slog"
	"sort"

	"github.com/bwmarrin/discordgo"
)

type CommandHandler func(s DiscordSession, i *discordgo.InteractionCreate)

type Router struct {
	routes map[string]CommandHandler
}

func NewRouter() *Router {
	return &Router{
		routes: make(map[string]CommandHandler),
	}
}

func (r *Router) Register(name string, handler CommandHandler) {
	r.routes[name] = handler
}

// Names lists registered command names in sorted order.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) Handle(s DiscordSession, i *discordgo.InteractionCreate) {
	if !isCommandInteraction(i.Type) {
		return
	}

	name := i.ApplicationCommandData().Name
	slog.Debug("Router received interaction", "type", i.Type, "name", name, "guild_id", i.GuildID)

	handler, ok := r.routes[name]
	if !ok {
		slog.Warn("No handler found for command", "name", name)
		return
	}

	handler(s, i)
}

func (r *Router) HandleFunc() func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		r.Handle(s, i)
	}
}

func isCommandInteraction(t discordgo.InteractionType) bool {
	return t == discordgo.InteractionApplicationCommand ||
		t == discordgo.InteractionApplicationCommandAutocomplete
}
