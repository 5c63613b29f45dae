package discord

import (
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// NewSession creates the bot session shared by the ops feed and the operator console.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	discord, err := discordgo.New("Bot " + token)
	if err != nil {
		slog.Error("Failed to create discord session", "error", err)
		return nil, err
	}

	discord.Identify.Intents = discordgo.IntentsGuilds

	return discord, nil
}
