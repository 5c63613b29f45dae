package discord

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestNewSession(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"bot token", "MTk.test.token", false},
		{"token with dots", "a.b.c.d", false},
		{"empty token", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := NewSession(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSession() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !strings.HasPrefix(session.Token, "Bot ") {
				t.Errorf("token %q not prefixed", session.Token)
			}
			if session.Identify.Intents != discordgo.IntentsGuilds {
				t.Errorf("intents = %d, want guilds only", session.Identify.Intents)
			}
		})
	}
}
