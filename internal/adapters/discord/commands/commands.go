package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"world-state-engine/internal/adapters/discord/formatting"
	"world-state-engine/internal/core/domain"

	"github.com/bwmarrin/discordgo"
)

const handlerTimeout = 5 * time.Second

type BotHandler struct {
	OpsChannel  string
	Maintenance MaintenanceService
	Fatigue     FatigueService
	Regions     RegionService
	Now         func() time.Time
}

func ReadyHandler(session *discordgo.Session, ready *discordgo.Ready) {
	slog.Info("Operator console is online", "user", session.State.User.Username)
}

func (h *BotHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *BotHandler) StartMaintenance(s DiscordSession, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options
	reason := getStringOption(opts, "reason")
	if reason == "" {
		respond(s, i, formatting.MsgReasonRequired, true)
		return
	}

	if _, err := ensureChannel(s, i.GuildID, h.OpsChannel); err != nil {
		slog.Error("Failed to ensure ops channel", "channel", h.OpsChannel, "error", err)
	}

	req := domain.MaintenanceRequest{
		Reason:      reason,
		InitiatedBy: operator(i),
		Scope:       splitScope(getStringOption(opts, "scope")),
	}
	now := h.now()
	if mins := getIntOption(opts, "start-in"); mins > 0 {
		at := now.Add(time.Duration(mins) * time.Minute)
		req.StartAt = &at
	}
	if mins := getIntOption(opts, "resume-in"); mins > 0 {
		start := now
		if req.StartAt != nil {
			start = *req.StartAt
		}
		at := start.Add(time.Duration(mins) * time.Minute)
		req.ExpectedResumeAt = &at
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	cmd, err := h.Maintenance.IssueMaintenanceCommand(ctx, req)
	if err != nil {
		slog.Error("Failed to issue maintenance command", "error", err)
		respond(s, i, formatting.MsgError(err), true)
		return
	}

	respond(s, i, formatting.MsgMaintenance(*cmd), cmd.Status == domain.MaintenanceRejected)
}

func (h *BotHandler) EndMaintenance(s DiscordSession, i *discordgo.InteractionCreate) {
	if i.Type == discordgo.InteractionApplicationCommandAutocomplete {
		h.handleCommandAutocomplete(s, i)
		return
	}

	raw := getStringOption(i.ApplicationCommandData().Options, "command-id")
	if raw == "" {
		respond(s, i, formatting.MsgCommandIDRequired, true)
		return
	}
	id, err := domain.ParseID(raw)
	if err != nil {
		respond(s, i, formatting.MsgInvalidID, true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	cmd, err := h.Maintenance.CompleteMaintenance(ctx, id)
	if err != nil {
		slog.Error("Failed to complete maintenance", "command_id", raw, "error", err)
		respond(s, i, formatting.MsgError(err), true)
		return
	}

	respond(s, i, formatting.MsgMaintenance(*cmd), false)
}

func (h *BotHandler) handleCommandAutocomplete(s DiscordSession, i *discordgo.InteractionCreate) {
	query := getFocusedOption(i.ApplicationCommandData().Options)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	cmds, err := h.Maintenance.ListOpen(ctx)
	if err != nil {
		slog.Error("Failed to list maintenance for autocomplete", "error", err)
		return
	}

	if err := respondAutocomplete(s, i, buildCommandChoices(cmds, query)); err != nil {
		slog.Error("Failed to send autocomplete response", "error", err)
	}
}

func (h *BotHandler) ListMaintenance(s DiscordSession, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	cmds, err := h.Maintenance.ListOpen(ctx)
	if err != nil {
		slog.Error("Failed to list maintenance commands", "error", err)
		respond(s, i, formatting.MsgError(err), true)
		return
	}
	if len(cmds) == 0 {
		respond(s, i, formatting.MsgNoOpenMaintenance, false)
		return
	}
	respond(s, i, formatting.MsgMaintenanceList(cmds), false)
}

func (h *BotHandler) ResetFatigue(s DiscordSession, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options
	rawChar := getStringOption(opts, "character-id")
	skillID := getStringOption(opts, "skill-id")
	if rawChar == "" || skillID == "" {
		respond(s, i, formatting.MsgCharacterRequired, true)
		return
	}
	characterID, err := domain.ParseID(rawChar)
	if err != nil {
		respond(s, i, formatting.MsgInvalidID, true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	ack, err := h.Fatigue.ResetFatigue(ctx, domain.FatigueReset{
		CharacterID: characterID,
		SkillID:     skillID,
		Reason:      getStringOption(opts, "reason"),
		RequestedBy: operator(i),
	})
	if err != nil {
		slog.Error("Failed to reset fatigue", "character_id", rawChar, "skill_id", skillID, "error", err)
		respond(s, i, formatting.MsgError(err), true)
		return
	}

	respond(s, i, formatting.MsgFatigueReset(*ack), false)
}

func (h *BotHandler) RegionStatus(s DiscordSession, i *discordgo.InteractionCreate) {
	raw := getStringOption(i.ApplicationCommandData().Options, "region-id")
	if raw == "" {
		respond(s, i, formatting.MsgRegionRequired, true)
		return
	}
	regionID, err := domain.ParseID(raw)
	if err != nil {
		respond(s, i, formatting.MsgInvalidID, true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	region, err := h.Regions.Region(ctx, regionID)
	if err != nil {
		respond(s, i, formatting.MsgError(err), true)
		return
	}
	respond(s, i, formatting.MsgRegionStatus(*region), false)
}

func buildCommandChoices(cmds []domain.MaintenanceCommand, query string) []*discordgo.ApplicationCommandOptionChoice {
	var choices []*discordgo.ApplicationCommandOptionChoice
	query = strings.ToLower(query)
	for _, c := range cmds {
		id := c.CommandID.String()
		if !strings.Contains(id, query) && !strings.Contains(strings.ToLower(c.Reason), query) {
			continue
		}
		name := id[:8] + " " + c.Reason
		if len(name) > 100 {
			name = name[:100]
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: id})
		if len(choices) >= 25 {
			break
		}
	}
	return choices
}

func splitScope(raw string) []string {
	var scope []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			scope = append(scope, strings.ToLower(part))
		}
	}
	return scope
}

func operator(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return "discord:" + i.Member.User.Username
	}
	if i.User != nil {
		return "discord:" + i.User.Username
	}
	return "discord"
}
