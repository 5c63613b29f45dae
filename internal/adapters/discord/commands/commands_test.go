package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"world-state-engine/internal/adapters/discord/formatting"
	"world-state-engine/internal/core/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type mockDiscordSession struct {
	guildChannelsFunc      func(guildID string) ([]*discordgo.Channel, error)
	guildChannelCreateFunc func(guildID, name string, ctype discordgo.ChannelType) (*discordgo.Channel, error)
	interactionRespondFunc func(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error

	lastInteractionResponse *discordgo.InteractionResponse
}

func (m *mockDiscordSession) GuildChannels(guildID string, opts ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	if m.guildChannelsFunc != nil {
		return m.guildChannelsFunc(guildID)
	}
	return []*discordgo.Channel{}, nil
}

func (m *mockDiscordSession) GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if m.guildChannelCreateFunc != nil {
		return m.guildChannelCreateFunc(guildID, name, ctype)
	}
	return &discordgo.Channel{ID: "mock-id", Name: name, Type: ctype}, nil
}

func (m *mockDiscordSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	m.lastInteractionResponse = resp
	if m.interactionRespondFunc != nil {
		return m.interactionRespondFunc(interaction, resp)
	}
	return nil
}

func (m *mockDiscordSession) content() string {
	if m.lastInteractionResponse == nil || m.lastInteractionResponse.Data == nil {
		return ""
	}
	return m.lastInteractionResponse.Data.Content
}

type mockMaintenance struct {
	issueFunc    func(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error)
	completeFunc func(ctx context.Context, id domain.ID) (*domain.MaintenanceCommand, error)
	listFunc     func(ctx context.Context) ([]domain.MaintenanceCommand, error)
}

func (m *mockMaintenance) IssueMaintenanceCommand(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error) {
	if m.issueFunc != nil {
		return m.issueFunc(ctx, req)
	}
	return &domain.MaintenanceCommand{CommandID: domain.NewID(), Reason: req.Reason, Status: domain.MaintenanceInProgress}, nil
}

func (m *mockMaintenance) CompleteMaintenance(ctx context.Context, id domain.ID) (*domain.MaintenanceCommand, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, id)
	}
	return &domain.MaintenanceCommand{CommandID: id, Status: domain.MaintenanceCompleted}, nil
}

func (m *mockMaintenance) ListOpen(ctx context.Context) ([]domain.MaintenanceCommand, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

type mockFatigue struct {
	resetFunc func(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error)
}

func (m *mockFatigue) ResetFatigue(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error) {
	if m.resetFunc != nil {
		return m.resetFunc(ctx, req)
	}
	return &domain.FatigueResetAck{CharacterID: req.CharacterID, SkillID: req.SkillID}, nil
}

type mockRegions struct {
	regionFunc func(ctx context.Context, id domain.ID) (*domain.RegionControl, error)
}

func (m *mockRegions) Region(ctx context.Context, id domain.ID) (*domain.RegionControl, error) {
	if m.regionFunc != nil {
		return m.regionFunc(ctx, id)
	}
	return nil, domain.ErrRegionNotFound
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler() (*BotHandler, *mockMaintenance, *mockFatigue, *mockRegions) {
	m, f, r := &mockMaintenance{}, &mockFatigue{}, &mockRegions{}
	return &BotHandler{
		OpsChannel:  "world-ops",
		Maintenance: m,
		Fatigue:     f,
		Regions:     r,
		Now:         func() time.Time { return fixedNow },
	}, m, f, r
}

func makeCommandInteraction(opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "guild-1",
			Member:  &discordgo.Member{User: &discordgo.User{Username: "gm-ana"}, Permissions: discordgo.PermissionAdministrator},
			Data:    discordgo.ApplicationCommandInteractionData{Options: opts},
		},
	}
}

func str(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func num(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value)}
}

func TestStartMaintenance_BuildsRequest(t *testing.T) {
	h, m, _, _ := newTestHandler()
	var got domain.MaintenanceRequest
	m.issueFunc = func(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error) {
		got = req
		return &domain.MaintenanceCommand{CommandID: domain.NewID(), Reason: req.Reason, Scope: domain.Scope{domain.EngineControl}, StartAt: *req.StartAt, Status: domain.MaintenanceAccepted}, nil
	}

	created := ""
	session := &mockDiscordSession{
		guildChannelCreateFunc: func(guildID, name string, ctype discordgo.ChannelType) (*discordgo.Channel, error) {
			created = name
			return &discordgo.Channel{ID: "ops", Name: name}, nil
		},
	}

	h.StartMaintenance(session, makeCommandInteraction(
		str("reason", "patch"), str("scope", " Control, orders "), num("start-in", 10), num("resume-in", 30),
	))

	if created != "world-ops" {
		t.Errorf("ops channel not ensured, created %q", created)
	}
	if got.InitiatedBy != "discord:gm-ana" {
		t.Errorf("InitiatedBy = %q", got.InitiatedBy)
	}
	if len(got.Scope) != 2 || got.Scope[0] != "control" || got.Scope[1] != "orders" {
		t.Errorf("Scope = %v", got.Scope)
	}
	if got.StartAt == nil || !got.StartAt.Equal(fixedNow.Add(10*time.Minute)) {
		t.Errorf("StartAt = %v", got.StartAt)
	}
	if got.ExpectedResumeAt == nil || !got.ExpectedResumeAt.Equal(fixedNow.Add(40*time.Minute)) {
		t.Errorf("ExpectedResumeAt = %v", got.ExpectedResumeAt)
	}
	if !strings.Contains(session.content(), "scheduled") {
		t.Errorf("unexpected response %q", session.content())
	}
}

func TestStartMaintenance_Errors(t *testing.T) {
	t.Run("missing reason", func(t *testing.T) {
		h, _, _, _ := newTestHandler()
		session := &mockDiscordSession{}
		h.StartMaintenance(session, makeCommandInteraction(str("scope", "all")))
		if session.content() != formatting.MsgReasonRequired {
			t.Errorf("response = %q", session.content())
		}
	})

	t.Run("service error", func(t *testing.T) {
		h, m, _, _ := newTestHandler()
		m.issueFunc = func(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error) {
			return nil, domain.Invalid(errors.New("scope must not be empty"))
		}
		session := &mockDiscordSession{}
		h.StartMaintenance(session, makeCommandInteraction(str("reason", "patch")))
		if !strings.Contains(session.content(), string(domain.CodeInvalidRequest)) {
			t.Errorf("response = %q", session.content())
		}
		if session.lastInteractionResponse.Data.Flags != discordgo.MessageFlagsEphemeral {
			t.Error("errors should be ephemeral")
		}
	})

	t.Run("rejected command is ephemeral", func(t *testing.T) {
		h, m, _, _ := newTestHandler()
		m.issueFunc = func(ctx context.Context, req domain.MaintenanceRequest) (*domain.MaintenanceCommand, error) {
			return &domain.MaintenanceCommand{Status: domain.MaintenanceRejected, RejectionReason: "overlaps"}, nil
		}
		session := &mockDiscordSession{}
		h.StartMaintenance(session, makeCommandInteraction(str("reason", "patch"), str("scope", "all")))
		if !strings.Contains(session.content(), "overlaps") {
			t.Errorf("response = %q", session.content())
		}
		if session.lastInteractionResponse.Data.Flags != discordgo.MessageFlagsEphemeral {
			t.Error("rejection should be ephemeral")
		}
	})
}

func TestEndMaintenance(t *testing.T) {
	id := uuid.MustParse("0b6d2b0e-3f0a-4b8e-9c57-1d7c5f0b9a11")

	tests := []struct {
		name    string
		opts    []*discordgo.ApplicationCommandInteractionDataOption
		err     error
		want    string
		wantIDs int
	}{
		{"missing id", nil, nil, formatting.MsgCommandIDRequired, 0},
		{"malformed id", []*discordgo.ApplicationCommandInteractionDataOption{str("command-id", "nope")}, nil, formatting.MsgInvalidID, 0},
		{"completed", []*discordgo.ApplicationCommandInteractionDataOption{str("command-id", id.String())}, nil, "completed", 1},
		{"not open", []*discordgo.ApplicationCommandInteractionDataOption{str("command-id", id.String())}, domain.ErrInvalidTransition, string(domain.CodeInvalidTransition), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m, _, _ := newTestHandler()
			calls := 0
			m.completeFunc = func(ctx context.Context, got domain.ID) (*domain.MaintenanceCommand, error) {
				calls++
				if got != id {
					t.Errorf("id = %s", got)
				}
				if tt.err != nil {
					return nil, tt.err
				}
				return &domain.MaintenanceCommand{CommandID: got, Status: domain.MaintenanceCompleted}, nil
			}
			session := &mockDiscordSession{}
			h.EndMaintenance(session, makeCommandInteraction(tt.opts...))
			if !strings.Contains(session.content(), tt.want) {
				t.Errorf("response = %q, want %q", session.content(), tt.want)
			}
			if calls != tt.wantIDs {
				t.Errorf("service calls = %d, want %d", calls, tt.wantIDs)
			}
		})
	}
}

func TestEndMaintenance_Autocomplete(t *testing.T) {
	h, m, _, _ := newTestHandler()
	m.listFunc = func(ctx context.Context) ([]domain.MaintenanceCommand, error) {
		return []domain.MaintenanceCommand{
			{CommandID: domain.NewID(), Reason: "Database upgrade"},
			{CommandID: domain.NewID(), Reason: "Patch 4.2"},
		}, nil
	}

	i := makeCommandInteraction(&discordgo.ApplicationCommandInteractionDataOption{
		Name: "command-id", Type: discordgo.ApplicationCommandOptionString, Value: "patch", Focused: true,
	})
	i.Type = discordgo.InteractionApplicationCommandAutocomplete

	session := &mockDiscordSession{}
	h.EndMaintenance(session, i)

	resp := session.lastInteractionResponse
	if resp == nil || resp.Type != discordgo.InteractionApplicationCommandAutocompleteResult {
		t.Fatalf("expected autocomplete response, got %+v", resp)
	}
	if len(resp.Data.Choices) != 1 || !strings.HasSuffix(resp.Data.Choices[0].Name, "Patch 4.2") {
		t.Errorf("choices = %+v", resp.Data.Choices)
	}
}

func TestListMaintenance(t *testing.T) {
	h, m, _, _ := newTestHandler()
	session := &mockDiscordSession{}
	h.ListMaintenance(session, makeCommandInteraction())
	if session.content() != formatting.MsgNoOpenMaintenance {
		t.Errorf("response = %q", session.content())
	}

	m.listFunc = func(ctx context.Context) ([]domain.MaintenanceCommand, error) {
		return []domain.MaintenanceCommand{{CommandID: domain.NewID(), Reason: "upgrade", Status: domain.MaintenanceInProgress, Scope: domain.Scope{domain.EngineOrders}}}, nil
	}
	h.ListMaintenance(session, makeCommandInteraction())
	if !strings.Contains(session.content(), "upgrade") || !strings.Contains(session.content(), "orders") {
		t.Errorf("response = %q", session.content())
	}
}

func TestResetFatigue(t *testing.T) {
	charID := domain.NewID()

	t.Run("missing ids", func(t *testing.T) {
		h, _, _, _ := newTestHandler()
		session := &mockDiscordSession{}
		h.ResetFatigue(session, makeCommandInteraction(str("skill-id", "sword")))
		if session.content() != formatting.MsgCharacterRequired {
			t.Errorf("response = %q", session.content())
		}
	})

	t.Run("passes operator and reason", func(t *testing.T) {
		h, _, f, _ := newTestHandler()
		var got domain.FatigueReset
		f.resetFunc = func(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error) {
			got = req
			return &domain.FatigueResetAck{CharacterID: req.CharacterID, SkillID: req.SkillID, ResetAt: fixedNow}, nil
		}
		session := &mockDiscordSession{}
		h.ResetFatigue(session, makeCommandInteraction(str("character-id", charID.String()), str("skill-id", "sword"), str("reason", "event reward")))
		if got.CharacterID != charID || got.RequestedBy != "discord:gm-ana" || got.Reason != "event reward" {
			t.Errorf("request = %+v", got)
		}
		if !strings.Contains(session.content(), "sword") {
			t.Errorf("response = %q", session.content())
		}
	})

	t.Run("unknown skill", func(t *testing.T) {
		h, _, f, _ := newTestHandler()
		f.resetFunc = func(ctx context.Context, req domain.FatigueReset) (*domain.FatigueResetAck, error) {
			return nil, domain.ErrUnknownSkill
		}
		session := &mockDiscordSession{}
		h.ResetFatigue(session, makeCommandInteraction(str("character-id", charID.String()), str("skill-id", "axe")))
		if !strings.Contains(session.content(), string(domain.CodeUnknownSkill)) {
			t.Errorf("response = %q", session.content())
		}
	})
}

func TestRegionStatus(t *testing.T) {
	regionID := domain.NewID()
	h, _, _, r := newTestHandler()
	r.regionFunc = func(ctx context.Context, id domain.ID) (*domain.RegionControl, error) {
		if id != regionID {
			return nil, domain.ErrRegionNotFound
		}
		return &domain.RegionControl{
			RegionID:     id,
			CurrentOwner: "crown",
			ControlScore: decimal.NewFromInt(42),
			Version:      3,
			Pending:      &domain.PendingShift{ClaimantFaction: "guild", ScheduledAt: fixedNow.Add(time.Hour)},
		}, nil
	}

	session := &mockDiscordSession{}
	h.RegionStatus(session, makeCommandInteraction(str("region-id", regionID.String())))
	for _, want := range []string{"crown", "42.00", "guild"} {
		if !strings.Contains(session.content(), want) {
			t.Errorf("response %q missing %q", session.content(), want)
		}
	}

	h.RegionStatus(session, makeCommandInteraction(str("region-id", domain.NewID().String())))
	if !strings.Contains(session.content(), string(domain.CodeRegionNotFound)) {
		t.Errorf("response = %q", session.content())
	}

	h.RegionStatus(session, makeCommandInteraction())
	if session.content() != formatting.MsgRegionRequired {
		t.Errorf("response = %q", session.content())
	}
}

func TestSplitScope(t *testing.T) {
	got := splitScope("Control, ,orders,")
	if len(got) != 2 || got[0] != "control" || got[1] != "orders" {
		t.Errorf("splitScope = %v", got)
	}
	if splitScope("") != nil {
		t.Error("empty scope should be nil")
	}
}

func TestOperator(t *testing.T) {
	if got := operator(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{Username: "dm"}}}); got != "discord:dm" {
		t.Errorf("operator = %q", got)
	}
	if got := operator(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}); got != "discord" {
		t.Errorf("operator = %q", got)
	}
}

func TestReadyHandler(t *testing.T) {
	session := &discordgo.Session{State: discordgo.NewState()}
	session.State.User = &discordgo.User{Username: "worldbot"}
	ReadyHandler(session, &discordgo.Ready{})
}
