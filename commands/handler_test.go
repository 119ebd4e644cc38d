package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/EasterCompany/dex-transcribe-service/config"
	logger "github.com/EasterCompany/dex-transcribe-service/log"
	"github.com/EasterCompany/dex-transcribe-service/settings"
	"github.com/EasterCompany/dex-transcribe-service/stt"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	ownerID  string
	roles    map[string][]string
	perms    map[string]int64
	sent     []string
	deleted  []string
	guildErr error
}

func (f *fakeSession) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if f.guildErr != nil {
		return nil, f.guildErr
	}
	return &discordgo.Guild{ID: guildID, OwnerID: f.ownerID}, nil
}

func (f *fakeSession) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: f.roles[userID]}, nil
}

func (f *fakeSession) UserChannelPermissions(userID, _ string, _ ...discordgo.RequestOption) (int64, error) {
	return f.perms[userID], nil
}

func (f *fakeSession) ChannelMessageSend(_ string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeSession) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeTranscriber struct {
	validateErr error
	validated   []string
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(context.Context, stt.Request) (stt.Transcript, error) {
	return stt.Transcript{}, nil
}

func (f *fakeTranscriber) Validate(_ context.Context, credential string) error {
	f.validated = append(f.validated, credential)
	return f.validateErr
}

type staticReporter string

func (r staticReporter) Report(context.Context) string { return string(r) }

type harness struct {
	handler     *Handler
	session     *fakeSession
	store       *settings.MemoryStore
	transcriber *fakeTranscriber
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		session: &fakeSession{
			ownerID: "owner",
			roles:   map[string][]string{"moderator": {"role-admin"}, "member": {"role-member"}},
			perms:   map[string]int64{"server-admin": discordgo.PermissionAdministrator},
		},
		store:       settings.NewMemoryStore(),
		transcriber: &fakeTranscriber{},
	}
	checker := NewPermissionChecker(&config.DiscordConfig{
		Roles:         config.RoleConfig{Admin: []string{"role-admin"}},
		UserWhitelist: []string{"angel"},
	})
	h.handler = NewHandler(h.session, h.store, h.transcriber, checker, staticReporter("all good"), logger.Nop(), "!")
	return h
}

func message(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "cmd-1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Content:   content,
		Author:    &discordgo.User{ID: userID, Username: userID},
	}}
}

func (h *harness) run(t *testing.T, userID, content string) bool {
	t.Helper()
	return h.handler.HandleCommand(context.Background(), message(userID, content))
}

func TestHandleCommand_IgnoresNonCommands(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.run(t, "owner", "hello there"))
	assert.False(t, h.run(t, "owner", "!"))
	assert.False(t, h.run(t, "owner", "!play music"))
	assert.Empty(t, h.session.sent)

	bot := message("owner", "!help")
	bot.Author.Bot = true
	assert.False(t, h.handler.HandleCommand(context.Background(), bot))
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		user string
		want bool
	}{
		{"owner", true},
		{"angel", true},
		{"moderator", true},
		{"server-admin", true},
		{"member", false},
		{"stranger", false},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			h := newHarness(t)
			require.True(t, h.run(t, tt.user, "!help"))
			if tt.want {
				assert.Contains(t, h.session.last(), "Available Commands")
			} else {
				assert.Contains(t, h.session.last(), "do not have permission")
			}
		})
	}
}

func TestPermissions_DirectMessage(t *testing.T) {
	h := newHarness(t)
	checker := h.handler.permissionChecker

	dm := message("owner", "!help").Message
	dm.GuildID = ""
	assert.False(t, checker.CanExecuteCommand(h.session, dm))

	dm.Author.ID = "angel"
	assert.True(t, checker.CanExecuteCommand(h.session, dm))
}

func TestPermissions_GuildLookupFails(t *testing.T) {
	h := newHarness(t)
	h.session.guildErr = errors.New("unknown guild")

	assert.False(t, h.handler.permissionChecker.CanExecuteCommand(h.session, message("owner", "!help").Message))
}

func TestSetLang(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.run(t, "owner", "!set_lang DE")
	assert.Contains(t, h.session.last(), "German")
	lang, ok, err := h.store.Get(ctx, settings.KeyLanguage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "de", lang)

	h.run(t, "owner", "!set_lang xx")
	assert.Contains(t, h.session.last(), "Invalid language code")
	assert.Contains(t, h.session.last(), "one of the 183 ISO-639-1")
	lang, _, _ = h.store.Get(ctx, settings.KeyLanguage)
	assert.Equal(t, "de", lang)

	h.run(t, "owner", "!set_lang auto")
	_, ok, err = h.store.Get(ctx, settings.KeyLanguage)
	require.NoError(t, err)
	assert.False(t, ok)

	h.run(t, "owner", "!set_lang")
	assert.Contains(t, h.session.last(), "Usage")
}

func TestSetAPIKey(t *testing.T) {
	h := newHarness(t)

	h.run(t, "owner", "!set_api_key sk-abcdef1234")

	assert.Equal(t, []string{"cmd-1"}, h.session.deleted)
	assert.Equal(t, []string{"sk-abcdef1234"}, h.transcriber.validated)
	key, _, err := h.store.Get(context.Background(), settings.KeyAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdef1234", key)
	assert.Contains(t, h.session.last(), "****1234")
	assert.NotContains(t, h.session.last(), "sk-abcdef1234")
}

func TestSetAPIKey_Rejected(t *testing.T) {
	h := newHarness(t)
	h.transcriber.validateErr = &stt.Error{Kind: stt.KindAuth, Op: "test", StatusCode: 401, Err: errors.New("bad key")}

	h.run(t, "owner", "!set_api_key sk-wrong")

	assert.Contains(t, h.session.last(), "rejected")
	_, ok, err := h.store.Get(context.Background(), settings.KeyAPIKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetAPIKey_ModelUnavailable(t *testing.T) {
	h := newHarness(t)
	h.transcriber.validateErr = &stt.Error{Kind: stt.KindAuth, Op: "test", Err: fmt.Errorf("%w: whisper-1", stt.ErrModelUnavailable)}

	h.run(t, "owner", "!set_api_key sk-limited")

	assert.Contains(t, h.session.last(), "does not have access")
}

func TestSetAPIKey_DirectMessageIsNotDeleted(t *testing.T) {
	h := newHarness(t)
	m := message("angel", "!set_api_key sk-abcdef1234")
	m.GuildID = ""

	h.handler.HandleCommand(context.Background(), m)

	assert.Empty(t, h.session.deleted)
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.run(t, "owner", "!start")
	assert.Contains(t, h.session.last(), "No API key is set")
	snap, err := settings.Load(ctx, h.store)
	require.NoError(t, err)
	assert.False(t, snap.Listening)

	require.NoError(t, settings.SetAPIKey(ctx, h.store, "sk-valid"))
	h.run(t, "owner", "!start")
	assert.Contains(t, h.session.last(), "Started listening")
	snap, err = settings.Load(ctx, h.store)
	require.NoError(t, err)
	assert.True(t, snap.Listening)

	h.run(t, "owner", "!start")
	assert.Contains(t, h.session.last(), "already listening")

	h.run(t, "owner", "!stop")
	assert.Contains(t, h.session.last(), "Stopped listening")
	snap, err = settings.Load(ctx, h.store)
	require.NoError(t, err)
	assert.False(t, snap.Listening)

	h.run(t, "owner", "!stop")
	assert.Contains(t, h.session.last(), "Wasn't listening")
}

func TestStart_InvalidStoredLanguage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, settings.SetAPIKey(ctx, h.store, "sk-valid"))
	require.NoError(t, h.store.Set(ctx, settings.KeyLanguage, "None"))

	h.run(t, "owner", "!start")

	assert.Contains(t, h.session.last(), "Invalid language code")
	assert.Empty(t, h.transcriber.validated)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	h.run(t, "owner", "!status")

	assert.Equal(t, "all good", h.session.last())
}
