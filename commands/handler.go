// Package commands implements the admin prefix commands that control the transcriber.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EasterCompany/dex-transcribe-service/language"
	logger "github.com/EasterCompany/dex-transcribe-service/log"
	"github.com/EasterCompany/dex-transcribe-service/settings"
	"github.com/EasterCompany/dex-transcribe-service/stt"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const validateTimeout = 30 * time.Second

// Session is the part of the Discord session the commands use.
type Session interface {
	GuildLookup
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Reporter renders the status report.
type Reporter interface {
	Report(ctx context.Context) string
}

// Handler manages all bot commands
type Handler struct {
	session           Session
	settings          settings.Store
	transcriber       stt.Transcriber
	permissionChecker *PermissionChecker
	reporter          Reporter
	log               logger.Logger
	prefix            string
}

// NewHandler creates a new command handler. reporter may be nil.
func NewHandler(
	session Session,
	store settings.Store,
	transcriber stt.Transcriber,
	permissionChecker *PermissionChecker,
	reporter Reporter,
	log logger.Logger,
	prefix string,
) *Handler {
	return &Handler{
		session:           session,
		settings:          store,
		transcriber:       transcriber,
		permissionChecker: permissionChecker,
		reporter:          reporter,
		log:               log,
		prefix:            prefix,
	}
}

// MessageCreate is registered with the Discord session.
func (h *Handler) MessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleCommand(context.Background(), m)
}

// HandleCommand processes incoming commands. It reports whether m was a command.
func (h *Handler) HandleCommand(ctx context.Context, m *discordgo.MessageCreate) bool {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return false
	}
	if !strings.HasPrefix(m.Content, h.prefix) {
		return false
	}

	parts := strings.Fields(strings.TrimPrefix(m.Content, h.prefix))
	if len(parts) == 0 {
		return false
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]
	if !isKnown(command) {
		return false
	}

	if !h.permissionChecker.CanExecuteCommand(h.session, m.Message) {
		h.sendResponse(m.ChannelID, "❌ You do not have permission to execute commands.")
		h.log.Info("Permission denied", zap.String("user", m.Author.Username), zap.String("user_id", m.Author.ID), zap.String("command", command))
		return true
	}

	// The key itself is never logged.
	h.log.Info("Command executed", zap.String("user", m.Author.Username), zap.String("user_id", m.Author.ID), zap.String("command", command))

	switch command {
	case "start":
		h.handleStart(ctx, m.ChannelID)
	case "stop":
		h.handleStop(ctx, m.ChannelID)
	case "set_lang":
		h.handleSetLang(ctx, m.ChannelID, args)
	case "set_api_key":
		h.handleSetAPIKey(ctx, m.Message, args)
	case "status":
		h.handleStatus(ctx, m.ChannelID)
	case "help":
		h.handleHelp(m.ChannelID)
	}
	return true
}

func isKnown(command string) bool {
	switch command {
	case "start", "stop", "set_lang", "set_api_key", "status", "help":
		return true
	}
	return false
}

// sendResponse sends a message to a channel
func (h *Handler) sendResponse(channelID, message string) {
	if _, err := h.session.ChannelMessageSend(channelID, message); err != nil {
		h.log.Error("Failed to send command response", err)
	}
}

func (h *Handler) handleStart(ctx context.Context, channelID string) {
	snap, err := settings.Load(ctx, h.settings)
	if err != nil {
		h.log.Error("Could not load settings for start", err)
		h.sendResponse(channelID, "⚠️ Could not read the transcriber settings.")
		return
	}

	if snap.Language != "" && !language.Valid(snap.Language) {
		h.sendResponse(channelID, fmt.Sprintf("❌ Invalid language code `%s` is stored.\nSet a valid one with `%sset_lang <code>` before calling `%sstart` again.", snap.Language, h.prefix, h.prefix))
		return
	}
	if err := h.validateCredential(ctx, snap.APIKey); err != nil {
		h.sendResponse(channelID, fmt.Sprintf("❌ %s\nSet a valid API key with `%sset_api_key <key>` before calling `%sstart` again.", credentialProblem(err), h.prefix, h.prefix))
		return
	}

	if snap.Listening {
		h.sendResponse(channelID, "I'm already listening to messages.\nStart command ignored.")
		return
	}
	if err := settings.SetListening(ctx, h.settings, true); err != nil {
		h.log.Error("Could not persist listening flag", err)
		h.sendResponse(channelID, "⚠️ Could not save the listening state.")
		return
	}
	h.sendResponse(channelID, "✅ Started listening to all messages.")
}

func (h *Handler) handleStop(ctx context.Context, channelID string) {
	snap, err := settings.Load(ctx, h.settings)
	if err != nil {
		h.log.Error("Could not load settings for stop", err)
		h.sendResponse(channelID, "⚠️ Could not read the transcriber settings.")
		return
	}
	if !snap.Listening {
		h.sendResponse(channelID, "Wasn't listening to messages.\nStop command ignored.")
		return
	}
	if err := settings.SetListening(ctx, h.settings, false); err != nil {
		h.log.Error("Could not persist listening flag", err)
		h.sendResponse(channelID, "⚠️ Could not save the listening state.")
		return
	}
	h.sendResponse(channelID, "Stopped listening to messages.")
}

func (h *Handler) handleSetLang(ctx context.Context, channelID string, args []string) {
	if len(args) != 1 {
		h.sendResponse(channelID, fmt.Sprintf("Usage: `%sset_lang <ISO-639-1 code>` or `%sset_lang auto`", h.prefix, h.prefix))
		return
	}
	code := language.Normalize(args[0])
	if code == "auto" {
		if err := settings.SetLanguage(ctx, h.settings, ""); err != nil {
			h.log.Error("Could not clear language", err)
			h.sendResponse(channelID, "⚠️ Could not save the language.")
			return
		}
		h.sendResponse(channelID, "Language cleared. The transcription service will detect it.")
		return
	}

	name, ok := language.Name(code)
	if !ok {
		h.sendResponse(channelID, fmt.Sprintf("❌ Invalid language code.\nPlease provide one of the %d ISO-639-1 language codes, or `auto`.", language.Count()))
		return
	}
	if err := settings.SetLanguage(ctx, h.settings, code); err != nil {
		h.log.Error("Could not persist language", err)
		h.sendResponse(channelID, "⚠️ Could not save the language.")
		return
	}
	h.sendResponse(channelID, fmt.Sprintf("✅ Language set to %s (`%s`).\nUse the `%sstart` command to begin listening!", name, code, h.prefix))
}

func (h *Handler) handleSetAPIKey(ctx context.Context, m *discordgo.Message, args []string) {
	// Remove the key from the channel before anything else.
	if m.GuildID != "" {
		if err := h.session.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
			h.log.Error("Could not delete set_api_key message", err, zap.String("message_id", m.ID))
		}
	}

	if len(args) != 1 {
		h.sendResponse(m.ChannelID, fmt.Sprintf("Usage: `%sset_api_key <key>`", h.prefix))
		return
	}
	key := args[0]

	if err := h.validateCredential(ctx, key); err != nil {
		h.sendResponse(m.ChannelID, fmt.Sprintf("❌ %s\nAPI key not set. Please try again.", credentialProblem(err)))
		return
	}
	if err := settings.SetAPIKey(ctx, h.settings, key); err != nil {
		h.log.Error("Could not persist API key", err)
		h.sendResponse(m.ChannelID, "⚠️ Could not save the API key.")
		return
	}
	h.sendResponse(m.ChannelID, fmt.Sprintf("✅ API key %s set.\nUse the `%sstart` command to begin listening!", settings.MaskSecret(key), h.prefix))
}

func (h *Handler) handleStatus(ctx context.Context, channelID string) {
	if h.reporter == nil {
		h.sendResponse(channelID, "Status reporting is not available.")
		return
	}
	h.sendResponse(channelID, h.reporter.Report(ctx))
}

// handleHelp shows available commands
func (h *Handler) handleHelp(channelID string) {
	p := h.prefix
	help := "**Available Commands:**\n" +
		"`" + p + "start` - Start transcribing voice messages\n" +
		"`" + p + "stop` - Stop transcribing voice messages\n" +
		"`" + p + "set_lang <code>` - Set the transcript language (ISO-639-1, or `auto`)\n" +
		"`" + p + "set_api_key <key>` - Set the transcription API key\n" +
		"`" + p + "status` - Show the transcriber status\n" +
		"`" + p + "help` - Show this help message"

	h.sendResponse(channelID, help)
}

// validateCredential checks a credential with the backend when it can, otherwise only
// that one is present.
func (h *Handler) validateCredential(ctx context.Context, credential string) error {
	if credential == "" {
		return stt.ErrMissingCredential
	}
	validator, ok := h.transcriber.(stt.Validator)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	return validator.Validate(ctx, credential)
}

func credentialProblem(err error) string {
	switch {
	case errors.Is(err, stt.ErrMissingCredential):
		return "No API key is set."
	case errors.Is(err, stt.ErrModelUnavailable):
		return "The API key is valid, but does not have access to the transcription model."
	case stt.IsAuth(err):
		return "The API key was rejected."
	case stt.IsNetwork(err):
		return "Could not reach the transcription service to check the API key."
	default:
		return "The API key could not be checked."
	}
}
