// Package events reacts to Discord messages that carry voice messages.
package events

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ActionKind is what the listener decided to do with a message.
type ActionKind int

const (
	ActionIgnore ActionKind = iota
	ActionTranscribe
)

func (k ActionKind) String() string {
	if k == ActionTranscribe {
		return "transcribe"
	}
	return "ignore"
}

// Reasons a message is ignored.
const (
	ReasonNoAuthor       = "no author"
	ReasonBotAuthor      = "author is a bot"
	ReasonNotListening   = "not listening"
	ReasonNoAttachments  = "no attachments"
	ReasonNoVoiceMessage = "no voice message attachment"

	ReasonSettingsUnavailable = "settings unavailable"
)

// VoiceAttachment is the part of an attachment the transcriber needs.
type VoiceAttachment struct {
	AttachmentID string
	URL          string
	Filename     string
	ContentType  string
	Size         int
	DurationSecs float64
}

// Action is the outcome of Decide.
type Action struct {
	Kind        ActionKind
	Reason      string
	Attachments []VoiceAttachment
}

// State is the listener state Decide depends on.
type State struct {
	Listening bool
}

// Decide inspects a message event and returns what should happen. It performs no I/O.
// The listening state is checked last so callers can filter before reading it.
func Decide(m *discordgo.MessageCreate, st State) Action {
	if m == nil || m.Message == nil || m.Author == nil {
		return Action{Kind: ActionIgnore, Reason: ReasonNoAuthor}
	}
	if m.Author.Bot {
		return Action{Kind: ActionIgnore, Reason: ReasonBotAuthor}
	}
	if len(m.Attachments) == 0 {
		return Action{Kind: ActionIgnore, Reason: ReasonNoAttachments}
	}

	var voice []VoiceAttachment
	for _, a := range m.Attachments {
		if !IsVoiceMessage(m.Message, a) {
			continue
		}
		voice = append(voice, VoiceAttachment{
			AttachmentID: a.ID,
			URL:          a.URL,
			Filename:     a.Filename,
			ContentType:  a.ContentType,
			Size:         a.Size,
			DurationSecs: a.DurationSecs,
		})
	}
	if len(voice) == 0 {
		return Action{Kind: ActionIgnore, Reason: ReasonNoVoiceMessage}
	}
	if !st.Listening {
		return Action{Kind: ActionIgnore, Reason: ReasonNotListening}
	}
	return Action{Kind: ActionTranscribe, Attachments: voice}
}

// IsVoiceMessage reports whether the attachment is a recorded voice message rather than
// an uploaded file. Discord flags the message and adds a waveform and duration to the audio.
func IsVoiceMessage(msg *discordgo.Message, a *discordgo.MessageAttachment) bool {
	if a == nil || a.URL == "" {
		return false
	}
	contentType := strings.ToLower(a.ContentType)
	isAudio := strings.HasPrefix(contentType, "audio/")
	if msg != nil && msg.Flags&discordgo.MessageFlagsIsVoiceMessage != 0 {
		return isAudio || contentType == ""
	}
	return isAudio && (a.DurationSecs > 0 || a.Waveform != "")
}
