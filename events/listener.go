package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EasterCompany/dex-transcribe-service/audio"
	logger "github.com/EasterCompany/dex-transcribe-service/log"
	"github.com/EasterCompany/dex-transcribe-service/settings"
	"github.com/EasterCompany/dex-transcribe-service/stt"
	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultVoiceFilename = "voice-message.ogg"

// Messenger is the part of the Discord session used to answer in a channel.
type Messenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Fetcher downloads attachment bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Recorder counts listener outcomes. The status server implements it.
type Recorder interface {
	IncrementVoiceMessages()
	IncrementTranscripts()
	IncrementFailures(kind string)
}

// Listener transcribes voice messages and replies with the text.
type Listener struct {
	Settings      settings.Store
	Transcriber   stt.Transcriber
	Fetcher       Fetcher
	Messenger     Messenger
	Logger        logger.Logger
	Metrics       Recorder
	CommandPrefix string
	Timeout       time.Duration
}

// NewListener wires a listener. metrics may be nil.
func NewListener(store settings.Store, transcriber stt.Transcriber, fetcher Fetcher, messenger Messenger, log logger.Logger, metrics Recorder, prefix string, timeout time.Duration) *Listener {
	return &Listener{
		Settings:      store,
		Transcriber:   transcriber,
		Fetcher:       fetcher,
		Messenger:     messenger,
		Logger:        log,
		Metrics:       metrics,
		CommandPrefix: prefix,
		Timeout:       timeout,
	}
}

// MessageCreate is registered with the Discord session.
func (l *Listener) MessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	l.Handle(context.Background(), m)
}

// Handle decides what to do with a message and carries it out. It returns the decision.
// Settings are only read once the message carries a voice attachment.
func (l *Listener) Handle(ctx context.Context, m *discordgo.MessageCreate) Action {
	if pre := Decide(m, State{Listening: true}); pre.Kind != ActionTranscribe {
		return pre
	}

	snap, err := settings.Load(ctx, l.Settings)
	if err != nil {
		l.Logger.Error("Could not load transcriber settings", err)
		return Action{Kind: ActionIgnore, Reason: ReasonSettingsUnavailable}
	}

	action := Decide(m, State{Listening: snap.Listening})
	if action.Kind != ActionTranscribe {
		return action
	}

	for _, att := range action.Attachments {
		l.transcribeAttachment(ctx, m.Message, att, snap)
	}
	return action
}

func (l *Listener) transcribeAttachment(ctx context.Context, msg *discordgo.Message, att VoiceAttachment, snap settings.Snapshot) {
	jobID := uuid.NewString()
	fields := []zap.Field{
		zap.String("job_id", jobID),
		zap.String("channel_id", msg.ChannelID),
		zap.String("message_id", msg.ID),
		zap.String("attachment_id", att.AttachmentID),
	}
	l.Logger.Info("Voice message received", append(fields, zap.Float64("duration_secs", att.DurationSecs))...)
	if l.Metrics != nil {
		l.Metrics.IncrementVoiceMessages()
	}

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	_ = l.Messenger.ChannelTyping(msg.ChannelID)

	data, err := l.Fetcher.Fetch(ctx, att.URL)
	if err != nil {
		l.Logger.Error(fmt.Sprintf("Failed to download voice message %s", att.AttachmentID), err, fields...)
		l.fail(msg.ChannelID, "download", downloadNotice(err))
		return
	}

	info, err := audio.Inspect(data)
	if err != nil {
		l.Logger.Info("Voice message is not ogg/opus, sending it as is", append(fields, zap.Error(err))...)
	}

	filename := att.Filename
	if filename == "" {
		filename = defaultVoiceFilename
	}
	transcript, err := l.Transcriber.Transcribe(ctx, stt.Request{
		Audio:      bytes.NewReader(data),
		Filename:   filename,
		Language:   snap.Language,
		SampleRate: info.SampleRate,
		Credential: snap.APIKey,
	})
	if err != nil {
		l.Logger.Error(fmt.Sprintf("Transcription failed for voice message %s", att.AttachmentID), err, fields...)
		l.fail(msg.ChannelID, stt.KindOf(err).String(), l.errorNotice(err))
		return
	}

	chunks := splitMessage(transcript.Text, maxMessageLength)
	if len(chunks) == 0 {
		chunks = []string{noSpeechNotice}
	}
	if _, err := l.Messenger.ChannelMessageSendReply(msg.ChannelID, chunks[0], msg.Reference()); err != nil {
		l.Logger.Error("Failed to post transcript", err, fields...)
		return
	}
	for _, chunk := range chunks[1:] {
		if _, err := l.Messenger.ChannelMessageSend(msg.ChannelID, chunk); err != nil {
			l.Logger.Error("Failed to post transcript continuation", err, fields...)
			return
		}
	}
	if l.Metrics != nil {
		l.Metrics.IncrementTranscripts()
	}
	l.Logger.Info("Transcript posted", append(fields,
		zap.Int("chars", len(transcript.Text)),
		zap.String("language", transcript.Language),
		zap.Duration("audio", info.Duration),
		zap.Int("sample_rate", info.SampleRate),
		zap.Int("channels", info.Channels),
	)...)
}

func (l *Listener) fail(channelID, kind, notice string) {
	if l.Metrics != nil {
		l.Metrics.IncrementFailures(kind)
	}
	if _, err := l.Messenger.ChannelMessageSend(channelID, notice); err != nil {
		l.Logger.Error("Failed to post error notice", err)
	}
}

const noSpeechNotice = "🔇 No speech detected in this voice message."

func downloadNotice(err error) string {
	if errors.Is(err, audio.ErrTooLarge) {
		return "⚠️ This voice message is too large to transcribe."
	}
	return "⚠️ Could not download this voice message."
}

func (l *Listener) errorNotice(err error) string {
	switch stt.KindOf(err) {
	case stt.KindAuth:
		if errors.Is(err, stt.ErrMissingCredential) {
			return fmt.Sprintf("❌ No transcription API key is set. An admin needs to run `%sset_api_key <key>`.", l.CommandPrefix)
		}
		return fmt.Sprintf("❌ The transcription API key was rejected. An admin needs to run `%sset_api_key <key>`.", l.CommandPrefix)
	case stt.KindNetwork:
		return "⚠️ Could not reach the transcription service. Try again later."
	case stt.KindUpstream:
		return "⚠️ The transcription service could not process this voice message."
	default:
		return "⚠️ Error processing voice message."
	}
}
