package events

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	logger "github.com/EasterCompany/dex-transcribe-service/log"
	"github.com/EasterCompany/dex-transcribe-service/settings"
	"github.com/EasterCompany/dex-transcribe-service/stt"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	channelID string
	content   string
	replyTo   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeMessenger) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeMessenger) ChannelMessageSendReply(channelID string, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content, replyTo: ref.MessageID})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeMessenger) ChannelTyping(string, ...discordgo.RequestOption) error { return nil }

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeTranscriber struct {
	text     string
	err      error
	calls    int
	lastReq  stt.Request
	lastBody []byte
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(_ context.Context, req stt.Request) (stt.Transcript, error) {
	f.calls++
	f.lastReq = req
	f.lastBody, _ = io.ReadAll(req.Audio)
	if f.err != nil {
		return stt.Transcript{}, f.err
	}
	return stt.Transcript{Text: f.text}, nil
}

type fakeMetrics struct {
	voice, transcripts int
	failures           []string
}

func (f *fakeMetrics) IncrementVoiceMessages()       { f.voice++ }
func (f *fakeMetrics) IncrementTranscripts()         { f.transcripts++ }
func (f *fakeMetrics) IncrementFailures(kind string) { f.failures = append(f.failures, kind) }

type harness struct {
	listener    *Listener
	store       *settings.MemoryStore
	messenger   *fakeMessenger
	fetcher     *fakeFetcher
	transcriber *fakeTranscriber
	metrics     *fakeMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:       settings.NewMemoryStore(),
		messenger:   &fakeMessenger{},
		fetcher:     &fakeFetcher{data: []byte("OggS-audio")},
		transcriber: &fakeTranscriber{text: "hello world"},
		metrics:     &fakeMetrics{},
	}
	ctx := context.Background()
	require.NoError(t, settings.SetAPIKey(ctx, h.store, "sk-test"))
	require.NoError(t, settings.SetLanguage(ctx, h.store, "en"))
	require.NoError(t, settings.SetListening(ctx, h.store, true))
	h.listener = NewListener(h.store, h.transcriber, h.fetcher, h.messenger, logger.Nop(), h.metrics, "!", 0)
	return h
}

func voiceMessage() *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Author:    &discordgo.User{ID: "user-1", Username: "alice"},
		Flags:     discordgo.MessageFlagsIsVoiceMessage,
		Attachments: []*discordgo.MessageAttachment{{
			ID:           "att-1",
			URL:          "https://cdn.discordapp.com/attachments/chan-1/att-1/voice-message.ogg",
			Filename:     "voice-message.ogg",
			ContentType:  "audio/ogg",
			DurationSecs: 3.2,
			Waveform:     "AAAA",
		}},
	}}
}

func TestHandle_NoAttachmentsMakesNoCall(t *testing.T) {
	h := newHarness(t)
	m := voiceMessage()
	m.Attachments = nil
	m.Flags = 0

	action := h.listener.Handle(context.Background(), m)

	assert.Equal(t, ActionIgnore, action.Kind)
	assert.Equal(t, ReasonNoAttachments, action.Reason)
	assert.Zero(t, h.fetcher.calls)
	assert.Zero(t, h.transcriber.calls)
	assert.Empty(t, h.messenger.sent)
}

func TestHandle_NonVoiceAttachmentMakesNoCall(t *testing.T) {
	h := newHarness(t)
	m := voiceMessage()
	m.Flags = 0
	m.Attachments = []*discordgo.MessageAttachment{{
		ID: "att-2", URL: "https://cdn.discordapp.com/cat.png", Filename: "cat.png", ContentType: "image/png",
	}}

	action := h.listener.Handle(context.Background(), m)

	assert.Equal(t, ReasonNoVoiceMessage, action.Reason)
	assert.Zero(t, h.fetcher.calls)
	assert.Zero(t, h.transcriber.calls)
	assert.Empty(t, h.messenger.sent)
}

func TestHandle_RepliesWithExactTranscript(t *testing.T) {
	h := newHarness(t)

	action := h.listener.Handle(context.Background(), voiceMessage())

	assert.Equal(t, ActionTranscribe, action.Kind)
	require.Len(t, h.messenger.sent, 1)
	assert.Equal(t, sentMessage{channelID: "chan-1", content: "hello world", replyTo: "msg-1"}, h.messenger.sent[0])

	assert.Equal(t, "sk-test", h.transcriber.lastReq.Credential)
	assert.Equal(t, "en", h.transcriber.lastReq.Language)
	assert.Equal(t, "voice-message.ogg", h.transcriber.lastReq.Filename)
	assert.Equal(t, []byte("OggS-audio"), h.transcriber.lastBody)
	assert.Equal(t, 1, h.metrics.voice)
	assert.Equal(t, 1, h.metrics.transcripts)
}

func TestHandle_AuthErrorPostsNoticeNotTranscript(t *testing.T) {
	h := newHarness(t)
	h.transcriber.err = &stt.Error{Kind: stt.KindAuth, Op: "test", StatusCode: 401, Err: errors.New("invalid key")}

	h.listener.Handle(context.Background(), voiceMessage())

	require.Len(t, h.messenger.sent, 1)
	notice := h.messenger.sent[0]
	assert.Empty(t, notice.replyTo)
	assert.Contains(t, notice.content, "API key was rejected")
	assert.Contains(t, notice.content, "!set_api_key")
	assert.NotContains(t, notice.content, "hello world")
	assert.Equal(t, []string{"AuthError"}, h.metrics.failures)
	assert.Zero(t, h.metrics.transcripts)
}

func TestHandle_MissingCredentialNotice(t *testing.T) {
	h := newHarness(t)
	h.transcriber.err = &stt.Error{Kind: stt.KindAuth, Op: "test", Err: stt.ErrMissingCredential}

	h.listener.Handle(context.Background(), voiceMessage())

	require.Len(t, h.messenger.sent, 1)
	assert.Contains(t, h.messenger.sent[0].content, "No transcription API key is set")
}

func TestHandle_ErrorNotices(t *testing.T) {
	tests := []struct {
		kind stt.Kind
		want string
	}{
		{stt.KindNetwork, "Could not reach the transcription service"},
		{stt.KindUpstream, "could not process this voice message"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			h := newHarness(t)
			h.transcriber.err = &stt.Error{Kind: tt.kind, Op: "test", Err: errors.New("boom")}

			h.listener.Handle(context.Background(), voiceMessage())

			require.Len(t, h.messenger.sent, 1)
			assert.Contains(t, h.messenger.sent[0].content, tt.want)
			assert.Equal(t, []string{tt.kind.String()}, h.metrics.failures)
		})
	}
}

func TestHandle_DownloadFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = errors.New("cdn down")

	h.listener.Handle(context.Background(), voiceMessage())

	assert.Zero(t, h.transcriber.calls)
	require.Len(t, h.messenger.sent, 1)
	assert.Contains(t, h.messenger.sent[0].content, "Could not download")
	assert.Equal(t, []string{"download"}, h.metrics.failures)
}

func TestHandle_EmptyTranscript(t *testing.T) {
	h := newHarness(t)
	h.transcriber.text = "   "

	h.listener.Handle(context.Background(), voiceMessage())

	require.Len(t, h.messenger.sent, 1)
	assert.Equal(t, noSpeechNotice, h.messenger.sent[0].content)
}

func TestHandle_LongTranscriptIsSplit(t *testing.T) {
	h := newHarness(t)
	h.transcriber.text = strings.Repeat("word ", 900)

	h.listener.Handle(context.Background(), voiceMessage())

	require.Len(t, h.messenger.sent, 3)
	assert.Equal(t, "msg-1", h.messenger.sent[0].replyTo)
	for _, m := range h.messenger.sent {
		assert.LessOrEqual(t, len([]rune(m.content)), maxMessageLength)
	}
}

func TestHandle_NotListening(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, settings.SetListening(context.Background(), h.store, false))

	action := h.listener.Handle(context.Background(), voiceMessage())

	assert.Equal(t, ReasonNotListening, action.Reason)
	assert.Zero(t, h.transcriber.calls)
}

func TestHandle_TwiceGivesSameTranscript(t *testing.T) {
	h := newHarness(t)

	h.listener.Handle(context.Background(), voiceMessage())
	h.listener.Handle(context.Background(), voiceMessage())

	require.Len(t, h.messenger.sent, 2)
	assert.Equal(t, h.messenger.sent[0], h.messenger.sent[1])
}

type countingStore struct {
	*settings.MemoryStore
	reads int
	err   error
}

func (c *countingStore) Get(ctx context.Context, key string) (string, bool, error) {
	c.reads++
	if c.err != nil {
		return "", false, c.err
	}
	return c.MemoryStore.Get(ctx, key)
}

func TestHandle_FiltersBeforeReadingSettings(t *testing.T) {
	h := newHarness(t)
	store := &countingStore{MemoryStore: h.store}
	h.listener.Settings = store

	text := voiceMessage()
	text.Flags = 0
	text.Attachments = nil
	text.Content = "just chatting"
	h.listener.Handle(context.Background(), text)

	reply := voiceMessage()
	reply.Author.Bot = true
	reply.Attachments = nil
	h.listener.Handle(context.Background(), reply)

	botVoice := voiceMessage()
	botVoice.Author.Bot = true
	h.listener.Handle(context.Background(), botVoice)

	assert.Zero(t, store.reads)
	assert.Zero(t, h.transcriber.calls)
}

func TestHandle_UnavailableSettingsOnlyMatterForVoice(t *testing.T) {
	h := newHarness(t)
	store := &countingStore{MemoryStore: h.store, err: errors.New("redis: connection refused")}
	h.listener.Settings = store

	text := voiceMessage()
	text.Attachments = nil
	action := h.listener.Handle(context.Background(), text)
	assert.Equal(t, ReasonNoAttachments, action.Reason)
	assert.Zero(t, store.reads)

	action = h.listener.Handle(context.Background(), voiceMessage())
	assert.Equal(t, ReasonSettingsUnavailable, action.Reason)
	assert.Positive(t, store.reads)
	assert.Zero(t, h.transcriber.calls)
	assert.Empty(t, h.messenger.sent)
}

type recordingLogger struct {
	infos map[string][]zap.Field
}

func (r *recordingLogger) Info(msg string, fields ...zap.Field) {
	if r.infos == nil {
		r.infos = make(map[string][]zap.Field)
	}
	r.infos[msg] = fields
}

func (r *recordingLogger) Error(string, error, ...zap.Field) {}
func (r *recordingLogger) Fatal(string, error)               {}
func (r *recordingLogger) Post(string)                       {}

func TestHandle_LogsAudioDetails(t *testing.T) {
	h := newHarness(t)
	rec := &recordingLogger{}
	h.listener.Logger = rec

	h.listener.Handle(context.Background(), voiceMessage())

	fields, ok := rec.infos["Transcript posted"]
	require.True(t, ok)
	keys := make(map[string]bool)
	for _, f := range fields {
		keys[f.Key] = true
	}
	for _, key := range []string{"job_id", "attachment_id", "sample_rate", "channels", "audio"} {
		assert.True(t, keys[key], key)
	}
}
