package log

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// maxDiscordLogLength keeps mirrored log lines under Discord's 2000 character limit.
const maxDiscordLogLength = 1900

// Logger is the logging surface shared by every component.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(context string, err error, fields ...zap.Field)
	Fatal(context string, err error)
	Post(msg string)
}

// channelPoster is the part of the Discord session the logger needs.
type channelPoster interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordLogger writes structured logs to the console and mirrors errors to a Discord channel.
type DiscordLogger struct {
	zl           *zap.Logger
	poster       channelPoster
	logChannelID string
	ready        chan struct{}
	readyOnce    sync.Once
}

// NewLogger creates a logger bound to the session. Messages are only mirrored to Discord
// once the session has received its Ready event.
func NewLogger(s *discordgo.Session, channelID string) *DiscordLogger {
	if s == nil {
		return newLogger(nil, channelID, newConsoleLogger())
	}
	l := newLogger(s, channelID, newConsoleLogger())
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
		l.markReady()
	})
	return l
}

// Nop returns a logger that discards everything.
func Nop() *DiscordLogger {
	return newLogger(nil, "", zap.NewNop())
}

func newLogger(poster channelPoster, channelID string, zl *zap.Logger) *DiscordLogger {
	return &DiscordLogger{
		zl:           zl,
		poster:       poster,
		logChannelID: channelID,
		ready:        make(chan struct{}),
	}
}

func newConsoleLogger() *zap.Logger {
	zl, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return zl
}

func (l *DiscordLogger) markReady() {
	l.readyOnce.Do(func() { close(l.ready) })
}

// WaitReady blocks until the session has received its Ready event or ctx is done.
func (l *DiscordLogger) WaitReady(ctx context.Context) error {
	select {
	case <-l.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info logs an informational message to the console only.
func (l *DiscordLogger) Info(msg string, fields ...zap.Field) {
	l.zl.Info(msg, fields...)
}

// Error logs an error to the console and to the Discord log channel.
func (l *DiscordLogger) Error(context string, err error, fields ...zap.Field) {
	l.zl.Error(context, append(fields, zap.Error(err))...)
	l.Post(codeBlock(fmt.Sprintf("[ERROR] %s\n%v", context, err)))
}

// Fatal logs an error and then exits the program.
func (l *DiscordLogger) Fatal(context string, err error) {
	l.Post(codeBlock(fmt.Sprintf("[FATAL] %s\n%v", context, err)))
	l.zl.Fatal(context, zap.Error(err))
}

// Post sends a message to the log channel. It is dropped when the session is not ready yet.
func (l *DiscordLogger) Post(msg string) {
	if l.poster == nil || l.logChannelID == "" {
		return
	}
	select {
	case <-l.ready:
	default:
		return
	}
	msg = truncate(msg, maxDiscordLogLength)
	if _, err := l.poster.ChannelMessageSend(l.logChannelID, msg); err != nil {
		l.zl.Warn("could not mirror log line to discord", zap.Error(err))
	}
}

// codeBlock fences text, truncating the text so the closing fence survives.
func codeBlock(text string) string {
	const fence = "```"
	limit := maxDiscordLogLength - 2*len(fence+"\n") - len(ellipsis)
	return fence + "\n" + truncate(text, limit) + "\n" + fence
}

const ellipsis = "..."

// truncate cuts s to at most limit bytes plus an ellipsis without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

// Sync flushes buffered console output.
func (l *DiscordLogger) Sync() {
	_ = l.zl.Sync()
}
