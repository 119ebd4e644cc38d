// Package health renders the status report posted by the status command.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EasterCompany/dex-transcribe-service/language"
	"github.com/EasterCompany/dex-transcribe-service/settings"
	"github.com/EasterCompany/dex-transcribe-service/stt"
	"github.com/EasterCompany/dex-transcribe-service/system"
	"github.com/bwmarrin/discordgo"
)

const pingTimeout = 5 * time.Second

// GetDiscordStatus returns the status of the Discord connection as a formatted string.
func GetDiscordStatus(s *discordgo.Session) string {
	if s == nil {
		return "**ERROR**: `No session`"
	}
	if s.DataReady {
		return "**OK**"
	}
	return "**ERROR**: `Not connected`"
}

// GetSettingsStatus pings the settings store and returns its status as a formatted string.
func GetSettingsStatus(ctx context.Context, store settings.Store, backend string) string {
	if store == nil {
		return "**ERROR**: `Initialization failed`"
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return fmt.Sprintf("**ERROR** (%s): `%v`", backend, err)
	}
	return fmt.Sprintf("**OK** (%s)", backend)
}

// GetSTTStatus returns the name of the transcription backend as a formatted string.
func GetSTTStatus(t stt.Transcriber) string {
	if t == nil {
		return "**ERROR**: `Initialization failed`"
	}
	return fmt.Sprintf("**OK** (%s)", t.Name())
}

// Checker builds the status report.
type Checker struct {
	Session     *discordgo.Session
	Settings    settings.Store
	Backend     string
	Transcriber stt.Transcriber
	Usage       func(ctx context.Context) (system.Usage, error)
}

// NewChecker creates a checker that reads host usage through gopsutil.
func NewChecker(s *discordgo.Session, store settings.Store, backend string, t stt.Transcriber) *Checker {
	return &Checker{
		Session:     s,
		Settings:    store,
		Backend:     backend,
		Transcriber: t,
		Usage:       system.GetUsage,
	}
}

// Report renders the status of every dependency and the current settings.
func (c *Checker) Report(ctx context.Context) string {
	lines := []string{"**System Status**"}
	if c.Usage != nil {
		if u, err := c.Usage(ctx); err != nil {
			lines = append(lines, fmt.Sprintf("💻 Host: **ERROR**: `%v`", err))
		} else {
			lines = append(lines,
				fmt.Sprintf("💻 CPU: `%.2f%%`", u.CPUPercent),
				fmt.Sprintf("🧠 Memory: `%.2f%%` (`%.0f/%.0f MB`)", u.MemoryPercent, u.MemoryUsedMB, u.MemoryTotalMB),
			)
		}
	}

	lines = append(lines,
		"",
		"**Service Status**",
		fmt.Sprintf("🤖 Discord: %s", GetDiscordStatus(c.Session)),
		fmt.Sprintf("🗄️ Settings: %s", GetSettingsStatus(ctx, c.Settings, c.Backend)),
		fmt.Sprintf("🎙️ Transcriber: %s", GetSTTStatus(c.Transcriber)),
		"",
		"**Transcriber Settings**",
	)

	snap, err := settings.Load(ctx, c.Settings)
	if err != nil {
		lines = append(lines, fmt.Sprintf("**ERROR**: `%v`", err))
		return strings.Join(lines, "\n")
	}
	lines = append(lines,
		fmt.Sprintf("🔑 API key: %s", settings.MaskSecret(snap.APIKey)),
		fmt.Sprintf("🌐 Language: %s", formatLanguage(snap.Language)),
		fmt.Sprintf("👂 Listening: `%t`", snap.Listening),
	)
	return strings.Join(lines, "\n")
}

func formatLanguage(code string) string {
	if code == "" {
		return "`auto`"
	}
	if name, ok := language.Name(code); ok {
		return fmt.Sprintf("%s (`%s`)", name, code)
	}
	return fmt.Sprintf("**INVALID** `%s`", code)
}
