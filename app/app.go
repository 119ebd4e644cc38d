// Package app wires every collaborator of the transcriber and runs it.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EasterCompany/dex-transcribe-service/audio"
	"github.com/EasterCompany/dex-transcribe-service/commands"
	"github.com/EasterCompany/dex-transcribe-service/config"
	"github.com/EasterCompany/dex-transcribe-service/events"
	"github.com/EasterCompany/dex-transcribe-service/health"
	logger "github.com/EasterCompany/dex-transcribe-service/log"
	"github.com/EasterCompany/dex-transcribe-service/services"
	"github.com/EasterCompany/dex-transcribe-service/session"
	"github.com/EasterCompany/dex-transcribe-service/settings"
	"github.com/EasterCompany/dex-transcribe-service/stt"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Version is reported by the status server.
var Version = "dev"

const readyTimeout = 30 * time.Second

type App struct {
	Config       *config.AllConfig
	Session      *discordgo.Session
	Logger       *logger.DiscordLogger
	Settings     settings.Store
	Transcriber  stt.Transcriber
	Listener     *events.Listener
	Commands     *commands.Handler
	StatusServer *services.StatusServer
}

// NewApp builds the application from a validated configuration.
func NewApp(ctx context.Context, cfg *config.AllConfig) (*App, error) {
	s, err := session.NewSession(cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	appLogger := logger.NewLogger(s, cfg.Discord.LogChannelID)

	store, err := settings.Open(ctx, cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s settings store: %w", cfg.Settings.Backend, err)
	}

	transcriber, err := NewTranscriber(cfg.Transcription)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second
	statusServer := services.NewStatusServer(cfg.Status.Port, Version, transcriber.Name(), appLogger)
	listener := events.NewListener(
		store,
		transcriber,
		audio.NewDownloader(timeout, cfg.Transcription.MaxAudioBytes),
		s,
		appLogger,
		statusServer,
		cfg.Discord.CommandPrefix,
		timeout,
	)
	commandHandler := commands.NewHandler(
		s,
		store,
		transcriber,
		commands.NewPermissionChecker(cfg.Discord),
		health.NewChecker(s, store, cfg.Settings.Backend, transcriber),
		appLogger,
		cfg.Discord.CommandPrefix,
	)

	return &App{
		Config:       cfg,
		Session:      s,
		Logger:       appLogger,
		Settings:     store,
		Transcriber:  transcriber,
		Listener:     listener,
		Commands:     commandHandler,
		StatusServer: statusServer,
	}, nil
}

// NewTranscriber builds the speech-to-text backend selected by the configuration.
func NewTranscriber(cfg *config.TranscriptionConfig) (stt.Transcriber, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return stt.NewOpenAI(stt.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	case config.ProviderGoogle:
		return stt.NewGoogle(), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}

// Run connects to Discord and blocks until SIGINT or SIGTERM.
func (a *App) Run() {
	a.Session.AddHandler(a.Commands.MessageCreate)
	a.Session.AddHandler(a.Listener.MessageCreate)
	a.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.Logger.Info("Connected to Discord", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})

	if err := a.Session.Open(); err != nil {
		a.Logger.Fatal("Error opening connection to Discord", err)
	}

	if err := a.StatusServer.Start(); err != nil {
		a.Logger.Error("Failed to start status server", err)
	}

	snap, err := settings.Load(context.Background(), a.Settings)
	if err != nil {
		a.Logger.Error("Failed to read settings at startup", err)
	}
	a.Logger.Info("Transcriber is running",
		zap.String("backend", a.Transcriber.Name()),
		zap.String("settings", a.Config.Settings.Backend),
		zap.Bool("listening", snap.Listening),
	)
	go a.announce(fmt.Sprintf("🎙️ Transcriber online (%s). Listening: `%t`", a.Transcriber.Name(), snap.Listening))

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	a.Shutdown()
}

// announce posts the boot notice once the log channel accepts messages.
func (a *App) announce(msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	if err := a.Logger.WaitReady(ctx); err != nil {
		a.Logger.Info("Boot notice not posted, Discord never became ready", zap.Error(err))
		return
	}
	a.Logger.Post(msg)
}

// Shutdown closes every connection the app holds.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.StatusServer.Shutdown(ctx); err != nil {
		a.Logger.Error("Error stopping status server", err)
	}
	if err := a.Session.Close(); err != nil {
		a.Logger.Error("Error closing Discord session", err)
	}
	if err := a.Settings.Close(); err != nil {
		a.Logger.Error("Error closing settings store", err)
	}
	a.Logger.Info("Transcriber shut down")
	a.Logger.Sync()
}
