package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const configFileName = "transcriber.json"

// Re-assigned in tests.
var osUserHomeDir = os.UserHomeDir

// expandPath resolves paths like "~/" to the user's home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := osUserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// getConfigPath constructs the full path to a config file in ~/Dexter/config.
func getConfigPath(filename string) (string, error) {
	return expandPath(filepath.Join("~/Dexter/config", filename))
}

// LoadAllConfigs loads transcriber.json, creating it with defaults when it does not exist,
// and then applies .env and environment overrides.
func LoadAllConfigs() (*AllConfig, error) {
	path, err := getConfigPath(configFileName)
	if err != nil {
		return nil, fmt.Errorf("could not get config path for %s: %w", configFileName, err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("could not read config file %s: %w", configFileName, err)
	default:
		loaded := &AllConfig{}
		if err := json.Unmarshal(data, loaded); err != nil {
			return nil, fmt.Errorf("could not decode config file %s: %w", configFileName, err)
		}
		cfg = mergeDefaults(loaded)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string, cfg *AllConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write default config file %s: %w", configFileName, err)
	}
	return nil
}

// mergeDefaults fills every section or field left empty in the file.
func mergeDefaults(cfg *AllConfig) *AllConfig {
	def := Default()
	if cfg.Discord == nil {
		cfg.Discord = def.Discord
	}
	if cfg.Discord.CommandPrefix == "" {
		cfg.Discord.CommandPrefix = def.Discord.CommandPrefix
	}
	if cfg.Settings == nil {
		cfg.Settings = def.Settings
	}
	if cfg.Settings.Backend == "" {
		cfg.Settings.Backend = def.Settings.Backend
	}
	if cfg.Settings.Redis == nil {
		cfg.Settings.Redis = def.Settings.Redis
	}
	if cfg.Settings.DotenvPath == "" {
		cfg.Settings.DotenvPath = def.Settings.DotenvPath
	}
	if cfg.Transcription == nil {
		cfg.Transcription = def.Transcription
	}
	t := cfg.Transcription
	if t.Provider == "" {
		t.Provider = def.Transcription.Provider
	}
	if t.BaseURL == "" && t.Provider == ProviderOpenAI {
		t.BaseURL = def.Transcription.BaseURL
	}
	if t.Model == "" && t.Provider == ProviderOpenAI {
		t.Model = def.Transcription.Model
	}
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = def.Transcription.TimeoutSeconds
	}
	if t.MaxAudioBytes <= 0 {
		t.MaxAudioBytes = def.Transcription.MaxAudioBytes
	}
	if cfg.Status == nil {
		cfg.Status = def.Status
	}
	return cfg
}

// applyEnvOverrides loads ./.env (when present) into the process environment and lets
// environment variables override the file.
func applyEnvOverrides(cfg *AllConfig) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("could not load .env: %w", err)
		}
	}

	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_LOG_CHANNEL_ID"); v != "" {
		cfg.Discord.LogChannelID = v
	}
	if v := os.Getenv("TRANSCRIBER_PROVIDER"); v != "" {
		cfg.Transcription.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Transcription.BaseURL = v
	}
	if v := os.Getenv("SETTINGS_BACKEND"); v != "" {
		cfg.Settings.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Settings.Redis.Addr = v
	}
	if v := os.Getenv("STATUS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STATUS_PORT %q: %w", v, err)
		}
		cfg.Status.Port = port
	}
	return nil
}

// Validate reports configuration that would prevent the service from starting.
func (c *AllConfig) Validate() error {
	if c.Discord == nil || c.Discord.Token == "" {
		return errors.New("discord token is not set")
	}
	switch c.Settings.Backend {
	case SettingsBackendRedis:
		if c.Settings.Redis == nil || c.Settings.Redis.Addr == "" {
			return errors.New("settings backend is redis but no redis address is configured")
		}
	case SettingsBackendDotenv, SettingsBackendMemory:
	default:
		return fmt.Errorf("unknown settings backend %q", c.Settings.Backend)
	}
	switch c.Transcription.Provider {
	case ProviderOpenAI, ProviderGoogle:
	default:
		return fmt.Errorf("unknown transcription provider %q", c.Transcription.Provider)
	}
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("invalid status port %d", c.Status.Port)
	}
	return nil
}
