package config

// AllConfig is the complete service configuration as stored in transcriber.json.
type AllConfig struct {
	Discord       *DiscordConfig       `json:"discord"`
	Settings      *SettingsConfig      `json:"settings"`
	Transcription *TranscriptionConfig `json:"transcription"`
	Status        *StatusConfig        `json:"status"`
}

// DiscordConfig holds Discord-specific settings
type DiscordConfig struct {
	Token         string     `json:"token"`
	LogChannelID  string     `json:"log_channel_id"`
	CommandPrefix string     `json:"command_prefix"`
	Roles         RoleConfig `json:"roles"`
	UserWhitelist []string   `json:"user_whitelist"`
}

// RoleConfig holds the role IDs allowed to run admin commands.
type RoleConfig struct {
	Admin []string `json:"admin"`
}

// ConnectionConfig describes a Redis connection.
type ConnectionConfig struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SettingsConfig selects where persisted settings (API key, language, listening) live.
type SettingsConfig struct {
	Backend    string            `json:"backend"` // "redis", "dotenv" or "memory"
	Redis      *ConnectionConfig `json:"redis"`
	DotenvPath string            `json:"dotenv_path"`
}

// TranscriptionConfig configures the speech-to-text backend.
type TranscriptionConfig struct {
	Provider       string `json:"provider"` // "openai" or "google"
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxAudioBytes  int64  `json:"max_audio_bytes"`
}

// StatusConfig configures the local HTTP status server. Port 0 disables it.
type StatusConfig struct {
	Port int `json:"port"`
}

const (
	SettingsBackendRedis  = "redis"
	SettingsBackendDotenv = "dotenv"
	SettingsBackendMemory = "memory"

	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// Default returns the configuration written on first run.
func Default() *AllConfig {
	return &AllConfig{
		Discord: &DiscordConfig{
			CommandPrefix: "!",
		},
		Settings: &SettingsConfig{
			Backend:    SettingsBackendDotenv,
			Redis:      &ConnectionConfig{Addr: "localhost:6379"},
			DotenvPath: ".env",
		},
		Transcription: &TranscriptionConfig{
			Provider:       ProviderOpenAI,
			BaseURL:        "https://api.openai.com/v1",
			Model:          "whisper-1",
			TimeoutSeconds: 120,
			MaxAudioBytes:  25 * 1024 * 1024,
		},
		Status: &StatusConfig{},
	}
}
