package settings

import (
	"context"
	"fmt"

	"github.com/EasterCompany/dex-transcribe-service/config"
)

// Open builds the store selected by the configuration.
func Open(ctx context.Context, cfg *config.SettingsConfig) (Store, error) {
	switch cfg.Backend {
	case config.SettingsBackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case config.SettingsBackendDotenv:
		return NewDotenvStore(cfg.DotenvPath)
	case config.SettingsBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}
