// Package settings persists the few values an admin can change at runtime:
// the transcription API key, the transcript language and whether the bot is listening.
package settings

import (
	"context"
	"fmt"
	"strconv"
)

// Keys of the persisted settings.
const (
	KeyAPIKey    = "api_key"
	KeyLanguage  = "language"
	KeyListening = "listening"
)

// Store is a persistent key-value settings store.
type Store interface {
	// Get returns the value and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Snapshot is a read-only view of every setting, taken once per event.
type Snapshot struct {
	APIKey    string
	Language  string
	Listening bool
}

// Load reads every setting from the store.
func Load(ctx context.Context, s Store) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.APIKey, _, err = s.Get(ctx, KeyAPIKey); err != nil {
		return Snapshot{}, fmt.Errorf("could not read %s: %w", KeyAPIKey, err)
	}
	if snap.Language, _, err = s.Get(ctx, KeyLanguage); err != nil {
		return Snapshot{}, fmt.Errorf("could not read %s: %w", KeyLanguage, err)
	}
	listening, ok, err := s.Get(ctx, KeyListening)
	if err != nil {
		return Snapshot{}, fmt.Errorf("could not read %s: %w", KeyListening, err)
	}
	if ok {
		// Anything unparsable counts as not listening.
		snap.Listening, _ = strconv.ParseBool(listening)
	}
	return snap, nil
}

// SetListening persists the listening flag.
func SetListening(ctx context.Context, s Store, listening bool) error {
	return s.Set(ctx, KeyListening, strconv.FormatBool(listening))
}

// SetLanguage persists the transcript language; an empty code clears it.
func SetLanguage(ctx context.Context, s Store, code string) error {
	if code == "" {
		return s.Delete(ctx, KeyLanguage)
	}
	return s.Set(ctx, KeyLanguage, code)
}

// SetAPIKey persists the transcription API key.
func SetAPIKey(ctx context.Context, s Store, key string) error {
	return s.Set(ctx, KeyAPIKey, key)
}

// MaskSecret hides all but the last four characters of a credential.
func MaskSecret(secret string) string {
	if secret == "" {
		return "`Not Set`"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
