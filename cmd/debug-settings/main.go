package main

import (
	"context"
	"fmt"
	"log"

	"github.com/EasterCompany/dex-transcribe-service/config"
	"github.com/EasterCompany/dex-transcribe-service/settings"
)

type keyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadAllConfigs()
	if err != nil {
		log.Fatalf("Fatal error loading config: %v", err)
	}

	store, err := settings.Open(ctx, cfg.Settings)
	if err != nil {
		log.Fatalf("Failed to open %s settings store: %v", cfg.Settings.Backend, err)
	}
	defer func() { _ = store.Close() }()

	fmt.Printf("--- Settings (%s) ---\n", cfg.Settings.Backend)
	snap, err := settings.Load(ctx, store)
	if err != nil {
		log.Fatalf("Failed to read settings: %v", err)
	}
	fmt.Printf("%s: %s\n", settings.KeyAPIKey, settings.MaskSecret(snap.APIKey))
	fmt.Printf("%s: %q\n", settings.KeyLanguage, snap.Language)
	fmt.Printf("%s: %t\n", settings.KeyListening, snap.Listening)

	lister, ok := store.(keyLister)
	if !ok {
		return
	}
	keys, err := lister.Keys(ctx)
	if err != nil {
		log.Fatalf("Failed to get keys: %v", err)
	}
	fmt.Printf("\n--- Stored keys ---\n")
	for _, key := range keys {
		fmt.Printf("  - %s\n", key)
	}
}
