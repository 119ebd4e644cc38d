package main

import (
	"context"

	"github.com/EasterCompany/dex-transcribe-service/app"
	"github.com/EasterCompany/dex-transcribe-service/config"
	"github.com/EasterCompany/dex-transcribe-service/preinit"
)

func main() {
	log := preinit.NewLogger()

	// 1. Load Configuration
	cfg, err := config.LoadAllConfigs()
	if err != nil {
		log.Fatal("Fatal error loading config", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", err)
	}
	log.Info("Configuration loaded")

	// 2. Build the application
	a, err := app.NewApp(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize the transcriber", err)
	}

	// 3. Run until interrupted
	a.Run()
}
