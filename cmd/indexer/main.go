package main

import (
	"ammindex/internal/app"
	"ammindex/internal/config"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional, real env wins
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG")
	if cfgPath == "" {
		cfgPath = "cmd/indexer/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed load config, error=%v", err)
	}

	if err = app.Run(cfg); err != nil {
		log.Fatalf("App run is failed, error=%v", err)
	}
}
