package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/terra-hawk/smartfarm/internal/api"
	"github.com/terra-hawk/smartfarm/internal/core"
	"github.com/terra-hawk/smartfarm/internal/farm/model"
	"github.com/terra-hawk/smartfarm/internal/farm/report"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// APIConfig defines the configurable parameters for the reports API,
// sourced from environment variables.
type APIConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	ListenAddr  string `envconfig:"API_LISTEN_ADDR" default:":8080"`

	Storage model.StorageConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg APIConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.Opts{Environment: core.ParseEnvironment(envCfg.Environment)})

	store, err := report.NewGCSStore(ctx, envCfg.Storage.Bucket, envCfg.Storage.CredentialsFile)
	if err != nil {
		log.Fatalf("Failed to initialise report storage: %v", err)
	}
	defer store.Close()

	server := api.NewServer(report.NewReader(store))

	logx.Info().Str("addr", envCfg.ListenAddr).Msg("reports api listening")
	if err := server.Router().Run(envCfg.ListenAddr); err != nil {
		log.Fatalf("Reports API stopped: %v", err)
	}
}
