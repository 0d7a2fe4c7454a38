package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/terra-hawk/smartfarm/internal/core"
	"github.com/terra-hawk/smartfarm/internal/farm/cache"
	"github.com/terra-hawk/smartfarm/internal/farm/flow"
	"github.com/terra-hawk/smartfarm/internal/farm/ledger"
	"github.com/terra-hawk/smartfarm/internal/farm/llm"
	"github.com/terra-hawk/smartfarm/internal/farm/model"
	"github.com/terra-hawk/smartfarm/internal/farm/report"
	"github.com/terra-hawk/smartfarm/internal/farm/retrieve"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
	pkgredis "github.com/terra-hawk/smartfarm/pkg/redis"
)

// AppConfig defines all configurable parameters for the daily analysis
// run, sourced from environment variables (loaded from .env for local
// runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis   pkgredis.Config
	Storage model.StorageConfig
	Cache   model.CacheConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Farm       model.FarmConfig
	Analysis   model.AnalysisModelConfig
	Reasoning  model.ReasoningModelConfig
	Checkpoint model.CheckpointConfig
	Weather    model.WeatherConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.Opts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	resultCache, err := cache.Open(envCfg.Cache.Dir)
	if err != nil {
		log.Fatalf("Failed to open result cache at %s: %v", envCfg.Cache.Dir, err)
	}
	defer resultCache.Close()

	store, err := report.NewGCSStore(ctx, envCfg.Storage.Bucket, envCfg.Storage.CredentialsFile)
	if err != nil {
		log.Fatalf("Failed to initialise report storage: %v", err)
	}
	defer store.Close()

	models, err := llm.NewChatModels(ctx,
		llm.ClientConfig{APIKey: envCfg.APIKey, BaseURL: envCfg.BaseURL},
		envCfg.Analysis, envCfg.Reasoning)
	if err != nil {
		log.Fatalf("Failed to initialise chat models: %v", err)
	}

	checkpointTimeout, err := time.ParseDuration(envCfg.Checkpoint.Timeout)
	if err != nil {
		log.Fatalf("Invalid CHECKPOINT_TIMEOUT '%s': %v", envCfg.Checkpoint.Timeout, err)
	}

	runLedger := ledger.New()
	reader := report.NewReader(store)

	pipeline := &flow.Pipeline{
		Farm:                   envCfg.Farm,
		Querier:                retrieve.NewRedisQuerier(rdb),
		Weather:                retrieve.NewWeatherClient(envCfg.Weather.Endpoint, envCfg.Weather.APIKey, resultCache),
		Analysis:               models.Analysis,
		Reasoning:              models.Reasoning,
		AnalysisExtraAttempts:  envCfg.Analysis.ExtraAttempts,
		ReasoningExtraAttempts: envCfg.Reasoning.ExtraAttempts,
		Cache:                  resultCache,
		Ledger:                 runLedger,
		Submitter:              report.NewSubmitter(store),
		History:                reader,
		Checkpoint: flow.Checkpoint{
			Source:  flow.ReaderSource{In: os.Stdin, Out: os.Stdout},
			Timeout: checkpointTimeout,
			Default: envCfg.Checkpoint.DefaultOutcome,
		},
	}

	outcome, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatalf("Analysis run failed: %v", err)
	}

	fmt.Println(outcome)
	fmt.Println(runLedger.Summary())
}
