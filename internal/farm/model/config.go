package model

// ================ Config ================

// StorageConfig identifies the report bucket.
type StorageConfig struct {
	Bucket          string `envconfig:"STORAGE_BUCKET" required:"true"`
	Region          string `envconfig:"STORAGE_REGION" default:"europe-west1"`
	CredentialsFile string `envconfig:"STORAGE_CREDENTIALS_FILE"`
}

// FarmConfig scopes a run to one farm.
type FarmConfig struct {
	ID       string `envconfig:"FARM_ID" default:"FARM-001"`
	Location string `envconfig:"FARM_LOCATION" default:"Eindhoven"`
}

// AnalysisModelConfig configures the standard analysis model.
type AnalysisModelConfig struct {
	Model         string  `envconfig:"ANALYSIS_MODEL" default:"gemini-2.5-flash"`
	MaxTokens     int     `envconfig:"ANALYSIS_MAX_TOKENS" default:"4000"`
	Temperature   float32 `envconfig:"ANALYSIS_TEMPERATURE" default:"0.2"`
	ExtraAttempts int     `envconfig:"ANALYSIS_EXTRA_ATTEMPTS" default:"2"`
}

// ReasoningModelConfig configures the model used by the compliance and
// aggregation stages, which get a thinking budget and extra retry attempts.
type ReasoningModelConfig struct {
	Model          string  `envconfig:"REASONING_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"REASONING_MAX_TOKENS" default:"8000"`
	Temperature    float32 `envconfig:"REASONING_TEMPERATURE" default:"0.1"`
	ThinkingBudget int32   `envconfig:"REASONING_THINKING_BUDGET" default:"2000"`
	ExtraAttempts  int     `envconfig:"REASONING_EXTRA_ATTEMPTS" default:"2"`
}

// CheckpointConfig drives the human-feedback checkpoint.
type CheckpointConfig struct {
	Timeout        string `envconfig:"CHECKPOINT_TIMEOUT" default:"5m"`
	DefaultOutcome string `envconfig:"CHECKPOINT_DEFAULT_OUTCOME" default:"no"`
}

// CacheConfig locates the durable result cache.
type CacheConfig struct {
	Dir string `envconfig:"CACHE_DIR" default:".smartfarm_cache"`
}

// WeatherConfig configures the current-conditions provider.
type WeatherConfig struct {
	Endpoint string `envconfig:"WEATHER_API_ENDPOINT" default:"http://api.weatherapi.com/v1/current.json"`
	APIKey   string `envconfig:"WEATHER_API_KEY"`
}
