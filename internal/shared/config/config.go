package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultOpenAIModel    = "gpt-4-turbo-preview"
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string `validate:"oneof=dev local staging production"`

	LLMProvider     string        `validate:"oneof=openai anthropic"`
	LLMModel        string        `validate:"required"`
	OpenAIAPIKey    string
	OpenAIBaseURL   string        `validate:"omitempty,url"`
	AnthropicAPIKey string
	LLMTimeout      time.Duration `validate:"gt=0"`
	LLMRepairJSON   bool

	MaxUploadBytes int64 `validate:"gt=0"`

	ObjectStoreType string `validate:"oneof=local s3"`
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string `validate:"required_if=ObjectStoreType s3"`
	S3Prefix        string
	SSEKMSKeyID     string
	UploadsBucket   string `validate:"omitempty,eqfield=S3Bucket"`
	UploadsPrefix   string

	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	provider := NormalizeProvider(getEnv("LLM_PROVIDER", ProviderOpenAI))
	return Config{
		Port:            getEnv("PORT", "3001"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		LLMProvider:     provider,
		LLMModel:        getEnv("LLM_MODEL", DefaultModel(provider)),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		LLMRepairJSON:   getEnvBool("LLM_REPAIR_JSON", true),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		UploadsBucket:   getEnv("UPLOADS_S3_BUCKET", ""),
		UploadsPrefix:   getEnv("UPLOADS_S3_PREFIX", "documents/"),
		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

var validate = validator.New()

// Validate checks structural constraints. Missing API keys are not an error
// here; they surface per request as a configuration error.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// APIKey returns the credential for the configured provider.
func (c Config) APIKey() string {
	if c.LLMProvider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// DefaultModel is the model used when LLM_MODEL is unset.
func DefaultModel(provider string) string {
	if provider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

// NormalizeProvider maps provider aliases onto ProviderOpenAI or ProviderAnthropic.
func NormalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "anthropic", "claude":
		return ProviderAnthropic
	default:
		return ProviderOpenAI
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
