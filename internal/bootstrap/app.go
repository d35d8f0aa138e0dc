package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"research-portal/internal/documents"
	"research-portal/internal/earnings"
	"research-portal/internal/financial"
	"research-portal/internal/llm"
	"research-portal/internal/llm/anthropic"
	"research-portal/internal/llm/openai"
	"research-portal/internal/shared/config"
	"research-portal/internal/shared/server"
	"research-portal/internal/shared/server/middleware"
	"research-portal/internal/shared/storage/object"
	localstore "research-portal/internal/shared/storage/object/local"
	s3store "research-portal/internal/shared/storage/object/s3"
	"research-portal/internal/shared/telemetry"
	"research-portal/internal/uploads"
)

// App holds shared dependencies and the HTTP router.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	Store            object.ObjectStore
	LLM              llm.Client
	DocumentsService *documents.Service
	DocumentsHandler *documents.Handler
	UploadsHandler   *uploads.Handler
}

// Option adjusts Build.
type Option func(*options)

type options struct {
	llm llm.Client
}

// WithLLM replaces the provider client built from configuration. The client
// is still wrapped with the timeout and instrumentation decorators.
func WithLLM(c llm.Client) Option {
	return func(o *options) { o.llm = c }
}

// Build fills configuration defaults, validates them and wires every
// dependency. A missing API key does not fail Build; processing requests
// report it instead.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg = withDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := o.llm
	if client == nil {
		client = NewLLM(cfg)
	}
	client = llm.Instrument(llm.WithTimeout(client, cfg.LLMTimeout), cfg.LLMProvider, cfg.LLMModel)

	app := &App{
		Config: cfg,
		Store:  store,
		LLM:    client,
	}

	app.DocumentsService = &documents.Service{
		Store:     store,
		LLM:       client,
		Financial: &financial.Extractor{LLM: client, DisableRepair: !cfg.LLMRepairJSON},
		Earnings:  &earnings.Analyzer{LLM: client, DisableRepair: !cfg.LLMRepairJSON},
		MaxBytes:  cfg.MaxUploadBytes,
	}
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)

	uploadsHandler, err := buildUploads(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.UploadsHandler = uploadsHandler

	if app.DocumentsHandler == nil {
		return nil, errors.New("failed to initialize handlers")
	}

	deps := server.RouterDeps{
		Config:          cfg,
		DocumentHandler: app.DocumentsHandler,
		Limiter:         middleware.NewRateLimiter(time.Now),
	}
	if uploadsHandler != nil {
		deps.UploadHandler = uploadsHandler
	}
	app.Router = server.NewRouter(deps)

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":            cfg.Env,
		"llm_provider":   cfg.LLMProvider,
		"llm_model":      cfg.LLMModel,
		"llm_configured": llm.CheckConfigured(client) == nil,
		"object_store":   cfg.ObjectStoreType,
		"uploads":        uploadsHandler != nil,
	})
	return app, nil
}

func withDefaults(cfg config.Config) config.Config {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.LLMProvider) == "" {
		cfg.LLMProvider = config.ProviderOpenAI
	}
	if strings.TrimSpace(cfg.LLMModel) == "" {
		cfg.LLMModel = config.DefaultModel(cfg.LLMProvider)
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = llm.DefaultTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.ObjectStoreType == "s3" && cfg.UploadsBucket == "" {
		cfg.UploadsBucket = cfg.S3Bucket
	}
	return cfg
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// NewLLM returns the configured provider, or an llm.Unconfigured client
// carrying the reason it could not be built.
func NewLLM(cfg config.Config) llm.Client {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		client, err = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel, "")
	default:
		var opts []openai.Option
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, opts...)
	}
	if err != nil {
		telemetry.Warn("bootstrap.llm.unconfigured", map[string]any{
			"provider": cfg.LLMProvider,
			"error":    llm.SanitizeError(err),
		})
		return llm.Unconfigured{Err: err}
	}
	return client
}

func buildUploads(ctx context.Context, cfg config.Config) (*uploads.Handler, error) {
	if cfg.UploadsBucket == "" {
		return nil, nil
	}
	h, err := uploads.NewHandler(ctx, uploads.Options{
		Region:      cfg.AWSRegion,
		Bucket:      cfg.UploadsBucket,
		Prefix:      cfg.UploadsPrefix,
		StorePrefix: cfg.S3Prefix,
		MaxBytes:    cfg.MaxUploadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("uploads: %w", err)
	}
	return h, nil
}
