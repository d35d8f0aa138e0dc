package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"research-portal/internal/llm"
	"research-portal/internal/shared/config"
)

// clientFactory builds the completion client for a resolved configuration.
type clientFactory func(cfg config.Config) llm.Client

func newRootCmd(newClient clientFactory) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "extract",
		Short: "Run the research portal tools against local PDFs",
		Long: `Extracts text from a local PDF and runs either the financial line-item
extractor or the earnings call analyzer over it, printing the result as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("provider", "", "LLM provider: openai, anthropic")
	pf.String("model", "", "LLM model to use")
	pf.String("openai-api-key", "", "OpenAI API key")
	pf.String("openai-base-url", "", "OpenAI compatible base URL")
	pf.String("anthropic-api-key", "", "Anthropic API key")
	pf.Int("timeout", 0, "Per-call LLM timeout in seconds")
	pf.Bool("repair-json", true, "Repair malformed JSON in model output")

	for _, f := range []string{"provider", "model", "openai-api-key", "openai-base-url", "anthropic-api-key", "timeout", "repair-json"} {
		_ = v.BindPFlag(f, pf.Lookup(f))
	}
	_ = v.BindEnv("provider", "LLM_PROVIDER")
	_ = v.BindEnv("model", "LLM_MODEL")
	_ = v.BindEnv("openai-api-key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai-base-url", "OPENAI_BASE_URL")
	_ = v.BindEnv("anthropic-api-key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("timeout", "LLM_TIMEOUT_SECONDS")
	_ = v.BindEnv("repair-json", "LLM_REPAIR_JSON")

	root.AddCommand(newRunCmd(v, newClient))
	return root
}

// resolveConfig layers flags and environment over config.Load defaults.
func resolveConfig(v *viper.Viper) config.Config {
	cfg := config.Load()

	if p := strings.TrimSpace(v.GetString("provider")); p != "" {
		provider := config.NormalizeProvider(p)
		if provider != cfg.LLMProvider && !v.IsSet("model") {
			cfg.LLMModel = config.DefaultModel(provider)
		}
		cfg.LLMProvider = provider
	}
	if m := strings.TrimSpace(v.GetString("model")); m != "" {
		cfg.LLMModel = m
	}
	if k := v.GetString("openai-api-key"); k != "" {
		cfg.OpenAIAPIKey = k
	}
	if u := v.GetString("openai-base-url"); u != "" {
		cfg.OpenAIBaseURL = u
	}
	if k := v.GetString("anthropic-api-key"); k != "" {
		cfg.AnthropicAPIKey = k
	}
	if s := v.GetInt("timeout"); s > 0 {
		cfg.LLMTimeout = time.Duration(s) * time.Second
	}
	cfg.LLMRepairJSON = v.GetBool("repair-json")
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = llm.DefaultTimeout
	}
	return cfg
}
