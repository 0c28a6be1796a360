package config

import "time"

// BreakerOverride lets an operator override the per-adapter circuit
// breaker defaults of §4.2. Zero values mean "use the coded default".
type BreakerOverride struct {
	FailureThreshold int           `yaml:"failure_threshold,omitempty"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout,omitempty"`
	SuccessThreshold int           `yaml:"success_threshold,omitempty"`
	MaxAttempts      int           `yaml:"max_attempts,omitempty"`
	BaseDelay        time.Duration `yaml:"base_delay,omitempty"`
	MaxDelay         time.Duration `yaml:"max_delay,omitempty"`
}

// LLMProviderConfig names one registered LLM/embedding provider
// implementation (§9 design note: explicit interface + registry, not
// duck-typed module-import swap).
type LLMProviderConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Kind        string `yaml:"kind" validate:"required,oneof=anthropic bedrock"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Region      string `yaml:"region,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// InfraConfig groups process-wide infrastructure settings that are
// environment-driven rather than business-driven (§6 Environment).
type InfraConfig struct {
	HTTPPort           string                     `yaml:"http_port"`
	RedisAddr          string                     `yaml:"redis_addr"`
	VectorStorePath    string                     `yaml:"vector_store_path"`
	EmbeddingModelName string                     `yaml:"embedding_model_name"`
	PrimaryLLM         string                     `yaml:"primary_llm"`
	FallbackLLM        string                     `yaml:"fallback_llm"`
	LLMProviders       map[string]LLMProviderConfig `yaml:"llm_providers"`
	Breakers           map[string]BreakerOverride   `yaml:"breakers,omitempty"`
	OpsSlackTokenEnv   string                     `yaml:"ops_slack_token_env,omitempty"`
	OpsSlackChannel    string                     `yaml:"ops_slack_channel,omitempty"`
}

// DefaultInfraConfig returns built-in infrastructure defaults; callers
// overlay environment variables on top (see loader.go).
func DefaultInfraConfig() *InfraConfig {
	return &InfraConfig{
		HTTPPort:           "8080",
		RedisAddr:          "localhost:6379",
		VectorStorePath:    "./data/vectors.db",
		EmbeddingModelName: "text-embedding-3-small",
		PrimaryLLM:         "anthropic-primary",
		FallbackLLM:        "bedrock-fallback",
		LLMProviders: map[string]LLMProviderConfig{
			"anthropic-primary": {Name: "anthropic-primary", Kind: "anthropic", Model: "claude-sonnet-4-5", APIKeyEnv: "LLM_API_KEY", Temperature: 0.2},
			"bedrock-fallback":  {Name: "bedrock-fallback", Kind: "bedrock", Model: "anthropic.claude-3-5-sonnet", Region: "us-east-1"},
		},
	}
}
