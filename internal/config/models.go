package config

import "time"

// LLMConfig selects the LLM provider.
type LLMConfig struct {
	Provider string
}

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL
// being empty means the SDK default; APIKeyEnv names the environment
// variable holding the key, which is never stored in configuration.
type OpenAIConfig struct {
	APIKeyEnv   string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig configures Amazon Bedrock.
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig configures Google Gemini.
type GeminiConfig struct {
	APIKeyEnv   string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// ClassifierConfig carries the tiering controller's thresholds and
// the AI call budget.
type ClassifierConfig struct {
	AIEnabled        bool
	HighConfidence   float64
	LowConfidence    float64
	MaxSecondaryTags int
	ThreadReplyBoost float64
	AITimeout        time.Duration
	AIMaxAttempts    int
	AIBackoff        time.Duration
	AISessionLimit   int64
	ExcerptLimit     int
	Workers          int
}

// CacheConfig configures the sender-keyed classification cache.
type CacheConfig struct {
	Enabled     bool
	Type        string
	TTL         time.Duration
	DomainKeys  bool
	CleanupFreq time.Duration
	SQLitePath  string
	MySQLDSN    string
}

// StoreConfig configures classification/feedback persistence.
type StoreConfig struct {
	Type       string
	SQLitePath string
}

// RunnerConfig configures the classification front-end.
type RunnerConfig struct {
	Type   string
	Input  string
	Output string
}

// GetLLM returns the LLM provider selection.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration.
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKeyEnv:   c.GetString("openai.api_key_env"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration.
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration.
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKeyEnv:   c.GetString("gemini.api_key_env"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetClassifier returns the classifier configuration.
func (c *Config) GetClassifier() (ClassifierConfig, error) {
	timeout, err := c.GetDuration("classifier.ai_timeout")
	if err != nil {
		return ClassifierConfig{}, err
	}
	backoff, err := c.GetDuration("classifier.ai_backoff")
	if err != nil {
		return ClassifierConfig{}, err
	}
	return ClassifierConfig{
		AIEnabled:        c.GetBool("classifier.ai_enabled"),
		HighConfidence:   c.GetFloat64("classifier.high_confidence"),
		LowConfidence:    c.GetFloat64("classifier.low_confidence"),
		MaxSecondaryTags: c.GetInt("classifier.max_secondary_tags"),
		ThreadReplyBoost: c.GetFloat64("classifier.thread_reply_boost"),
		AITimeout:        timeout,
		AIMaxAttempts:    c.GetInt("classifier.ai_max_attempts"),
		AIBackoff:        backoff,
		AISessionLimit:   c.GetInt64("classifier.ai_session_limit"),
		ExcerptLimit:     c.GetInt("classifier.excerpt_limit"),
		Workers:          c.GetInt("classifier.workers"),
	}, nil
}

// GetCache returns the cache configuration.
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanupFreq, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Enabled:     c.GetBool("cache.enabled"),
		Type:        c.GetString("cache.type"),
		TTL:         ttl,
		DomainKeys:  c.GetBool("cache.domain_keys"),
		CleanupFreq: cleanupFreq,
		SQLitePath:  c.GetString("cache.sqlite_path"),
		MySQLDSN:    c.GetString("cache.mysql_dsn"),
	}, nil
}

// GetStore returns the persistence configuration.
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
	}
}

// GetRunner returns the runner configuration.
func (c *Config) GetRunner() RunnerConfig {
	return RunnerConfig{
		Type:   c.GetString("runner.type"),
		Input:  c.GetString("runner.input"),
		Output: c.GetString("runner.output"),
	}
}
