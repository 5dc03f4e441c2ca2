package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the binaries need.
type Config struct {
	Server     ServerConfig
	X          XConfig
	Cache      CacheConfig
	Generation GenerationConfig
	AI         AIConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	x, err := loadXConfig()
	if err != nil {
		return nil, err
	}

	generation, err := loadGenerationConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		X:          x,
		Cache:      CacheConfig{Path: getEnvOrDefault("CACHE_FILE", "cached-tweets.json")},
		Generation: generation,
		AI:         ai,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
	// StrictStartup refuses to start without X credentials instead of
	// reporting the failure on the first capability call.
	StrictStartup bool
}

// loadServerConfig resolves the listen address from PORT.
func loadServerConfig() (ServerConfig, error) {
	strict, err := parseBoolEnv("STRICT_STARTUP", true)
	if err != nil {
		return ServerConfig{}, err
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3001"
	}

	if strings.Contains(port, ":") {
		// PORT may already be ":3001" or "127.0.0.1:3001".
		return ServerConfig{Addr: port, StrictStartup: strict}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, StrictStartup: strict}, nil
}

// XConfig holds credentials for the X API and the account whose posts are cached.
type XConfig struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	Username          string
	BaseURL           string
	RateLimit         float64
}

// Validate reports every missing credential by its variable name. The
// username is deliberately not checked here: it is only needed on refresh.
func (c XConfig) Validate() error {
	var missing []string
	for _, v := range []struct {
		name, value string
	}{
		{"X_API_KEY", c.APIKey},
		{"X_API_SECRET", c.APISecret},
		{"X_ACCESS_TOKEN", c.AccessToken},
		{"X_ACCESS_TOKEN_SECRET", c.AccessTokenSecret},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing X credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

func loadXConfig() (XConfig, error) {
	rate := 1.0
	if override, err := parseOptionalFloatEnv("X_RATE_LIMIT_RPS"); err != nil {
		return XConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return XConfig{}, fmt.Errorf("invalid X_RATE_LIMIT_RPS value %v: must be positive", *override)
		}
		rate = *override
	}

	return XConfig{
		APIKey:            strings.TrimSpace(os.Getenv("X_API_KEY")),
		APISecret:         strings.TrimSpace(os.Getenv("X_API_SECRET")),
		AccessToken:       strings.TrimSpace(os.Getenv("X_ACCESS_TOKEN")),
		AccessTokenSecret: strings.TrimSpace(os.Getenv("X_ACCESS_TOKEN_SECRET")),
		Username:          strings.TrimSpace(os.Getenv("X_USERNAME")),
		BaseURL:           getEnvOrDefault("X_API_BASE_URL", "https://api.twitter.com"),
		RateLimit:         rate,
	}, nil
}

// CacheConfig locates the post cache file.
type CacheConfig struct {
	Path string
}

// Generation providers.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// GenerationConfig selects and configures the post generation backend.
type GenerationConfig struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	GeminiURL    string
	MaxRetries   int
}

func loadGenerationConfig() (GenerationConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("GENERATION_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderArk {
		return GenerationConfig{}, fmt.Errorf("invalid GENERATION_PROVIDER value %q: want %s or %s", provider, ProviderGemini, ProviderArk)
	}

	maxRetries := 2
	if override, err := parseOptionalIntEnv("GENERATION_MAX_RETRIES"); err != nil {
		return GenerationConfig{}, err
	} else if override != nil {
		if *override < 0 {
			maxRetries = 0
		} else {
			maxRetries = *override
		}
	}

	return GenerationConfig{
		Provider:     provider,
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash-preview-05-20"),
		GeminiURL:    getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		MaxRetries:   maxRetries,
	}, nil
}

// AIConfig configures the Ark chat model used by the ark provider.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the model and its credentials are set.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the config.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + Model, or ARK_ACCESS_KEY + ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
