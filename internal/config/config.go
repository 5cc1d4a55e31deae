package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	AI         AI         `mapstructure:"ai"`
	Images     Images     `mapstructure:"images"`
	Backend    Backend    `mapstructure:"backend"`
	Storage    Storage    `mapstructure:"storage"`
	Generation Generation `mapstructure:"generation"`
	Server     Server     `mapstructure:"server"`
	Analytics  Analytics  `mapstructure:"analytics"`
	Logging    Logging    `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	OutputDir  string `mapstructure:"output_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds text generation configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// Images holds stock photo search and image generation configuration
type Images struct {
	Mode      string          `mapstructure:"mode"` // "search" or "generate"
	Pixabay   PixabayConfig   `mapstructure:"pixabay"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

// PixabayConfig holds Pixabay search configuration
type PixabayConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	PerPage     int    `mapstructure:"per_page"`
	Orientation string `mapstructure:"orientation"`
	Language    string `mapstructure:"language"`
}

// GeneratorConfig holds the backend image generation function configuration
type GeneratorConfig struct {
	FunctionURL string `mapstructure:"function_url"`
	APIKey      string `mapstructure:"api_key"`  // forwarded to the diffusion provider
	AnonKey     string `mapstructure:"anon_key"` // backend function authorization
	Timeout     string `mapstructure:"timeout"`
}

// Backend holds backend-as-a-service configuration
type Backend struct {
	DatabaseURL string `mapstructure:"database_url"`
	UserID      string `mapstructure:"user_id"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	Channel     string `mapstructure:"channel"`
}

// Storage holds local key/value storage configuration
type Storage struct {
	Directory string `mapstructure:"directory"`
}

// Generation holds orchestration policy
type Generation struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	LedgerCapacity      int     `mapstructure:"ledger_capacity"`
	KeywordAttempts     int     `mapstructure:"keyword_attempts"`
	FlowRetries         int     `mapstructure:"flow_retries"`
	MinTitleLength      int     `mapstructure:"min_title_length"`
	RequireKeyword      bool    `mapstructure:"require_keyword"`
	TopicCount          int     `mapstructure:"topic_count"`
	DefaultKeyword      string  `mapstructure:"default_keyword"`
	DefaultCategory     string  `mapstructure:"default_category"`
	PreventDuplicates   bool    `mapstructure:"prevent_duplicates"`
	GenerateImage       bool    `mapstructure:"generate_image"`
	RecentKeywordWindow string  `mapstructure:"recent_keyword_window"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin configuration for the API
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Analytics holds product analytics configuration
type Analytics struct {
	PostHog PostHogConfig `mapstructure:"posthog"`
}

// PostHogConfig holds PostHog configuration
type PostHogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".blogsmith")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".blogsmith")
	viper.SetDefault("app.output_dir", "articles")

	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.8)

	viper.SetDefault("images.mode", "search")
	viper.SetDefault("images.pixabay.base_url", "https://pixabay.com/api/")
	viper.SetDefault("images.pixabay.per_page", 20)
	viper.SetDefault("images.pixabay.orientation", "horizontal")
	viper.SetDefault("images.pixabay.language", "ko")
	viper.SetDefault("images.generator.timeout", "45s")

	viper.SetDefault("backend.channel", "users_changes")

	viper.SetDefault("storage.directory", ".blogsmith")

	viper.SetDefault("generation.similarity_threshold", 0.70)
	viper.SetDefault("generation.ledger_capacity", 1000)
	viper.SetDefault("generation.keyword_attempts", 3)
	viper.SetDefault("generation.flow_retries", 1)
	viper.SetDefault("generation.min_title_length", 8)
	viper.SetDefault("generation.require_keyword", true)
	viper.SetDefault("generation.topic_count", 5)
	viper.SetDefault("generation.default_keyword", "블로그 글쓰기")
	viper.SetDefault("generation.default_category", "health")
	viper.SetDefault("generation.prevent_duplicates", true)
	viper.SetDefault("generation.generate_image", false)
	viper.SetDefault("generation.recent_keyword_window", "720h")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.cors.enabled", false)

	viper.SetDefault("analytics.posthog.enabled", false)
	viper.SetDefault("analytics.posthog.host", "https://us.i.posthog.com")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("images.pixabay.api_key", []string{
		"PIXABAY_API_KEY",
		"PIXABAY_KEY",
	})

	bindEnvKeys("images.generator.function_url", []string{
		"SUPABASE_FUNCTION_URL",
		"IMAGE_FUNCTION_URL",
	})

	bindEnvKeys("images.generator.api_key", []string{
		"IMAGE_GENERATION_API_KEY",
		"HF_API_KEY",
	})

	bindEnvKeys("images.generator.anon_key", []string{
		"SUPABASE_ANON_KEY",
	})

	bindEnvKeys("backend.database_url", []string{
		"SUPABASE_DB_URL",
		"DATABASE_URL",
	})

	bindEnvKeys("backend.jwt_secret", []string{
		"SUPABASE_JWT_SECRET",
	})

	bindEnvKeys("backend.user_id", []string{
		"BLOGSMITH_USER_ID",
	})

	bindEnvKeys("analytics.posthog.api_key", []string{
		"POSTHOG_API_KEY",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"BLOGSMITH_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.App.OutputDir != "" {
		config.App.OutputDir = expandPath(config.App.OutputDir)
	}
	if config.Storage.Directory != "" {
		config.Storage.Directory = expandPath(config.Storage.Directory)
	}

	durations := map[string]string{
		"images.generator.timeout":         config.Images.Generator.Timeout,
		"generation.recent_keyword_window": config.Generation.RecentKeywordWindow,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig checks policy values. Missing API keys are not errors here:
// credentials may also live in the local store and are checked before each run.
func validateConfig(config *Config) error {
	var errors []string

	g := config.Generation
	if g.SimilarityThreshold <= 0 || g.SimilarityThreshold > 1 {
		errors = append(errors, fmt.Sprintf("generation.similarity_threshold must be in (0,1], got %v", g.SimilarityThreshold))
	}
	if g.LedgerCapacity <= 0 {
		errors = append(errors, "generation.ledger_capacity must be positive")
	}
	if g.KeywordAttempts <= 0 {
		errors = append(errors, "generation.keyword_attempts must be positive")
	}
	if g.FlowRetries < 0 {
		errors = append(errors, "generation.flow_retries cannot be negative")
	}

	switch config.Images.Mode {
	case "search", "generate":
	default:
		errors = append(errors, fmt.Sprintf("Unknown image mode: %s. Supported: search, generate", config.Images.Mode))
	}

	if config.Analytics.PostHog.Enabled && config.Analytics.PostHog.APIKey == "" {
		errors = append(errors, "PostHog analytics enabled but no API key. Set POSTHOG_API_KEY")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ImageTimeout returns the parsed image generation timeout.
func (c *Config) ImageTimeout() time.Duration {
	d, err := time.ParseDuration(c.Images.Generator.Timeout)
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

// RecentKeywordWindow returns how far back backend keyword usage counts as recent.
func (c *Config) RecentKeywordWindow() time.Duration {
	d, err := time.ParseDuration(c.Generation.RecentKeywordWindow)
	if err != nil || d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetApp() App               { return Get().App }
func GetAI() AI                 { return Get().AI }
func GetImages() Images         { return Get().Images }
func GetBackend() Backend       { return Get().Backend }
func GetGeneration() Generation { return Get().Generation }
func GetServer() Server         { return Get().Server }
func GetLogging() Logging       { return Get().Logging }
func GetPostHogConfig() PostHogConfig {
	return Get().Analytics.PostHog
}

// IsValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func IsValidAPIKey(apiKey string) bool {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "your-pixabay-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
