package app

import (
	"blogsmith/internal/config"
	"blogsmith/internal/store"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Credential providers.
const (
	ProviderGemini   = "gemini"
	ProviderPixabay  = "pixabay"
	ProviderImageGen = "imagegen"
)

// ErrUnknownProvider is returned for a credential provider name that is not
// one of the known providers.
var ErrUnknownProvider = errors.New("unknown credential provider")

var credentialKeys = map[string]string{
	ProviderGemini:   store.KeyGeminiAPIKey,
	ProviderPixabay:  store.KeyPixabayAPIKey,
	ProviderImageGen: store.KeyImageGenAPIKey,
}

// Credential sources.
const (
	SourceConfig = "config"
	SourceStore  = "store"
	SourceNone   = "none"
)

// Credentials resolves API keys. Configured values (file or environment)
// win over keys saved in the store.
type Credentials struct {
	kv         store.KV
	configured map[string]string
}

// NewCredentials creates a resolver over cfg and kv.
func NewCredentials(cfg *config.Config, kv store.KV) *Credentials {
	return &Credentials{
		kv: kv,
		configured: map[string]string{
			ProviderGemini:   cfg.AI.Gemini.APIKey,
			ProviderPixabay:  cfg.Images.Pixabay.APIKey,
			ProviderImageGen: cfg.Images.Generator.APIKey,
		},
	}
}

// Providers returns the known provider names, sorted.
func Providers() []string {
	names := make([]string, 0, len(credentialKeys))
	for name := range credentialKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the key for provider and where it came from. Placeholder
// values are ignored.
func (c *Credentials) Get(provider string) (string, string) {
	if v := strings.TrimSpace(c.configured[provider]); config.IsValidAPIKey(v) {
		return v, SourceConfig
	}
	if key, ok := credentialKeys[provider]; ok {
		if v, ok := c.kv.Get(key); ok && config.IsValidAPIKey(v) {
			return strings.TrimSpace(v), SourceStore
		}
	}
	return "", SourceNone
}

// Key returns only the key for provider.
func (c *Credentials) Key(provider string) string {
	v, _ := c.Get(provider)
	return v
}

// Set saves a key for provider in the store. An empty key removes it.
func (c *Credentials) Set(provider, apiKey string) error {
	key, ok := credentialKeys[provider]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		c.kv.Remove(key)
		return nil
	}
	if !config.IsValidAPIKey(apiKey) {
		return fmt.Errorf("invalid API key for %s", provider)
	}
	c.kv.Set(key, apiKey)
	return nil
}

// Masked returns the key for provider with all but the last four characters
// hidden.
func (c *Credentials) Masked(provider string) string {
	return Mask(c.Key(provider))
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	r := []rune(key)
	if len(r) == 0 {
		return ""
	}
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
