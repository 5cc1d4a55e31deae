package store

import "strings"

// KV is the string key/value contract shared by the SQLite store and the
// in-memory store. Implementations never return errors: failed reads look
// like missing keys and failed writes are dropped after logging.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// CredentialPrefix marks keys that survive Reset.
const CredentialPrefix = "credential."

// Canonical keys.
const (
	KeyGeminiAPIKey      = CredentialPrefix + "gemini"
	KeyPixabayAPIKey     = CredentialPrefix + "pixabay"
	KeyImageGenAPIKey    = CredentialPrefix + "imagegen"
	KeyUsedTopics        = "ledger.topics"
	KeyUsedKeywords      = "ledger.keywords"
	KeyPreventDuplicates = "settings.prevent_duplicates"
	KeySession           = "session.current"
)

// IsPreserved reports whether key is kept by Reset.
func IsPreserved(key string) bool {
	return strings.HasPrefix(key, CredentialPrefix)
}

// legacyAliases lists the mirrored physical keys older clients wrote for one
// logical value, in read priority order. Migration 2 folds them into the
// canonical key.
var legacyAliases = map[string][]string{
	KeyGeminiAPIKey:      {"geminiApiKey", "gemini_api_key", "gemini_api_key_backup"},
	KeyPixabayAPIKey:     {"pixabayApiKey", "pixabay_api_key", "pixabay_api_key_backup"},
	KeyImageGenAPIKey:    {"huggingfaceApiKey", "hf_api_key", "hf_api_key_backup"},
	KeyUsedTopics:        {"usedTopics", "used_topics", "used_topics_backup"},
	KeyUsedKeywords:      {"usedKeywords", "used_keywords", "used_keywords_backup"},
	KeyPreventDuplicates: {"preventDuplicates", "prevent_duplicates"},
}
