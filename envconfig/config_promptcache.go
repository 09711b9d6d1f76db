// config_promptcache.go - Konfiguration fuer den Prompt-Prefix-KV-Cache
package envconfig

import "time"

var (
	// PromptCache aktiviert die Wiederverwendung von KV-Cache-Zustand ueber
	// Requests mit gemeinsamem Prompt-Praefix hinweg
	PromptCache = Bool("OLLAMA_KV_PROMPT_CACHE")

	// PromptCacheMaxMB begrenzt die Gesamtgroesse aller gehaltenen Cache-Eintraege
	PromptCacheMaxMB = Uint("OLLAMA_KV_PROMPT_CACHE_MAX_MB", 1024)

	// PromptCacheTTLMinutes bestimmt, wie lange ein unbenutzter Cache-Eintrag
	// ueberlebt, bevor er verworfen wird
	PromptCacheTTLMinutes = Uint("OLLAMA_KV_PROMPT_CACHE_TTL_MINUTES", 30)
)

// PromptCacheTTL wandelt PromptCacheTTLMinutes in eine time.Duration um.
func PromptCacheTTL() time.Duration {
	return time.Duration(PromptCacheTTLMinutes()) * time.Minute
}

// PromptCacheMaxBytes wandelt PromptCacheMaxMB in eine Byte-Obergrenze um.
func PromptCacheMaxBytes() int64 {
	return int64(PromptCacheMaxMB()) * 1024 * 1024
}
