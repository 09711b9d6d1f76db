// promptcache_params.go - Validierung der KV-Cache-Quantisierungsparameter
package middleware

import (
	"fmt"

	"github.com/ollama/ollama/promptcache"
)

// ValidatePromptCacheParams prueft kv_bits, kv_group_size und
// kv_quantization_start, bevor ein Request den Prompt-Cache-Manager
// erreicht. Nur 4 und 8 Bit werden unterstuetzt; die Gruppengroesse muss
// ein positives Vielfaches von 8 sein.
func ValidatePromptCacheParams(p promptcache.Params) error {
	if p.KVBits == nil {
		return nil
	}
	bits := *p.KVBits
	if bits != 4 && bits != 8 {
		return fmt.Errorf("kv_bits must be 4 or 8, got %d", bits)
	}
	if p.KVGroupSize <= 0 || p.KVGroupSize%8 != 0 {
		return fmt.Errorf("kv_group_size must be a positive multiple of 8, got %d", p.KVGroupSize)
	}
	if p.KVQuantizationStart < 0 {
		return fmt.Errorf("kv_quantization_start must not be negative, got %d", p.KVQuantizationStart)
	}
	return nil
}
