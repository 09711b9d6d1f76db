// promptcache_bridge.go - Anbindung des Prompt-Prefix-KV-Cache an die
// Request-Handler. Der eigentliche Tensor-Zustand lebt im Runner-Prozess
// (siehe runner/ollamarunner.InputCache); hier wird nur die
// Praefix-Erkennung und Buchfuehrung (Treffer/Fehlschlag, Bytes, TTL)
// ueber den Lebenszyklus einer Anfrage gefuehrt.
package server

import (
	"cmp"
	"context"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/llm"
	"github.com/ollama/ollama/promptcache"
)

func promptCacheParams(opts *api.Options) promptcache.Params {
	if opts == nil {
		return promptcache.Params{}
	}
	return promptcache.Params{
		Temperature:         opts.Temperature,
		TopP:                opts.TopP,
		KVBits:              opts.KVBits,
		KVGroupSize:         cmp.Or(opts.KVGroupSize, 64),
		KVQuantizationStart: cmp.Or(opts.KVQuantizationStart, 5000),
	}
}

func toInt32Tokens(tokens []int) []int32 {
	out := make([]int32, len(tokens))
	for i, t := range tokens {
		out[i] = int32(t)
	}
	return out
}

// promptCacheBegin tokenizes prompt and looks up a cached prefix for
// (model, params). It returns the handle to hand back at the end of the
// turn (nil if the cache is disabled, tokenization failed, or it was a
// miss) along with the number of tokens found already warm.
func (s *Server) promptCacheBegin(ctx context.Context, r llm.LlamaServer, model, prompt string, p promptcache.Params) (*promptcache.Handle, int) {
	if s.promptCache == nil {
		return nil, 0
	}
	tokens, err := r.Tokenize(ctx, prompt)
	if err != nil {
		return nil, 0
	}
	tokens32 := toInt32Tokens(tokens)
	suffix, h := s.promptCache.Lookup(model, tokens32, p)
	if h == nil {
		return nil, 0
	}
	return h, len(tokens32) - len(suffix)
}

// promptCacheEnd tokenizes the full prompt-plus-response text and admits
// it as the new cache entry for (model, params), releasing the handle
// obtained from promptCacheBegin. A nil handle (cache disabled or the
// turn started from a miss) still admits a fresh entry so the next
// request on this bucket has something to match against.
func (s *Server) promptCacheEnd(ctx context.Context, r llm.LlamaServer, model, fullText string, p promptcache.Params, h *promptcache.Handle) {
	if s.promptCache == nil {
		return
	}
	tokens, err := r.Tokenize(ctx, fullText)
	if err != nil {
		return
	}
	if h == nil {
		h = &promptcache.Handle{}
	}
	s.promptCache.WriteBack(model, toInt32Tokens(tokens), h, p)
}
