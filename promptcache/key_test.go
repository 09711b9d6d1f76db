package promptcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func bits(b int) *int { return &b }

func TestComposeKeyDeterministic(t *testing.T) {
	p := Params{Temperature: 0.7, TopP: 0.9}
	k1 := ComposeKey("llama3", p)
	k2 := ComposeKey("llama3", p)
	require.Equal(t, k1, k2)
}

func TestComposeKeyDistinguishesParams(t *testing.T) {
	base := Params{Temperature: 0.7, TopP: 0.9}
	hotter := Params{Temperature: 0.8, TopP: 0.9}
	require.NotEqual(t, ComposeKey("llama3", base), ComposeKey("llama3", hotter))

	quantized := Params{Temperature: 0.7, TopP: 0.9, KVBits: bits(4), KVGroupSize: 64}
	require.NotEqual(t, ComposeKey("llama3", base), ComposeKey("llama3", quantized))

	otherModel := ComposeKey("mistral", base)
	require.NotEqual(t, ComposeKey("llama3", base), otherModel)
}

func TestComposeKeyQuantTag(t *testing.T) {
	p := Params{KVBits: bits(8), KVGroupSize: 32}
	require.Contains(t, string(ComposeKey("m", p)), "kv8g32")

	none := Params{}
	require.Contains(t, string(ComposeKey("m", none)), "nokv")
}
