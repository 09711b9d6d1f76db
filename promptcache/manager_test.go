package promptcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(cfg Config) *Manager {
	m := New(cfg)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	return m
}

func setClock(m *Manager, t time.Time) {
	m.now = func() time.Time { return t }
}

func shapeFor(numLayers int) ModelShape {
	return ModelShape{NumLayers: numLayers, KVHeads: 2, HeadDim: 4, Step: 16}
}

func decodeAndWriteBack(t *testing.T, b *GenerationBridge, model string, full []int32, p Params, h *Handle) {
	t.Helper()
	kTile := tileFor(2, 4, len(full), func(hh, s, d int) float32 { return float32(full[s]) })
	vTile := kTile
	for _, l := range h.Layers {
		_, err := l.Append(kTile, vTile)
		require.NoError(t, err)
	}
	b.End(model, full, p, h)
}

// E1: cold miss, then a warm hit reusing the entire prior prefix.
func TestScenarioColdMissThenWarmHit(t *testing.T) {
	m := newTestManager(DefaultConfig())
	b := NewGenerationBridge(m, shapeFor(1))
	p := Params{Temperature: 0.7, TopP: 0.9}

	prompt := []int32{1, 2, 3, 4}
	toProcess, h := b.Begin("m1", prompt, p)
	require.Equal(t, prompt, toProcess)
	decodeAndWriteBack(t, b, "m1", []int32{1, 2, 3, 4, 5}, p, h)
	require.EqualValues(t, 1, m.Stats().Misses)

	followUp := []int32{1, 2, 3, 4, 5, 6}
	toProcess, h2 := b.Begin("m1", followUp, p)
	require.NotNil(t, h2)
	require.Equal(t, []int32{6}, toProcess)
	require.EqualValues(t, 1, m.Stats().Hits)
}

// E1 (literal): the exact scenario from spec §8 — a 5-token miss, a
// decode that appends 2 tokens, then a follow-up request that reuses 6
// of its 7 tokens. Asserts the literal tokens_reused/tokens_processed
// numbers from the spec, not just hit/miss counts.
func TestScenarioColdMissThenWarmHitLiteralE1Counts(t *testing.T) {
	m := newTestManager(DefaultConfig())
	b := NewGenerationBridge(m, shapeFor(1))
	p := Params{Temperature: 0.7, TopP: 0.9}

	prompt := []int32{10, 20, 30, 40, 50}
	toProcess, h := b.Begin("m1", prompt, p)
	require.Equal(t, prompt, toProcess)
	decodeAndWriteBack(t, b, "m1", []int32{10, 20, 30, 40, 50, 60, 70}, p, h)

	followUp := []int32{10, 20, 30, 40, 50, 60, 80}
	toProcess, h2 := b.Begin("m1", followUp, p)
	require.NotNil(t, h2)
	require.Equal(t, []int32{80}, toProcess)

	stats := m.Stats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
	require.EqualValues(t, 6, stats.TotalReused)
	require.EqualValues(t, 6, stats.TotalProcessed)
}

// E2: no shared prefix at all degrades to a full miss and drops the entry.
func TestScenarioNoOverlapIsMiss(t *testing.T) {
	m := newTestManager(DefaultConfig())
	b := NewGenerationBridge(m, shapeFor(1))
	p := Params{Temperature: 0.7, TopP: 0.9}

	decodeAndWriteBack(t, b, "m1", []int32{1, 2, 3}, p, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})

	toProcess, h := b.Begin("m1", []int32{9, 9, 9}, p)
	require.Nil(t, h)
	require.Equal(t, []int32{9, 9, 9}, toProcess)
	require.EqualValues(t, 1, m.Stats().Misses)
}

// E3: differing sampling parameters never reuse each other's bucket.
func TestScenarioDistinctParamsDoNotShareBucket(t *testing.T) {
	m := newTestManager(DefaultConfig())
	b := NewGenerationBridge(m, shapeFor(1))
	hot := Params{Temperature: 0.9, TopP: 0.9}
	cold := Params{Temperature: 0.1, TopP: 0.9}

	decodeAndWriteBack(t, b, "m1", []int32{1, 2, 3}, hot, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})

	_, h := b.Begin("m1", []int32{1, 2, 3}, cold)
	require.Nil(t, h)
}

// E4: admission beyond MaxBytes evicts the least-recently-accessed entry.
func TestScenarioEvictionUnderByteCeiling(t *testing.T) {
	d := NewDenseLayer(2, 4, 16)
	_, _ = d.Append(tileFor(2, 4, 4, func(h, s, dd int) float32 { return 1 }), tileFor(2, 4, 4, func(h, s, dd int) float32 { return 1 }))
	oneEntryBytes := d.SizeBytes() + 4*4

	m := newTestManager(Config{MaxBytes: oneEntryBytes + oneEntryBytes/2, TTL: 30 * time.Minute})
	b := NewGenerationBridge(m, shapeFor(1))

	decodeAndWriteBack(t, b, "old", []int32{1, 2, 3, 4}, Params{}, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})
	setClock(m, time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))
	decodeAndWriteBack(t, b, "new", []int32{5, 6, 7, 8}, Params{}, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})

	status := m.Status()
	require.Equal(t, 1, status.EntryCount)
	require.EqualValues(t, 1, m.Stats().Evictions)

	_, h := b.Begin("new", []int32{5, 6, 7, 8, 9}, Params{})
	require.NotNil(t, h)
	_, h = b.Begin("old", []int32{1, 2, 3, 4, 9}, Params{})
	require.Nil(t, h)
}

// E5: an entry untouched past ttl is swept and treated as a miss.
func TestScenarioTTLExpiry(t *testing.T) {
	m := newTestManager(Config{MaxBytes: DefaultConfig().MaxBytes, TTL: time.Minute})
	b := NewGenerationBridge(m, shapeFor(1))
	p := Params{}

	decodeAndWriteBack(t, b, "m1", []int32{1, 2, 3}, p, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})

	setClock(m, time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC))
	_, h := b.Begin("m1", []int32{1, 2, 3, 4}, p)
	require.Nil(t, h)
	require.EqualValues(t, 1, m.Stats().Misses)
}

// E6: write-back past the quantization threshold promotes dense layers.
func TestScenarioQuantizationPromotionOnWriteBack(t *testing.T) {
	m := newTestManager(DefaultConfig())
	b := NewGenerationBridge(m, shapeFor(1))
	bits := 8
	p := Params{KVBits: &bits, KVGroupSize: 8, KVQuantizationStart: 4}

	full := make([]int32, 10)
	for i := range full {
		full[i] = int32(i)
	}
	decodeAndWriteBack(t, b, "m1", full, p, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})

	require.EqualValues(t, 1, m.Stats().PromotionsApplied)

	_, h := b.Begin("m1", append(append([]int32{}, full...), 99), p)
	require.NotNil(t, h)
	require.Equal(t, KindQuantized, h.Layers[0].Kind())
}

func TestDisabledManagerIsNilSafe(t *testing.T) {
	var m *Manager
	b := NewGenerationBridge(m, shapeFor(1))
	toProcess, h := b.Begin("m1", []int32{1, 2, 3}, Params{})
	require.Equal(t, []int32{1, 2, 3}, toProcess)
	require.NotNil(t, h) // fresh handle allocated even with a nil manager
	b.End("m1", []int32{1, 2, 3}, Params{}, h)
	require.Equal(t, Stats{}, m.Stats())
	require.Equal(t, Status{}, m.Status())
}

func TestSingleEntryPerBucketOnRepeatedWriteBack(t *testing.T) {
	m := newTestManager(DefaultConfig())
	b := NewGenerationBridge(m, shapeFor(1))
	p := Params{}

	decodeAndWriteBack(t, b, "m1", []int32{1, 2, 3}, p, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})
	decodeAndWriteBack(t, b, "m1", []int32{1, 2, 3, 4, 5}, p, &Handle{Layers: []Layer{NewDenseLayer(2, 4, 16)}})

	require.Equal(t, 1, m.Status().EntryCount)
}
