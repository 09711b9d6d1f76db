// Package promptcache implements the prompt-prefix KV-cache manager: across
// independent requests sharing a model and sampling parameters, it detects
// the longest already-processed token prefix, trims the cached attention
// state down to that prefix, and hands the live layer sequence back into
// the next decode step. It never sees HTTP, never talks to a model runtime
// directly, and keeps no state on disk; those are the enclosing server's
// concerns.
package promptcache

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config are the process-start settings controlling cache capacity.
type Config struct {
	// MaxBytes bounds the sum of all live entries' Bytes.
	MaxBytes int64
	// TTL is how long an entry survives without being touched.
	TTL time.Duration
}

// DefaultConfig is 1024MB and 30 minutes.
func DefaultConfig() Config {
	return Config{
		MaxBytes: 1024 * 1024 * 1024,
		TTL:      30 * time.Minute,
	}
}

// Handle is the opaque, exclusively-owned reference to a layer sequence a
// caller drives through a decode step and returns via WriteBack. The
// manager holds no reference to a handle's layers between issuing it and
// a matching WriteBack call, so there is never an aliasing window between
// the manager's map and the in-flight request.
type Handle struct {
	ID     uuid.UUID
	Layers []Layer
}

// Manager owns the bucket map and answers lookup, write-back, eviction,
// and stats. A nil *Manager behaves as a disabled cache: every method
// degrades to its no-op/passthrough form, so a caller that reads
// enable_cache=false from configuration can just keep a nil *Manager and
// every lookup returns (tokens, nil) unconditionally.
type Manager struct {
	mu sync.Mutex

	cfg Config
	now func() time.Time

	buckets    map[BucketKey]*CacheEntry
	totalBytes int64
	stats      Stats
}

// New constructs an enabled manager. Callers that read enable_cache=false
// from configuration should simply keep a nil *Manager instead of calling
// New; every exported method is nil-safe.
func New(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Manager{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[BucketKey]*CacheEntry),
	}
}

// clock returns the injected clock, defaulting to time.Now for a Manager
// built directly as a struct literal in tests.
func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// Lookup finds the bucket for (model, params), computes the longest
// common prefix between its cached tokens and the request's tokens, trims
// the entry's layers down to that prefix, and detaches the entry from the
// map so the caller has exclusive ownership until WriteBack.
func (m *Manager) Lookup(model string, tokens []int32, params Params) ([]int32, *Handle) {
	if m == nil {
		return tokens, nil
	}

	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(now)

	key := ComposeKey(model, params)

	e, ok := m.buckets[key]
	if !ok {
		m.stats.Misses++
		m.stats.TotalProcessed += uint64(len(tokens))
		return tokens, nil
	}

	p := commonPrefixLength(e.Tokens, tokens)
	if max := len(tokens) - 1; p > max {
		p = max
	}
	if p < 0 {
		p = 0
	}

	if p == 0 {
		m.deleteLocked(key)
		m.stats.Misses++
		m.stats.TotalProcessed += uint64(len(tokens))
		return tokens, nil
	}

	if d := len(e.Tokens) - p; d > 0 {
		if err := trimLayers(e.Layers, d); err != nil {
			if errors.Is(err, ErrInvariantViolation) {
				slog.Error("promptcache: invariant violation during trim, evicting entry", "key", key, "error", err)
			} else {
				slog.Debug("promptcache: trim refused, dropping entry", "key", key, "error", err)
			}
			m.deleteLocked(key)
			m.stats.Misses++
			m.stats.TotalProcessed += uint64(len(tokens))
			return tokens, nil
		}
	}

	e.Tokens = e.Tokens[:p]
	e.touch(now)
	e.recomputeBytes()

	m.stats.Hits++
	reused := p
	processed := len(tokens) - p
	m.stats.TotalReused += uint64(reused)
	m.stats.TotalProcessed += uint64(processed)

	// Detach: the bucket moves from Present(idle) to Present(in-flight).
	// Removing it from the table now means a concurrent lookup on the
	// same key sees Absent, never a half-updated entry.
	m.totalBytes -= e.Bytes
	delete(m.buckets, key)

	return tokens[p:], &Handle{ID: uuid.New(), Layers: e.Layers}
}

// WriteBack admits the fully extended token list and layer sequence as
// the new entry for (model, params), applying quantization promotion,
// replacing any prior entry under the same key, and evicting as needed to
// stay within MaxBytes.
func (m *Manager) WriteBack(model string, fullTokens []int32, h *Handle, params Params) {
	if m == nil || h == nil {
		return
	}

	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	key := ComposeKey(model, params)

	if params.KVBits != nil {
		applied, skipped := promoteEntry(h.Layers, params.KVGroupSize, *params.KVBits, params.KVQuantizationStart)
		m.stats.PromotionsApplied += uint64(applied)
		m.stats.PromotionsSkipped += uint64(skipped)
	}

	entry := &CacheEntry{
		Key:            key,
		Tokens:         append([]int32(nil), fullTokens...),
		Layers:         h.Layers,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	entry.recomputeBytes()

	// Single-entry-per-bucket: any prior entry under this key is gone the
	// moment we start admitting the new one.
	if prior, ok := m.buckets[key]; ok {
		delete(m.buckets, key)
		m.totalBytes -= prior.Bytes
	}

	m.evictLocked(entry.Bytes)

	m.buckets[key] = entry
	m.totalBytes += entry.Bytes
}

// Clear drops all entries and resets total bytes, keeping stats.
func (m *Manager) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make(map[BucketKey]*CacheEntry)
	m.totalBytes = 0
}

// Stats returns the running counters.
func (m *Manager) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Status returns a point-in-time snapshot for the management endpoint.
func (m *Manager) Status() Status {
	if m == nil {
		return Status{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		EntryCount: len(m.buckets),
		Bytes:      m.totalBytes,
		BytesMB:    float64(m.totalBytes) / (1024 * 1024),
		MaxBytesMB: float64(m.cfg.MaxBytes) / (1024 * 1024),
		TTLMinutes: m.cfg.TTL.Minutes(),
		Stats:      m.stats,
	}
}

// DebugDump lists every live entry for troubleshooting. Never called on
// the request path.
func (m *Manager) DebugDump() []EntrySummary {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	out := make([]EntrySummary, 0, len(m.buckets))
	for _, e := range m.buckets {
		out = append(out, EntrySummary{
			Key:         e.Key,
			TokenCount:  len(e.Tokens),
			Bytes:       e.Bytes,
			AgeSeconds:  now.Sub(e.CreatedAt).Seconds(),
			IdleSeconds: now.Sub(e.LastAccessedAt).Seconds(),
		})
	}
	return out
}

// sweepLocked drops every entry whose last_accessed_at is older than ttl.
// Must be called with m.mu held.
func (m *Manager) sweepLocked(now time.Time) {
	for key, e := range m.buckets {
		if !e.validAt(now, m.cfg.TTL) {
			m.totalBytes -= e.Bytes
			delete(m.buckets, key)
		}
	}
}

// deleteLocked removes the entry under key, if any, and adjusts
// total bytes. Must be called with m.mu held.
func (m *Manager) deleteLocked(key BucketKey) {
	if e, ok := m.buckets[key]; ok {
		m.totalBytes -= e.Bytes
		delete(m.buckets, key)
	}
}

// evictLocked repeatedly removes the least-recently-accessed entry until
// admitting `needed` additional bytes would not exceed MaxBytes, or no
// entries remain. Must be called with m.mu held.
func (m *Manager) evictLocked(needed int64) {
	for m.totalBytes+needed > m.cfg.MaxBytes && len(m.buckets) > 0 {
		var oldestKey BucketKey
		var oldest *CacheEntry
		for key, e := range m.buckets {
			if oldest == nil || e.LastAccessedAt.Before(oldest.LastAccessedAt) {
				oldestKey, oldest = key, e
			}
		}
		m.totalBytes -= oldest.Bytes
		delete(m.buckets, oldestKey)
		m.stats.Evictions++
	}
}

// trimLayers trims every layer of an entry down by d positions. If any
// layer refuses (e.g. a non-group-aligned quantized boundary, or an
// invariant violation such as an impossible offset), the whole operation
// is considered refused; the caller drops the entry rather than risk
// per-layer inconsistency. The returned error distinguishes an ordinary
// miss (ErrUnalignedTrim) from a programming-error invariant violation so
// the caller can log at the right severity.
func trimLayers(layers []Layer, d int) error {
	for _, l := range layers {
		if _, err := l.Trim(d); err != nil {
			return err
		}
	}
	return nil
}
