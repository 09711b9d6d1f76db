package promptcache

import "time"

// CacheEntry is the unit the manager admits, evicts, and trims: the exact
// token sequence whose attention state a set of per-layer caches holds,
// plus the bookkeeping needed for TTL and byte-bounded admission.
type CacheEntry struct {
	Key    BucketKey
	Tokens []int32
	Layers []Layer

	CreatedAt      time.Time
	LastAccessedAt time.Time
	Bytes          int64
}

// validAt reports whether the entry is still reachable through lookup at
// instant now, i.e. it has not gone stale under ttl.
func (e *CacheEntry) validAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.LastAccessedAt) < ttl
}

// touch advances last_accessed_at to now, the only mutation a cache hit
// performs besides trimming.
func (e *CacheEntry) touch(now time.Time) {
	e.LastAccessedAt = now
}

// recomputeBytes sums each layer's SizeBytes plus the token list's own
// footprint, and stores the result on the entry. Called after every trim
// and on admission, so Bytes always reflects the current live size.
func (e *CacheEntry) recomputeBytes() int64 {
	var total int64
	for _, l := range e.Layers {
		total += l.SizeBytes()
	}
	const wordSize = 4 // int32 token ids
	total += int64(len(e.Tokens)) * wordSize
	e.Bytes = total
	return total
}

// offsets returns the CurrentTokens() of every layer; used to check the
// "every layer shares a common offset equal to len(tokens)" invariant.
func (e *CacheEntry) offsets() []int {
	out := make([]int, len(e.Layers))
	for i, l := range e.Layers {
		out[i] = l.CurrentTokens()
	}
	return out
}
