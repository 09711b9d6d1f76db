package promptcache

// Stats is the running counter set returned by Manager.Stats. HitRate and
// AvgReused are derived, not stored.
type Stats struct {
	Hits           uint64
	Misses         uint64
	Evictions      uint64
	TotalReused    uint64
	TotalProcessed uint64

	// PromotionsApplied/PromotionsSkipped count the promoter's outcomes
	// across all write-backs: layers converted to quantized storage vs.
	// layers left dense because promotion failed.
	PromotionsApplied uint64
	PromotionsSkipped uint64
}

// HitRate is hits / (hits+misses), or 0 if there have been no lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// AvgReused is total_reused / max(1, hits).
func (s Stats) AvgReused() float64 {
	if s.Hits == 0 {
		return 0
	}
	return float64(s.TotalReused) / float64(s.Hits)
}

// Status is the point-in-time snapshot returned by Manager.Status and
// served at GET .../cache/status.
type Status struct {
	EntryCount int
	Bytes      int64
	BytesMB    float64
	MaxBytesMB float64
	TTLMinutes float64
	Stats      Stats
}

// EntrySummary is one line of Manager.DebugDump's introspection output;
// never used on the request path.
type EntrySummary struct {
	Key         BucketKey
	TokenCount  int
	Bytes       int64
	AgeSeconds  float64
	IdleSeconds float64
}
