package promptcache

import "errors"

// Sentinel errors surfaced by the core. Per the failure taxonomy, none of
// these should ever propagate to a user-facing request; callers either
// branch on them internally or log and fall back to an uncached path.
var (
	// ErrUnalignedTrim is returned by a Quantized layer when a trim
	// boundary does not land on a group boundary and the layer has no
	// retained raw buffer to re-quantize from. The caller must treat this
	// as a cache miss, never as a corruption.
	ErrUnalignedTrim = errors.New("promptcache: trim boundary not aligned to group size")

	// ErrInvariantViolation marks a programming error: mismatched layer
	// counts, a negative byte estimate, an offset that exceeds a tensor's
	// extent. The manager aborts the in-flight operation and evicts the
	// offending entry rather than returning bad data.
	ErrInvariantViolation = errors.New("promptcache: cache invariant violated")

	// errShapeMismatch marks a tile whose Data length does not match its
	// declared KVHeads/Seq/HeadDim. Always a caller bug; wrapped into
	// ErrInvariantViolation before crossing the manager boundary.
	errShapeMismatch = errors.New("promptcache: tile shape does not match data length")
)
