package promptcache

import (
	"fmt"

	"github.com/pdevine/tensor"
)

// DefaultStep is the block size capacity grows by when a dense layer's
// live region would otherwise overflow its backing tensor.
const DefaultStep = 256

// DenseLayer is a growable K/V backing store: two [kv_heads, capacity, head_dim] tensors
// where only the first `offset` positions along the middle axis are live.
// Capacity grows in blocks of `step` via copy-and-concatenate; trim never
// reallocates, it only moves the offset back.
type DenseLayer struct {
	kvHeads int
	headDim int
	step    int

	offset   int
	capacity int

	kBuf []float32 // [kvHeads][capacity][headDim], row-major
	vBuf []float32
}

// NewDenseLayer allocates a dense layer with an initial capacity of one
// step block.
func NewDenseLayer(kvHeads, headDim, step int) *DenseLayer {
	if step <= 0 {
		step = DefaultStep
	}
	d := &DenseLayer{kvHeads: kvHeads, headDim: headDim, step: step}
	d.grow(step)
	return d
}

func (d *DenseLayer) Kind() LayerKind { return KindDense }

func (d *DenseLayer) CurrentTokens() int { return d.offset }

func (d *DenseLayer) IsTrimmable() bool { return true }

// SizeBytes is Σ element_count × element_width over the two owned
// tensors, counted against the allocated capacity (not just the live
// region), since that is what is actually resident.
func (d *DenseLayer) SizeBytes() int64 {
	elems := int64(d.kvHeads) * int64(d.capacity) * int64(d.headDim)
	return 2 * elems * 4 // float32 K and V, 4 bytes each
}

// grow reallocates both buffers to newCapacity positions, preserving the
// live [..offset) region of each per-head block. Per-head blocks are not
// contiguous across a capacity change, so growth must re-lay the data out
// head by head rather than a single flat copy.
func (d *DenseLayer) grow(newCapacity int) {
	newK := make([]float32, d.kvHeads*newCapacity*d.headDim)
	newV := make([]float32, d.kvHeads*newCapacity*d.headDim)
	if d.kBuf != nil {
		for h := 0; h < d.kvHeads; h++ {
			srcOff := h * d.capacity * d.headDim
			dstOff := h * newCapacity * d.headDim
			live := d.offset * d.headDim
			copy(newK[dstOff:dstOff+live], d.kBuf[srcOff:srcOff+live])
			copy(newV[dstOff:dstOff+live], d.vBuf[srcOff:srcOff+live])
		}
	}
	d.kBuf, d.vBuf = newK, newV
	d.capacity = newCapacity
}

// Append writes keysNew/valuesNew into [offset, offset+S) along the
// position axis, growing capacity by ceil(S/step)*step first if needed.
func (d *DenseLayer) Append(keysNew, valuesNew Tile) (int, error) {
	if err := keysNew.validate(); err != nil {
		return 0, fmt.Errorf("promptcache: dense append key tile: %w", err)
	}
	if err := valuesNew.validate(); err != nil {
		return 0, fmt.Errorf("promptcache: dense append value tile: %w", err)
	}
	if keysNew.Seq != valuesNew.Seq || keysNew.KVHeads != d.kvHeads || keysNew.HeadDim != d.headDim {
		return 0, fmt.Errorf("%w: tile shape does not match layer", ErrInvariantViolation)
	}

	s := keysNew.Seq
	if d.offset+s > d.capacity {
		d.grow(roundUp(d.offset+s, d.step))
	}

	for h := 0; h < d.kvHeads; h++ {
		dstBase := h*d.capacity*d.headDim + d.offset*d.headDim
		srcBase := h * s * d.headDim
		copy(d.kBuf[dstBase:dstBase+s*d.headDim], keysNew.Data[srcBase:srcBase+s*d.headDim])
		copy(d.vBuf[dstBase:dstBase+s*d.headDim], valuesNew.Data[srcBase:srcBase+s*d.headDim])
	}
	d.offset += s
	return d.offset, nil
}

// Trim removes the last n positions by moving the offset back. The
// underlying buffer is retained; trim never reallocates.
func (d *DenseLayer) Trim(n int) (int, error) {
	if n < 0 || n > d.offset {
		return 0, fmt.Errorf("%w: trim(%d) on offset %d", ErrInvariantViolation, n, d.offset)
	}
	d.offset -= n
	return n, nil
}

// View returns a *tensor.Dense over the live [kv_heads, offset, head_dim]
// region of K (or V), suitable for handing to an attention kernel. Built
// fresh on demand rather than kept resident, since offset changes on every
// append/trim.
func (d *DenseLayer) View(key bool) (tensor.Tensor, error) {
	buf := d.vBuf
	if key {
		buf = d.kBuf
	}
	live := make([]float32, d.kvHeads*d.offset*d.headDim)
	for h := 0; h < d.kvHeads; h++ {
		srcOff := h * d.capacity * d.headDim
		dstOff := h * d.offset * d.headDim
		n := d.offset * d.headDim
		copy(live[dstOff:dstOff+n], buf[srcOff:srcOff+n])
	}
	return tensor.New(tensor.WithShape(d.kvHeads, d.offset, d.headDim), tensor.WithBacking(live)), nil
}
