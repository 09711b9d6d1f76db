package promptcache

import "log/slog"

// promoteLayer converts a dense layer's live region into a Quantized store
// at the given (groupSize, bits). It returns nil, false if l is not a
// *DenseLayer (nothing to promote) or if the dense layer's live tensors
// could not be read out cleanly, in which case the caller keeps the dense
// layer as-is rather than failing the request.
func promoteLayer(l Layer, groupSize, bits int) (*QuantizedLayer, bool) {
	d, ok := l.(*DenseLayer)
	if !ok {
		return nil, false
	}

	offset := d.offset
	q := NewQuantizedLayer(d.kvHeads, d.headDim, groupSize, bits)
	if offset == 0 {
		return q, true
	}

	kTile := Tile{KVHeads: d.kvHeads, HeadDim: d.headDim, Seq: offset, Data: liveSlice(d.kBuf, d)}
	vTile := Tile{KVHeads: d.kvHeads, HeadDim: d.headDim, Seq: offset, Data: liveSlice(d.vBuf, d)}
	if _, err := q.Append(kTile, vTile); err != nil {
		return nil, false
	}
	return q, true
}

// liveSlice extracts the [kvHeads, offset, headDim] live region out of a
// dense layer's [kvHeads, capacity, headDim] backing buffer.
func liveSlice(buf []float32, d *DenseLayer) []float32 {
	out := make([]float32, d.kvHeads*d.offset*d.headDim)
	for h := 0; h < d.kvHeads; h++ {
		srcOff := h * d.capacity * d.headDim
		dstOff := h * d.offset * d.headDim
		n := d.offset * d.headDim
		copy(out[dstOff:dstOff+n], buf[srcOff:srcOff+n])
	}
	return out
}

// promoteEntry applies quantization promotion to every layer of an entry
// whose current offset exceeds quantizationStart, called from write-back.
// It logs a count of promoted layers and never fails the caller: a layer
// that cannot be promoted is left dense.
func promoteEntry(layers []Layer, groupSize, bits, quantizationStart int) (applied, skipped int) {
	for i, l := range layers {
		if l.Kind() != KindDense {
			continue
		}
		if l.CurrentTokens() <= quantizationStart {
			continue
		}
		q, ok := promoteLayer(l, groupSize, bits)
		if !ok {
			skipped++
			slog.Warn("promptcache: quantization promotion failed, keeping dense layer", "layer", i)
			continue
		}
		layers[i] = q
		applied++
	}
	if applied > 0 {
		slog.Debug("promptcache: promoted layers to quantized KV cache", "count", applied, "bits", bits, "group_size", groupSize)
	}
	return applied, skipped
}
