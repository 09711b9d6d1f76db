package promptcache

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// quantGroup holds one group's worth of packed key or value data for every
// head and head-dim channel: groupSize (or fewer, for the still-open
// trailing group) consecutive token positions, packed to `bits`-wide
// integers with a per-(head, dim) scale and bias stored at half precision.
type quantGroup struct {
	length int // token positions covered by this group, <= groupSize
	packed []byte
	scale  []float16.Float16 // len kvHeads*headDim
	bias   []float16.Float16 // len kvHeads*headDim
}

// QuantizedLayer is a group-packed backing store: per-group packed K/V
// integers plus per-group scale/bias, alongside the running offset and the
// (group_size, bits) the layer was built with.
type QuantizedLayer struct {
	kvHeads   int
	headDim   int
	groupSize int
	bits      int

	offset int

	kGroups []quantGroup
	vGroups []quantGroup

	// tailRaw retains the unpacked scalars of the still-open trailing
	// group so Append can extend it without re-deriving it from packed
	// (lossy) data, and so Trim can re-quantize a non-group-aligned
	// boundary that falls inside it instead of refusing outright.
	tailRawK []float32 // [kvHeads][headDim][tailLen]
	tailRawV []float32
	tailLen  int
}

// NewQuantizedLayer allocates an empty quantized layer. bits must be 4 or
// 8; groupSize must be a positive multiple of 8. Both are validated by the
// caller before construction.
func NewQuantizedLayer(kvHeads, headDim, groupSize, bits int) *QuantizedLayer {
	return &QuantizedLayer{kvHeads: kvHeads, headDim: headDim, groupSize: groupSize, bits: bits}
}

func (q *QuantizedLayer) Kind() LayerKind { return KindQuantized }

func (q *QuantizedLayer) CurrentTokens() int { return q.offset }

func (q *QuantizedLayer) IsTrimmable() bool { return true }

func (q *QuantizedLayer) SizeBytes() int64 {
	var n int64
	for _, g := range q.kGroups {
		n += int64(len(g.packed)) + 2*int64(len(g.scale)) + 2*int64(len(g.bias))
	}
	for _, g := range q.vGroups {
		n += int64(len(g.packed)) + 2*int64(len(g.scale)) + 2*int64(len(g.bias))
	}
	return n
}

// packedBytesFor returns the number of bytes needed to pack count values
// of the given bit width for one (head, dim) channel.
func packedBytesFor(count, bits int) int {
	valsPerByte := 8 / bits
	return ceilDiv(count, valsPerByte)
}

// quantizeChannel packs one channel's raw values (length <= groupSize)
// into `bits`-wide integers, returning the packed bytes plus scale/bias.
func quantizeChannel(raw []float32, bits int) ([]byte, float16.Float16, float16.Float16) {
	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	levels := float32((int(1) << uint(bits)) - 1)
	scale := (hi - lo) / levels
	if scale == 0 {
		scale = 1
	}
	out := make([]byte, packedBytesFor(len(raw), bits))
	valsPerByte := 8 / bits
	for i, v := range raw {
		q := int(math.Round(float64((v - lo) / scale)))
		q = max(0, min(int(levels), q))
		byteIdx := i / valsPerByte
		shift := uint(i%valsPerByte) * uint(bits)
		out[byteIdx] |= byte(q) << shift
	}
	return out, float16.Fromfloat32(scale), float16.Fromfloat32(lo)
}

func dequantizeChannel(packed []byte, count, bits int, scale, bias float16.Float16) []float32 {
	s, b := scale.Float32(), bias.Float32()
	valsPerByte := 8 / bits
	mask := byte((1 << uint(bits)) - 1)
	out := make([]float32, count)
	for i := range out {
		byteIdx := i / valsPerByte
		shift := uint(i%valsPerByte) * uint(bits)
		q := (packed[byteIdx] >> shift) & mask
		out[i] = float32(q)*s + b
	}
	return out
}

// quantizeGroup packs one (possibly partial) group spanning every head and
// head-dim channel, given raw data laid out [kvHeads][headDim][length].
func quantizeGroup(channelMajor []float32, kvHeads, headDim, length, bits int) quantGroup {
	g := quantGroup{
		length: length,
		scale:  make([]float16.Float16, kvHeads*headDim),
		bias:   make([]float16.Float16, kvHeads*headDim),
	}
	bytesPerChannel := packedBytesFor(length, bits)
	g.packed = make([]byte, kvHeads*headDim*bytesPerChannel)
	for h := 0; h < kvHeads; h++ {
		for d := 0; d < headDim; d++ {
			chanIdx := h*headDim + d
			channel := channelMajor[chanIdx*length : (chanIdx+1)*length]
			packed, scale, bias := quantizeChannel(channel, bits)
			copy(g.packed[chanIdx*bytesPerChannel:], packed)
			g.scale[chanIdx] = scale
			g.bias[chanIdx] = bias
		}
	}
	return g
}

// reshapeToChannels converts a Tile ([kv_heads, seq, head_dim], with seq
// offset by tailLen already folded in by the caller) plus a retained raw
// tail into [kvHeads][headDim][combined-length] layout so quantizeGroup
// can slice one channel at a time contiguously.
func reshapeToChannels(tailRaw []float32, tailLen int, tile Tile, kvHeads, headDim int) []float32 {
	combined := tailLen + tile.Seq
	out := make([]float32, kvHeads*headDim*combined)
	for h := 0; h < kvHeads; h++ {
		for d := 0; d < headDim; d++ {
			chanIdx := h*headDim + d
			dst := out[chanIdx*combined : (chanIdx+1)*combined]
			if tailLen > 0 {
				copy(dst[:tailLen], tailRaw[chanIdx*tailLen:(chanIdx+1)*tailLen])
			}
			for s := 0; s < tile.Seq; s++ {
				dst[tailLen+s] = tile.Data[h*tile.Seq*tile.HeadDim+s*tile.HeadDim+d]
			}
		}
	}
	return out
}

// appendSide quantizes combined (tailRaw ++ new tile data, channel-major)
// into whole groupSize groups plus a possibly-open trailing group, and
// appends/replaces that state on top of the existing closed groups.
func (q *QuantizedLayer) appendSide(groups []quantGroup, combined []float32, combinedLen int) ([]quantGroup, []float32, int) {
	// Drop a previously open trailing group; it will be rebuilt below.
	if q.tailLen > 0 && len(groups) > 0 {
		groups = groups[:len(groups)-1]
	}

	pos := 0
	for combinedLen-pos >= q.groupSize {
		groups = append(groups, sliceGroupAndQuantize(combined, pos, q.groupSize, combinedLen, q.kvHeads, q.headDim, q.bits))
		pos += q.groupSize
	}

	remaining := combinedLen - pos
	var newTailRaw []float32
	newTailLen := remaining
	if remaining > 0 {
		groups = append(groups, sliceGroupAndQuantize(combined, pos, remaining, combinedLen, q.kvHeads, q.headDim, q.bits))
		newTailRaw = make([]float32, q.kvHeads*q.headDim*remaining)
		for ch := 0; ch < q.kvHeads*q.headDim; ch++ {
			copy(newTailRaw[ch*remaining:(ch+1)*remaining], combined[ch*combinedLen+pos:ch*combinedLen+pos+remaining])
		}
	}
	return groups, newTailRaw, newTailLen
}

// sliceGroupAndQuantize extracts one group's worth of channel-major data
// out of a channel-major buffer whose per-channel stride is combinedLen,
// and quantizes it.
func sliceGroupAndQuantize(combined []float32, start, length, stride, kvHeads, headDim, bits int) quantGroup {
	flat := make([]float32, kvHeads*headDim*length)
	for ch := 0; ch < kvHeads*headDim; ch++ {
		copy(flat[ch*length:(ch+1)*length], combined[ch*stride+start:ch*stride+start+length])
	}
	return quantizeGroup(flat, kvHeads, headDim, length, bits)
}

// Append quantizes keysNew/valuesNew into the same (group_size, bits)
// format and concatenates the result.
func (q *QuantizedLayer) Append(keysNew, valuesNew Tile) (int, error) {
	if err := keysNew.validate(); err != nil {
		return 0, fmt.Errorf("promptcache: quantized append key tile: %w", err)
	}
	if err := valuesNew.validate(); err != nil {
		return 0, fmt.Errorf("promptcache: quantized append value tile: %w", err)
	}
	if keysNew.Seq != valuesNew.Seq || keysNew.KVHeads != q.kvHeads || keysNew.HeadDim != q.headDim {
		return 0, fmt.Errorf("%w: tile shape does not match layer", ErrInvariantViolation)
	}

	combinedLen := q.tailLen + keysNew.Seq
	kCombined := reshapeToChannels(q.tailRawK, q.tailLen, keysNew, q.kvHeads, q.headDim)
	vCombined := reshapeToChannels(q.tailRawV, q.tailLen, valuesNew, q.kvHeads, q.headDim)

	kGroups, tailRawK, tailLenK := q.appendSide(q.kGroups, kCombined, combinedLen)
	vGroups, tailRawV, _ := q.appendSide(q.vGroups, vCombined, combinedLen)

	q.kGroups, q.vGroups = kGroups, vGroups
	q.tailRawK, q.tailRawV = tailRawK, tailRawV
	q.tailLen = tailLenK
	q.offset += keysNew.Seq
	return q.offset, nil
}

// Trim removes the last n positions. It succeeds if the resulting offset
// is either a multiple of group_size (whole groups dropped) or still
// within the retained raw tail (the open group is re-quantized from
// tailRaw). Otherwise it refuses and leaves the layer untouched; the
// caller treats that as a cache miss.
func (q *QuantizedLayer) Trim(n int) (int, error) {
	if n < 0 || n > q.offset {
		return 0, fmt.Errorf("%w: trim(%d) on offset %d", ErrInvariantViolation, n, q.offset)
	}
	if n == 0 {
		return 0, nil
	}

	newOffset := q.offset - n
	tailStart := q.offset - q.tailLen

	switch {
	case newOffset%q.groupSize == 0:
		closedGroups := newOffset / q.groupSize
		q.kGroups = q.kGroups[:closedGroups]
		q.vGroups = q.vGroups[:closedGroups]
		q.tailRawK, q.tailRawV, q.tailLen = nil, nil, 0
	case newOffset >= tailStart:
		newTailLen := newOffset - tailStart
		q.kGroups = q.kGroups[:len(q.kGroups)-1]
		q.vGroups = q.vGroups[:len(q.vGroups)-1]
		if newTailLen > 0 {
			q.kGroups = append(q.kGroups, requantizeTail(q.tailRawK, newTailLen, q.kvHeads, q.headDim, q.bits))
			q.vGroups = append(q.vGroups, requantizeTail(q.tailRawV, newTailLen, q.kvHeads, q.headDim, q.bits))
			q.tailRawK = sliceChannels(q.tailRawK, q.tailLen, newTailLen, q.kvHeads*q.headDim)
			q.tailRawV = sliceChannels(q.tailRawV, q.tailLen, newTailLen, q.kvHeads*q.headDim)
		} else {
			q.tailRawK, q.tailRawV = nil, nil
		}
		q.tailLen = newTailLen
	default:
		return 0, ErrUnalignedTrim
	}

	q.offset = newOffset
	return n, nil
}

func requantizeTail(tailRaw []float32, newLen, kvHeads, headDim, bits int) quantGroup {
	flat := sliceChannels(tailRaw, len(tailRaw)/(kvHeads*headDim), newLen, kvHeads*headDim)
	return quantizeGroup(flat, kvHeads, headDim, newLen, bits)
}

func sliceChannels(src []float32, oldStride, newLen, channels int) []float32 {
	out := make([]float32, channels*newLen)
	for ch := 0; ch < channels; ch++ {
		copy(out[ch*newLen:(ch+1)*newLen], src[ch*oldStride:ch*oldStride+newLen])
	}
	return out
}
