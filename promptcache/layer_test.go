package promptcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tileFor(kvHeads, headDim, seq int, fill func(h, s, d int) float32) Tile {
	data := make([]float32, kvHeads*seq*headDim)
	for h := 0; h < kvHeads; h++ {
		for s := 0; s < seq; s++ {
			for d := 0; d < headDim; d++ {
				data[h*seq*headDim+s*headDim+d] = fill(h, s, d)
			}
		}
	}
	return Tile{KVHeads: kvHeads, HeadDim: headDim, Seq: seq, Data: data}
}

func TestDenseLayerAppendGrowsAndTrimDoesNotRealloc(t *testing.T) {
	d := NewDenseLayer(2, 4, 4)
	kTile := tileFor(2, 4, 6, func(h, s, d int) float32 { return float32(h*100 + s*10 + d) })
	vTile := tileFor(2, 4, 6, func(h, s, d int) float32 { return float32(h*1000 + s*10 + d) })

	n, err := d.Append(kTile, vTile)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, 8, d.capacity) // grew from 4 to roundUp(6,4)=8
	require.Equal(t, 6, d.CurrentTokens())

	bufBefore := d.kBuf

	removed, err := d.Trim(2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	require.Equal(t, 4, d.CurrentTokens())
	require.Same(t, &bufBefore[0], &d.kBuf[0]) // same backing array, no realloc
}

func TestDenseLayerViewReturnsLiveRegionOnly(t *testing.T) {
	d := NewDenseLayer(1, 2, 4)
	kTile := tileFor(1, 2, 3, func(h, s, d int) float32 { return float32(s*10 + d) })
	vTile := tileFor(1, 2, 3, func(h, s, d int) float32 { return float32(s*10 + d) })
	_, err := d.Append(kTile, vTile)
	require.NoError(t, err)

	view, err := d.View(true)
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Equal(t, 1*3*2, view.Size())
}

func TestQuantizedLayerGroupAlignedAppendAndTrim(t *testing.T) {
	q := NewQuantizedLayer(1, 2, 4, 8)
	kTile := tileFor(1, 2, 4, func(h, s, d int) float32 { return float32(s + d) })
	vTile := tileFor(1, 2, 4, func(h, s, d int) float32 { return float32(s + d) })

	n, err := q.Append(kTile, vTile)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Len(t, q.kGroups, 1)
	require.Equal(t, 0, q.tailLen)

	removed, err := q.Trim(4)
	require.NoError(t, err)
	require.Equal(t, 4, removed)
	require.Equal(t, 0, q.offset)
	require.Len(t, q.kGroups, 0)
}

func TestQuantizedLayerOpenTailRequantizeOnTrim(t *testing.T) {
	q := NewQuantizedLayer(1, 2, 4, 8)
	kTile := tileFor(1, 2, 6, func(h, s, d int) float32 { return float32(s + d) })
	vTile := tileFor(1, 2, 6, func(h, s, d int) float32 { return float32(s + d) })
	_, err := q.Append(kTile, vTile)
	require.NoError(t, err)
	require.Equal(t, 2, q.tailLen) // 6 = 1 full group of 4 + open tail of 2

	removed, err := q.Trim(1)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 5, q.offset)
	require.Equal(t, 1, q.tailLen)
}

func TestQuantizedLayerRefusesUnalignedTrimBeyondTail(t *testing.T) {
	q := NewQuantizedLayer(1, 2, 4, 8)
	kTile := tileFor(1, 2, 4, func(h, s, d int) float32 { return float32(s + d) })
	vTile := tileFor(1, 2, 4, func(h, s, d int) float32 { return float32(s + d) })
	_, err := q.Append(kTile, vTile)
	require.NoError(t, err)

	_, err = q.Trim(1)
	require.ErrorIs(t, err, ErrUnalignedTrim)
	require.Equal(t, 4, q.offset) // untouched on refusal
}

func TestQuantizeDequantizeRoundTripsApproximately(t *testing.T) {
	raw := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	packed, scale, bias := quantizeChannel(raw, 8)
	out := dequantizeChannel(packed, len(raw), 8, scale, bias)
	for i, v := range raw {
		require.InDelta(t, v, out[i], 0.05)
	}
}
