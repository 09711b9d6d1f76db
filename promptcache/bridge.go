package promptcache

// ModelShape describes the per-layer tensor dimensions a fresh (miss-path)
// cache allocation needs: the number of transformer layers, the number of
// KV heads, and the head dimension. The Generation Bridge asks for this
// instead of accepting raw Layer values so it can allocate a uniform dense
// layer sequence on a miss without the request handler ever touching a
// Layer directly.
type ModelShape struct {
	NumLayers int
	KVHeads   int
	HeadDim   int
	Step      int
}

// GenerationBridge is the interface the request handler actually calls:
// it converts {prompt tokens, bucket key} into {tokens to evaluate, cache
// handle}, and later hands the same handle back with the full token list
// for write-back. The handler never sees a Layer, a DenseLayer, or a
// QuantizedLayer.
type GenerationBridge struct {
	mgr   *Manager
	shape ModelShape
}

// NewGenerationBridge wraps a Manager (which may be nil, for a disabled
// cache) with the model shape needed to allocate fresh layers on a miss.
func NewGenerationBridge(mgr *Manager, shape ModelShape) *GenerationBridge {
	return &GenerationBridge{mgr: mgr, shape: shape}
}

// Begin looks up a cached prefix for (model, params) and returns the
// suffix of promptTokens that must actually be evaluated, plus the handle
// to feed into the decode step. On a miss it allocates a fresh dense layer
// sequence; the whole prompt must then be evaluated.
func (b *GenerationBridge) Begin(model string, promptTokens []int32, params Params) ([]int32, *Handle) {
	suffix, h := b.mgr.Lookup(model, promptTokens, params)
	if h != nil {
		return suffix, h
	}
	return promptTokens, b.freshHandle()
}

func (b *GenerationBridge) freshHandle() *Handle {
	layers := make([]Layer, b.shape.NumLayers)
	for i := range layers {
		layers[i] = NewDenseLayer(b.shape.KVHeads, b.shape.HeadDim, b.shape.Step)
	}
	return &Handle{Layers: layers}
}

// End hands the fully extended token list and handle back to the manager
// for admission. A request that was cancelled before generating anything
// should simply never call End; the handle and its layers are released
// with it.
func (b *GenerationBridge) End(model string, fullTokens []int32, params Params, h *Handle) {
	b.mgr.WriteBack(model, fullTokens, h, params)
}
