package promptcache

import (
	"strconv"
	"strings"
)

// BucketKey is the deterministic fingerprint used to partition cache
// entries so that only requests sharing model identity, sampling
// parameters, and quantization configuration ever reuse each other's
// attention state.
type BucketKey string

// Params carries the per-request generation parameters the bucket key is
// derived from, plus the knobs the quantization promoter consults on
// write-back. This is the core's view of the enclosing server's request;
// validation of these fields (kv_bits in {4,8}, kv_group_size a positive
// multiple of 8, kv_quantization_start >= 0) happens at the HTTP boundary
// before the server ever calls into the manager.
type Params struct {
	Temperature float32
	TopP        float32

	// KVBits enables quantized KV storage when set to 4 or 8. Nil means
	// the bucket (and the dense storage format) carries no quantization.
	KVBits *int

	// KVGroupSize is the number of scalars per quantization group along
	// the head-dim axis. Only meaningful when KVBits is set. Defaults to
	// 64 at the server boundary.
	KVGroupSize int

	// KVQuantizationStart is the token-offset threshold past which a
	// dense layer is promoted to quantized storage on write-back.
	KVQuantizationStart int

	// Discriminator optionally partitions the bucket further, e.g. by
	// session or user id when the enclosing server runs in multi-user
	// mode. Empty by default, which reproduces the plain single-tenant
	// bucket key.
	Discriminator string
}

// quantTag formats the quantization component of the bucket key: "nokv" when
// quantization is disabled, "kv{bits}g{group}" otherwise.
func (p Params) quantTag() string {
	if p.KVBits == nil {
		return "nokv"
	}
	return "kv" + strconv.Itoa(*p.KVBits) + "g" + strconv.Itoa(p.KVGroupSize)
}

// formatFloat formats a float32 the same way on every platform: fixed
// notation, no exponent, trimmed of insignificant trailing zeros but always
// leaving at least one fractional digit. strconv's 'f' format with an
// explicit precision is locale-independent and reproducible across
// architectures, unlike "%g" which can vary in digit count near precision
// boundaries between compilers.
func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', 4, 32)
}

// ComposeKey derives the bucket key from model identity and the request's
// sampling/quantization parameters. Identical parameter sets
// always collide on the same key; any difference in model, temperature,
// top-p, or quantization configuration produces a distinct bucket.
func ComposeKey(model string, p Params) BucketKey {
	var b strings.Builder
	b.WriteString(model)
	b.WriteByte('|')
	b.WriteString(formatFloat(p.Temperature))
	b.WriteByte('|')
	b.WriteString(formatFloat(p.TopP))
	b.WriteByte('|')
	b.WriteString(p.quantTag())
	if p.Discriminator != "" {
		b.WriteByte('|')
		b.WriteString(p.Discriminator)
	}
	return BucketKey(b.String())
}
