// Package transcode implements the quantizer and bitmask transcoder that
// turn a decoded level2.RadarFrame into the compact grid artifacts written
// by the frame store.
package transcode

import "github.com/l2fetch/l2fetch/internal/level2"

// ProductRange is the per-product affine range used by quantize/dequantize.
type ProductRange struct {
	Min float32
	Max float32
}

var productRanges = map[level2.Product]ProductRange{
	level2.ProductReflectivity:  {Min: -32.0, Max: 94.5},
	level2.ProductVelocity:      {Min: -100.0, Max: 100.0},
	level2.ProductSpectrumWidth: {Min: 0.0, Max: 64.0},
	level2.ProductZDR:           {Min: -8.0, Max: 8.0},
	level2.ProductPHI:           {Min: 0.0, Max: 360.0},
	level2.ProductRHO:           {Min: 0.0, Max: 1.1},
}

// RangeFor returns the quantization range for a product and whether it is
// known. Unknown products have no store representation.
func RangeFor(p level2.Product) (ProductRange, bool) {
	r, ok := productRanges[p]
	return r, ok
}

// Quantize maps a dequantized moment value to its u8 storage form. A
// quantized zero means "no data" regardless of the true value.
func Quantize(v float32, r ProductRange) uint8 {
	frac := (v - r.Min) / (r.Max - r.Min)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return uint8(roundHalfUp(frac * 255))
}

// Dequantize inverts Quantize. Callers treat a stored zero as no-data before
// ever calling this.
func Dequantize(q uint8, r ProductRange) float32 {
	return r.Min + (float32(q)/255.0)*(r.Max-r.Min)
}

func roundHalfUp(v float32) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return int(v - 0.5)
}
