package analyzer

import (
	"math"
	"math/cmplx"
)

// No FFT library appears anywhere in the retrieved example pack (the
// RTP/jitter/stats files under other_examples/ never touch spectral
// analysis), so the windowed dominant-frequency estimate is backed by a
// direct, textbook iterative radix-2 Cooley-Tukey FFT on the standard
// library's complex128/math.cmplx. n must be a power of two.

// fftRadix2 computes the in-place iterative FFT of data, whose length
// must be a power of two.
func fftRadix2(data []complex128) {
	n := len(data)
	if n <= 1 {
		return
	}

	// bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			data[i], data[j] = data[j], data[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		halfSize := size / 2
		angleStep := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < halfSize; k++ {
				w := cmplx.Rect(1, angleStep*float64(k))
				even := data[start+k]
				odd := data[start+k+halfSize] * w
				data[start+k] = even + odd
				data[start+k+halfSize] = even - odd
			}
		}
	}
}

// hannWindow returns the Hann window coefficient for sample index i of n.
func hannWindow(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
}
