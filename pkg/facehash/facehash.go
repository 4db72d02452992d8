// Package facehash implements the perceptual average-hash used for
// face-signature credentials, and Hamming-distance matching between two
// signatures. It operates purely on rasters and hex strings: no I/O.
package facehash

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/bits"
	"strings"
)

const (
	// DefaultHashSize is the side length of the downsampled grid; an 8x8
	// grid yields a 64-bit signature (16 hex chars).
	DefaultHashSize = 8

	// ModelVersion identifies the hashing algorithm and parameters carried
	// with every enrollment.
	ModelVersion = "ahash-8x8"

	// DefaultThreshold is the default maximum Hamming distance accepted at
	// enrollment time (10 of 64 bits).
	DefaultThreshold = 10

	// MaxDistance is the sentinel returned for non-comparable signatures
	// (mismatched length or malformed hex). It always rejects.
	MaxDistance = math.MaxInt
)

var errEmptyImage = errors.New("facehash: empty image")

// AverageHash computes the perceptual hash of a captured raster: the image is
// downsampled to hashSize x hashSize by box averaging, each cell's luminance
// (0.299R + 0.587G + 0.114B, rounded) is compared against the mean luminance
// of the grid, and the resulting bits are packed MSB-first into lowercase
// hex. Identical rasters always produce identical signatures.
func AverageHash(img image.Image, hashSize int) (string, error) {
	// hashSize must be even so the bit count packs into whole hex digits.
	if hashSize <= 0 || hashSize%2 != 0 {
		return "", fmt.Errorf("facehash: invalid hash size %d", hashSize)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return "", errEmptyImage
	}

	cells := make([]int, hashSize*hashSize)
	var total int64
	for cy := 0; cy < hashSize; cy++ {
		for cx := 0; cx < hashSize; cx++ {
			x0 := bounds.Min.X + cx*w/hashSize
			x1 := bounds.Min.X + (cx+1)*w/hashSize
			y0 := bounds.Min.Y + cy*h/hashSize
			y1 := bounds.Min.Y + (cy+1)*h/hashSize
			if x1 <= x0 {
				x1 = x0 + 1
			}
			if y1 <= y0 {
				y1 = y0 + 1
			}

			var sum, n int64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += int64(luminance(img, x, y))
					n++
				}
			}
			v := int(math.Round(float64(sum) / float64(n)))
			cells[cy*hashSize+cx] = v
			total += int64(v)
		}
	}

	mean := float64(total) / float64(len(cells))

	var sb strings.Builder
	for i := 0; i < len(cells); i += 4 {
		var nibble int
		for j := 0; j < 4; j++ {
			nibble <<= 1
			if float64(cells[i+j]) > mean {
				nibble |= 1
			}
		}
		fmt.Fprintf(&sb, "%x", nibble)
	}
	return sb.String(), nil
}

// Distance returns the Hamming distance between two equal-length hex
// signatures: the popcount of the XOR of each pair of hex digits, summed.
// Signatures of different lengths come from mismatched hash configurations
// and are categorically non-comparable, so Distance returns MaxDistance
// rather than an error.
func Distance(a, b string) int {
	if len(a) == 0 || len(a) != len(b) {
		return MaxDistance
	}
	var d int
	for i := 0; i < len(a); i++ {
		x, ok1 := hexVal(a[i])
		y, ok2 := hexVal(b[i])
		if !ok1 || !ok2 {
			return MaxDistance
		}
		d += bits.OnesCount8(x ^ y)
	}
	return d
}

// Matches reports whether two signatures are within threshold bits of each
// other. Non-comparable signatures never match, regardless of threshold.
func Matches(a, b string, threshold int) bool {
	d := Distance(a, b)
	if d == MaxDistance {
		return false
	}
	return d <= threshold
}

// ValidSignature reports whether s is a well-formed signature for the given
// hash size: lowercase hex of length hashSize^2/4.
func ValidSignature(s string, hashSize int) bool {
	if len(s) != hashSize*hashSize/4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if _, ok := hexVal(s[i]); !ok {
			return false
		}
	}
	return true
}

func luminance(img image.Image, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	// RGBA returns 16-bit channels; scale to 8-bit before weighting.
	return int(math.Round(0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)))
}

func hexVal(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
