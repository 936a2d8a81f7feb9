package reference

import (
	"fmt"
	"math"
)

// LineShape is an instrument line-shape kernel evaluated on an initial
// wavelength calibration (spec §4.3), normalised so its values sum to 1.
type LineShape struct {
	Kernel []float64 // symmetric, odd length, centred at Kernel[len/2]
}

// NewGaussianLineShape builds a normalised discrete Gaussian kernel of the
// given full width at half maximum, in pixel units, used when a measured
// slit-function file is unavailable.
func NewGaussianLineShape(fwhmPixels float64, halfWidthPixels int) *LineShape {
	sigma := fwhmPixels / 2.35482004503
	n := 2*halfWidthPixels + 1
	kernel := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		x := float64(i - halfWidthPixels)
		v := gaussian(x, sigma)
		kernel[i] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return &LineShape{Kernel: kernel}
}

func gaussian(x, sigma float64) float64 {
	if sigma <= 0 {
		if x == 0 {
			return 1
		}
		return 0
	}
	return math.Exp(-0.5 * (x / sigma) * (x / sigma))
}

// ConvolveFromHighRes convolves a high-resolution cross section (on a
// finer, evenly spaced wavelength grid) with the instrument line shape to
// produce a reference aligned with a specific device at a specific
// calibration epoch (spec §4.3). highRes and the returned Reference share
// the caller-provided species label and the device's pixel count.
func ConvolveFromHighRes(species string, highRes []float64, shape *LineShape, pixelCount int) (*Reference, error) {
	if len(highRes) == 0 {
		return nil, fmt.Errorf("reference: ConvolveFromHighRes: empty high-resolution input")
	}
	if pixelCount <= 0 {
		return nil, fmt.Errorf("reference: ConvolveFromHighRes: invalid pixel count %d", pixelCount)
	}
	convolved := convolve(highRes, shape.Kernel)
	// Downsample (or hold) the convolved high-resolution trace onto the
	// device's pixel grid by linear interpolation across its full span.
	out := make([]float64, pixelCount)
	scale := float64(len(convolved)-1) / float64(maxInt(pixelCount-1, 1))
	for i := 0; i < pixelCount; i++ {
		out[i] = interpAt(convolved, float64(i)*scale)
	}
	return &Reference{Species: species, Values: out}, nil
}

func convolve(signal, kernel []float64) []float64 {
	half := len(kernel) / 2
	out := make([]float64, len(signal))
	for i := range signal {
		var acc float64
		for k, kv := range kernel {
			si := i + k - half
			if si < 0 {
				si = 0
			} else if si >= len(signal) {
				si = len(signal) - 1
			}
			acc += signal[si] * kv
		}
		out[i] = acc
	}
	return out
}
