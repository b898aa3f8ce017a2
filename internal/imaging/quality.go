package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/frnnnnn/Vision360/internal/config"
)

// RejectReason names why a frame failed the quality gate. Rejection is a
// normal negative result, not an error; callers count it and drop the frame.
type RejectReason string

const (
	ReasonNone     RejectReason = ""
	ReasonBlur     RejectReason = "blur"
	ReasonExposure RejectReason = "exposure"
)

// QualityGate accepts or rejects a captured frame before any recognition
// call is made. It is a pure function of pixel data and configuration.
type QualityGate struct {
	blurThreshold float64
	brightnessMin float64
	brightnessMax float64
}

// NewQualityGate builds a gate from the loaded thresholds.
func NewQualityGate(t config.Thresholds) *QualityGate {
	return &QualityGate{
		blurThreshold: t.BlurThreshold,
		brightnessMin: t.BrightnessMin,
		brightnessMax: t.BrightnessMax,
	}
}

// Accept runs the sharpness and exposure checks independently; the frame
// passes only if both do.
func (g *QualityGate) Accept(img image.Image) (bool, RejectReason) {
	gray := Grayscale(img)

	if LaplacianVariance(gray) < g.blurThreshold {
		return false, ReasonBlur
	}

	mean := MeanIntensity(gray)
	if mean < g.brightnessMin || mean > g.brightnessMax {
		return false, ReasonExposure
	}

	return true, ReasonNone
}

// Decode parses raw frame bytes into an image. Cameras submit JPEG; PNG is
// accepted for completeness.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// Grayscale converts an image to 8-bit grayscale for metric computation.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// LaplacianVariance computes the variance of the 4-neighbor discrete
// Laplacian response. Low variance means few edges, i.e. a blurry frame.
func LaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			lap := float64(gray.GrayAt(x-1, y).Y) +
				float64(gray.GrayAt(x+1, y).Y) +
				float64(gray.GrayAt(x, y-1).Y) +
				float64(gray.GrayAt(x, y+1).Y) -
				4*center
			sum += lap
			sumSq += lap * lap
			n++
		}
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// MeanIntensity computes the average pixel value in [0,255].
func MeanIntensity(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	return sum / float64(n)
}
