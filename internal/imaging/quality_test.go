package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frnnnnn/Vision360/internal/config"
)

func testThresholds() config.Thresholds {
	return config.Thresholds{
		BlurThreshold: 100,
		BrightnessMin: 30,
		BrightnessMax: 220,
	}
}

// uniformImage is maximally blurry: zero Laplacian response everywhere.
func uniformImage(level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	return img
}

// checkerImage alternates black and white pixels: strong edges, high
// Laplacian variance, mean intensity near 128.
func checkerImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestQualityGate_RejectsBlurryFrame(t *testing.T) {
	gate := NewQualityGate(testThresholds())

	ok, reason := gate.Accept(uniformImage(128))

	assert.False(t, ok)
	assert.Equal(t, ReasonBlur, reason)
}

func TestQualityGate_AcceptsSharpWellExposedFrame(t *testing.T) {
	gate := NewQualityGate(testThresholds())

	ok, reason := gate.Accept(checkerImage())

	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

func TestQualityGate_RejectsUnderexposedFrame(t *testing.T) {
	// Dark checkerboard: sharp but too dark.
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 40})
			}
		}
	}

	gate := NewQualityGate(testThresholds())
	ok, reason := gate.Accept(img)

	assert.False(t, ok)
	assert.Equal(t, ReasonExposure, reason)
}

func TestQualityGate_RejectsOverexposedFrame(t *testing.T) {
	// Bright checkerboard: sharp but blown out.
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			level := uint8(255)
			if (x+y)%2 == 0 {
				level = 200
			}
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}

	gate := NewQualityGate(testThresholds())
	ok, reason := gate.Accept(img)

	assert.False(t, ok)
	assert.Equal(t, ReasonExposure, reason)
}

func TestMeanIntensity(t *testing.T) {
	assert.InDelta(t, 128, MeanIntensity(uniformImage(128)), 0.001)
	assert.InDelta(t, 0, MeanIntensity(uniformImage(0)), 0.001)
	assert.InDelta(t, 127.5, MeanIntensity(checkerImage()), 0.5)
}

func TestLaplacianVariance_ZeroOnUniformImage(t *testing.T) {
	assert.InDelta(t, 0, LaplacianVariance(uniformImage(77)), 0.001)
}

func TestLaplacianVariance_HighOnCheckerboard(t *testing.T) {
	assert.Greater(t, LaplacianVariance(checkerImage()), float64(1000))
}

func TestDecode_JPEGRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, checkerImage(), nil))

	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestFingerprint_IdenticalImagesHaveZeroDistance(t *testing.T) {
	a, err := NewFingerprint(checkerImage())
	require.NoError(t, err)
	b, err := NewFingerprint(checkerImage())
	require.NoError(t, err)

	d, err := a.Distance(b)
	require.NoError(t, err)
	assert.Equal(t, 0, d)
}

func TestFingerprint_DifferentImagesHaveDistance(t *testing.T) {
	// Left-dark/right-bright vs top-dark/bottom-bright gradients produce
	// very different difference hashes.
	horizontal := image.NewGray(image.Rect(0, 0, 32, 32))
	vertical := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			horizontal.SetGray(x, y, color.Gray{Y: uint8(x * 8)})
			vertical.SetGray(x, y, color.Gray{Y: uint8(y * 8)})
		}
	}

	a, err := NewFingerprint(horizontal)
	require.NoError(t, err)
	b, err := NewFingerprint(vertical)
	require.NoError(t, err)

	d, err := a.Distance(b)
	require.NoError(t, err)
	assert.Greater(t, d, 3)
}
