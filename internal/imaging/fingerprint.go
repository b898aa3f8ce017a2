package imaging

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// Fingerprint is a perceptual hash of a frame, robust to minor pixel noise.
// It is used for duplicate detection only, never for identity.
type Fingerprint struct {
	hash *goimagehash.ImageHash
}

// NewFingerprint computes the 64-bit difference hash of an image.
func NewFingerprint(img image.Image) (*Fingerprint, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint frame: %w", err)
	}
	return &Fingerprint{hash: h}, nil
}

// Distance returns the hamming distance between two fingerprints, in bits.
func (f *Fingerprint) Distance(other *Fingerprint) (int, error) {
	d, err := f.hash.Distance(other.hash)
	if err != nil {
		return 0, fmt.Errorf("failed to compare fingerprints: %w", err)
	}
	return d, nil
}
