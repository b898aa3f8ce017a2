package classifier

import (
	"github.com/frnnnnn/Vision360/internal/config"
	"github.com/frnnnnn/Vision360/internal/models"
)

// Decision is the complete recognition outcome for one frame.
type Decision struct {
	Classification  models.Classification
	PersonDetected  bool
	Authorized      bool
	Confidence      float64
	FaceSimilarity  *float64
	MatchedIdentity bool
}

// Classifier turns a detector confidence and an optional face-match
// similarity into exactly one of the three classification outcomes. It is
// pure and total: no input combination is undefined, and it holds no state
// across calls.
type Classifier struct {
	thresholds config.Thresholds
}

// New creates a classifier bound to the loaded, immutable thresholds.
func New(t config.Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Classify applies the decision rules:
//
//   - confidence below the detection threshold short-circuits to no-person;
//     the face-match branch is never evaluated.
//   - a detected person is authorized only when a matched identity exists
//     AND its similarity clears the face match threshold. A similarity score
//     without a bound identity never authorizes.
//   - a detected, unauthorized person is an intruder regardless of whether a
//     low-confidence match existed.
func (c *Classifier) Classify(confidence float64, faceSimilarity *float64, matchedIdentity bool) Decision {
	d := Decision{
		Confidence:      confidence,
		FaceSimilarity:  faceSimilarity,
		MatchedIdentity: matchedIdentity,
	}

	if confidence < c.thresholds.MinDetectionConfidence {
		d.Classification = models.ClassNoPerson
		return d
	}

	d.PersonDetected = true

	if matchedIdentity && faceSimilarity != nil && *faceSimilarity >= c.thresholds.FaceMatchThreshold {
		d.Classification = models.ClassAuthorized
		d.Authorized = true
		return d
	}

	d.Classification = models.ClassIntruder
	return d
}

// Severity maps a decision to its alert priority tier. The mapping is
// exhaustive over the classification variants; severity selects dashboard
// priority, not whether an intruder alert fires.
func (c *Classifier) Severity(d Decision) models.Severity {
	switch d.Classification {
	case models.ClassNoPerson:
		return models.SeverityNone
	case models.ClassAuthorized:
		return models.SeverityLow
	case models.ClassIntruder:
		// High-confidence detection with no identity match at all is the
		// clearest intrusion. A match below threshold or a weaker detection
		// is the occlusion-prone band, flagged for human review.
		if d.Confidence >= c.thresholds.HighConfidenceCutoff && !d.MatchedIdentity {
			return models.SeverityHigh
		}
		return models.SeverityMedium
	}
	return models.SeverityNone
}
