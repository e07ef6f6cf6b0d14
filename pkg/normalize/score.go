package normalize

import "github.com/pyneda/sukyan/pkg/model"

// Per-occurrence weight applied to each severity when computing the
// penalty R. With these weights ten criticals alone (80 points) exceed the
// 75 point penalty cap.
const (
	weightCritical = 8.0
	weightHigh     = 4.0
	weightModerate = 2.0
	weightLow      = 0.5

	penaltyCap = 75.0
)

// Score computes the overall accessibility score for a set of findings:
// R = 8*critical + 4*high + 2*moderate + 0.5*low, capped at 75, and
// score = max(0, 100 - R). Each finding contributes once per occurrence
// so repeated instances of the same rule still compound the penalty.
func Score(findings []model.Finding) float64 {
	r := 0.0
	for _, f := range findings {
		weight := severityWeight(f.Severity)
		r += weight * float64(f.Occurrences)
	}
	if r > penaltyCap {
		r = penaltyCap
	}
	score := 100 - r
	if score < 0 {
		score = 0
	}
	return score
}

func severityWeight(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return weightCritical
	case model.SeverityHigh:
		return weightHigh
	case model.SeverityModerate:
		return weightModerate
	case model.SeverityLow:
		return weightLow
	default:
		return 0
	}
}

// Confidence reports how much of the scan's unit set actually produced
// results, as a 0-100 integer: round(100 * succeeded / total). A scan
// where every unit failed has zero confidence regardless of its score.
func Confidence(succeeded, total int) int {
	if total == 0 {
		return 0
	}
	ratio := float64(succeeded) / float64(total)
	return int(ratio*100 + 0.5)
}
