package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pyneda/sukyan/pkg/model"
)

func findingsWith(counts map[model.Severity]int) []model.Finding {
	var out []model.Finding
	for sev, n := range counts {
		out = append(out, model.Finding{Severity: sev, Occurrences: n})
	}
	return out
}

func TestScore_PenaltyFormula(t *testing.T) {
	// c=2, h=6, m=4, l=3 -> R = 16+24+8+1.5 = 49.5, score = 50.5
	findings := findingsWith(map[model.Severity]int{
		model.SeverityCritical: 2,
		model.SeverityHigh:     6,
		model.SeverityModerate: 4,
		model.SeverityLow:      3,
	})
	assert.InDelta(t, 50.5, Score(findings), 0.001)
}

func TestScore_CapsPenaltyAtSeventyFive(t *testing.T) {
	findings := findingsWith(map[model.Severity]int{
		model.SeverityCritical: 20,
	})
	// R = 160 is capped at 75, so the score floors at 100 - 75 = 25.
	assert.Equal(t, 25.0, Score(findings))
}

func TestScore_NoFindingsIsPerfect(t *testing.T) {
	assert.Equal(t, 100.0, Score(nil))
}

func TestLevelForScore_Bands(t *testing.T) {
	assert.Equal(t, model.ComplianceCompliant, model.LevelForScore(85))
	assert.Equal(t, model.ComplianceCompliant, model.LevelForScore(100))
	assert.Equal(t, model.CompliancePartiallyCompliant, model.LevelForScore(60))
	assert.Equal(t, model.CompliancePartiallyCompliant, model.LevelForScore(84.9))
	assert.Equal(t, model.ComplianceNonCompliant, model.LevelForScore(59.9))
	assert.Equal(t, model.ComplianceNonCompliant, model.LevelForScore(0))
}

func TestConfidence_RoundsAndHandlesZeroTotal(t *testing.T) {
	assert.Equal(t, 0, Confidence(0, 0))
	assert.Equal(t, 100, Confidence(4, 4))
	assert.Equal(t, 75, Confidence(6, 8))
	assert.Equal(t, 50, Confidence(1, 2))
}
