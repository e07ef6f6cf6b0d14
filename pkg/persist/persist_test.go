package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pyneda/sukyan/pkg/model"
)

func TestWriteSummary_WritesJSONAndYAMLSiblings(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)

	result := model.AggregatedResult{
		ScanID:          "scan-1",
		Score:           87.5,
		ComplianceLevel: model.CompliancePartiallyCompliant,
		Confidence:      100,
		GeneratedAt:     time.Unix(0, 0).UTC(),
	}

	require.NoError(t, w.WriteSummary("scan-1", result))

	jsonPath := filepath.Join(dir, "scan-1", "summary.json")
	yamlPath := filepath.Join(dir, "scan-1", "summary.yaml")

	_, err := os.Stat(jsonPath)
	require.NoError(t, err)
	_, err = os.Stat(yamlPath)
	require.NoError(t, err)

	yamlBytes, err := os.ReadFile(yamlPath)
	require.NoError(t, err)

	var roundTripped model.AggregatedResult
	require.NoError(t, yaml.Unmarshal(yamlBytes, &roundTripped))
	assert.Equal(t, result.ScanID, roundTripped.ScanID)
	assert.Equal(t, result.Score, roundTripped.Score)
	assert.Equal(t, result.ComplianceLevel, roundTripped.ComplianceLevel)
}

func TestAppendEvent_CreatesDirAndAppendsNDJSONLines(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	defer w.Close()

	w.AppendEvent("scan-2", model.ScanEvent{Type: model.EventScanProgress, ScanID: "scan-2"})
	w.AppendEvent("scan-2", model.ScanEvent{Type: model.EventScanCompleted, ScanID: "scan-2"})

	data, err := os.ReadFile(filepath.Join(dir, "scan-2", "events.log"))
	require.NoError(t, err)
	lines := splitNonEmptyLines(string(data))
	require.Len(t, lines, 2)
}

func splitNonEmptyLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			if line := s[start:i]; line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	return out
}
