// Package normalize implements component C5: turning raw, scanner-native
// issues into deduplicated, scored Findings.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyneda/sukyan/lib"
	"github.com/pyneda/sukyan/pkg/model"
)

const (
	// contextSnippetLimit is how much of an issue's context the dedup key
	// compares.
	contextSnippetLimit = 80
	// snippetLimit caps the context stored on a Finding and the message
	// prefix hashed into its ID.
	snippetLimit = 200
)

// pourFromCriterion derives the WCAG design principle a success criterion
// belongs to from its leading digit: 1.x Perceivable, 2.x Operable,
// 3.x Understandable, 4.x Robust.
func pourFromCriterion(criterion string) model.POUR {
	if len(criterion) == 0 {
		return model.POURRobust
	}
	switch criterion[0] {
	case '1':
		return model.POURPerceivable
	case '2':
		return model.POUROperable
	case '3':
		return model.POURUnderstandable
	default:
		return model.POURRobust
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// findingID derives a stable identifier for a finding from the fields that
// define its identity: scanner, rule code, page URL, element selector and
// the first snippetLimit characters of its message. This becomes the
// persisted Finding.ID, so it stays scanner-specific even though two
// findings with different IDs can still merge into one (see dedupKey).
func findingID(scanner model.ScannerID, ruleCode, pageURL, selector, message string) string {
	key := strings.Join([]string{
		string(scanner), ruleCode, pageURL, selector, truncate(message, snippetLimit),
	}, "|")
	return lib.HashBytes([]byte(key))
}

// dedupKey groups raw issues that describe the same underlying element
// problem regardless of which scanner reported it: rule code, page URL,
// selector and truncated context, deliberately excluding scanner. Two
// scanners flagging the same element for the same rule collapse into one
// Finding instead of double-counting occurrences and severity.
func dedupKey(ruleCode, pageURL, selector, context string) string {
	key := strings.Join([]string{
		ruleCode, pageURL, selector, truncate(context, contextSnippetLimit),
	}, "|")
	return lib.HashBytes([]byte(key))
}

// severityRank orders severities from least to most severe, used to keep
// the highest severity seen across duplicate occurrences of a finding.
func severityRank(s model.Severity) int {
	switch s {
	case model.SeverityLow:
		return 0
	case model.SeverityModerate:
		return 1
	case model.SeverityHigh:
		return 2
	case model.SeverityCritical:
		return 3
	default:
		return 0
	}
}

func maxSeverity(a, b model.Severity) model.Severity {
	if severityRank(b) > severityRank(a) {
		return b
	}
	return a
}

// Normalize turns every outcome's raw issues into deduplicated Findings.
// Dedup key is (rule code, page URL, selector, truncated context) and
// deliberately excludes scanner, so the same element issue reported by two
// different scanners merges into one Finding. Ties over which scanner's
// issue becomes the Finding's representative (ID, scanner, message,
// context and that scanner's rule-table mapping) are
// broken deterministically by lexicographically smallest ScannerID, so the
// result does not depend on outcome iteration order.
func Normalize(outcomes []model.ScannerOutcome) []model.Finding {
	byKey := make(map[string]*model.Finding)
	var order []string

	for _, outcome := range outcomes {
		if outcome.Status != model.OutcomeSucceeded {
			continue
		}
		for _, issue := range outcome.Issues {
			info := Lookup(outcome.Unit.Scanner, issue.RuleCode)
			key := dedupKey(issue.RuleCode, outcome.Unit.PageURL, issue.Selector, issue.Context)

			if existing, ok := byKey[key]; ok {
				existing.Occurrences++
				existing.Severity = maxSeverity(existing.Severity, info.Severity)
				if outcome.Unit.Scanner < existing.Scanner {
					existing.ID = findingID(outcome.Unit.Scanner, issue.RuleCode, outcome.Unit.PageURL, issue.Selector, issue.Message)
					existing.Scanner = outcome.Unit.Scanner
					existing.Message = issue.Message
					existing.Context = truncate(issue.Context, snippetLimit)
					existing.WCAGCriterion = info.WCAGCriterion
					existing.POUR = pourFromCriterion(info.WCAGCriterion)
					existing.DisabilityImpact = info.Impact
					existing.Remediation = info.Remediation
				}
				continue
			}

			f := &model.Finding{
				ID:               findingID(outcome.Unit.Scanner, issue.RuleCode, outcome.Unit.PageURL, issue.Selector, issue.Message),
				Scanner:          outcome.Unit.Scanner,
				RuleCode:         issue.RuleCode,
				WCAGCriterion:    info.WCAGCriterion,
				POUR:             pourFromCriterion(info.WCAGCriterion),
				Severity:         info.Severity,
				DisabilityImpact: info.Impact,
				Remediation:      info.Remediation,
				PageURL:          outcome.Unit.PageURL,
				Selector:         issue.Selector,
				Context:          truncate(issue.Context, snippetLimit),
				Message:          issue.Message,
				Occurrences:      1,
			}
			byKey[key] = f
			order = append(order, key)
		}
	}

	findings := make([]model.Finding, 0, len(order))
	for _, key := range order {
		findings = append(findings, *byKey[key])
	}

	// Stable output order: descending severity, then rule code, then page
	// URL, then selector and context, so two runs over the same outcomes
	// (in any order) produce byte-identical findings lists.
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return severityRank(findings[i].Severity) > severityRank(findings[j].Severity)
		}
		if findings[i].RuleCode != findings[j].RuleCode {
			return findings[i].RuleCode < findings[j].RuleCode
		}
		if findings[i].PageURL != findings[j].PageURL {
			return findings[i].PageURL < findings[j].PageURL
		}
		if findings[i].Selector != findings[j].Selector {
			return findings[i].Selector < findings[j].Selector
		}
		return findings[i].Context < findings[j].Context
	})

	return findings
}

// summarizeOutcomes tallies outcomes by scanner and terminal status, for
// AggregatedResult's per-scanner reliability breakdown.
func summarizeOutcomes(outcomes []model.ScannerOutcome) map[model.ScannerID]model.OutcomeSummary {
	summary := make(map[model.ScannerID]model.OutcomeSummary)
	for _, o := range outcomes {
		s := summary[o.Unit.Scanner]
		switch o.Status {
		case model.OutcomeSucceeded:
			s.Succeeded++
		case model.OutcomeFailed:
			s.Failed++
		case model.OutcomeTimedOut:
			s.TimedOut++
		case model.OutcomeSkipped:
			s.Skipped++
		}
		summary[o.Unit.Scanner] = s
	}
	return summary
}

// severityTotals and pourTotals tally findings (weighted by occurrence
// count) by severity and POUR principle respectively.
func severityTotals(findings []model.Finding) map[model.Severity]int {
	totals := make(map[model.Severity]int)
	for _, f := range findings {
		totals[f.Severity] += f.Occurrences
	}
	return totals
}

func pourTotals(findings []model.Finding) map[model.POUR]int {
	totals := make(map[model.POUR]int)
	for _, f := range findings {
		totals[f.POUR] += f.Occurrences
	}
	return totals
}

// successRatio reports how many outcomes succeeded out of the total, used
// by Aggregate to derive confidence.
func successRatio(outcomes []model.ScannerOutcome) (succeeded, total int) {
	for _, o := range outcomes {
		total++
		if o.Status == model.OutcomeSucceeded {
			succeeded++
		}
	}
	return succeeded, total
}

// Aggregate runs Normalize and Score together to build the final
// AggregatedResult for a scan.
func Aggregate(scanID string, outcomes []model.ScannerOutcome) model.AggregatedResult {
	findings := Normalize(outcomes)
	score := Score(findings)
	succeeded, total := successRatio(outcomes)
	confidence := Confidence(succeeded, total)
	level := model.LevelForScore(score)

	return model.AggregatedResult{
		ScanID:            scanID,
		Findings:          findings,
		OutcomesByScanner: summarizeOutcomes(outcomes),
		SeverityTotals:    severityTotals(findings),
		POURTotals:        pourTotals(findings),
		Score:             score,
		ComplianceLevel:   level,
		Confidence:        confidence,
		ExecutiveSummary:  executiveSummary(findings, score, level),
	}
}

// executiveSummary renders a one-sentence, human-readable summary of an
// aggregated result: the compliance verdict plus how many findings spread
// across how many distinct pages.
func executiveSummary(findings []model.Finding, score float64, level model.ComplianceLevel) string {
	if len(findings) == 0 {
		return lib.CapitalizeFirstLetter(fmt.Sprintf("%s: no accessibility issues detected (score %.0f).", level, score))
	}

	pageURLs := make([]string, 0, len(findings))
	for _, f := range findings {
		pageURLs = append(pageURLs, f.PageURL)
	}
	pages := lib.GetUniqueItems(pageURLs)

	return lib.CapitalizeFirstLetter(fmt.Sprintf(
		"%s: %d findings across %d page(s), scoring %.0f/100.",
		level, len(findings), len(pages), score,
	))
}

// Describe renders a finding as a single log line.
func Describe(f model.Finding) string {
	return fmt.Sprintf("[%s] %s on %s (%s)", f.Severity, f.RuleCode, f.PageURL, f.WCAGCriterion)
}
