package normalize

import "github.com/pyneda/sukyan/pkg/model"

// RuleKey identifies one entry in the rule table: a scanner-native rule
// code as reported by a specific scanner (the same logical check can be
// named differently by each tool).
type RuleKey struct {
	Scanner  model.ScannerID
	RuleCode string
}

// RuleInfo is everything the normalizer needs to turn a RawIssue into a
// Finding, beyond what the scanner itself reports.
type RuleInfo struct {
	WCAGCriterion string
	Severity      model.Severity
	Impact        []model.DisabilityImpact
	Remediation   string
}

// ruleTable maps (scanner, rule code) to the WCAG criterion, severity,
// affected-user groups and remediation guidance used to build a Finding.
// A rule code absent from this table falls back to DefaultRuleInfo.
var ruleTable = map[RuleKey]RuleInfo{
	{model.ScannerAxe, "image-alt"}: {
		WCAGCriterion: "1.1.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactLowVision},
		Remediation: "Add a descriptive alt attribute to the image, or alt=\"\" if it is purely decorative.",
	},
	{model.ScannerAxe, "color-contrast"}: {
		WCAGCriterion: "1.4.3", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision, model.ImpactColorBlind},
		Remediation: "Increase the contrast ratio between text and background to at least 4.5:1 (3:1 for large text).",
	},
	{model.ScannerAxe, "label"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactCognitive},
		Remediation: "Associate a <label> element with the form field using a matching for/id pair, or use aria-label.",
	},
	{model.ScannerAxe, "link-name"}: {
		WCAGCriterion: "2.4.4", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Give the link discernible text instead of relying on surrounding context alone.",
	},
	{model.ScannerAxe, "heading-order"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactCognitive},
		Remediation: "Do not skip heading levels; structure headings as an outline (h1, h2, h3, ...).",
	},
	{model.ScannerAxe, "aria-hidden-focus"}: {
		WCAGCriterion: "4.1.2", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactMotor},
		Remediation: "Remove focusable descendants from elements marked aria-hidden=\"true\", or remove the attribute.",
	},
	{model.ScannerAxe, "duplicate-id"}: {
		WCAGCriterion: "4.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Ensure every id attribute value is unique within the page.",
	},
	{model.ScannerAxe, "html-has-lang"}: {
		WCAGCriterion: "3.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Add a valid lang attribute to the <html> element.",
	},
	{model.ScannerAxe, "form-field-multiple-labels"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityLow,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactCognitive},
		Remediation: "Ensure each form field has exactly one associated label.",
	},
	{model.ScannerAxe, "video-caption"}: {
		WCAGCriterion: "1.2.2", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactDeaf},
		Remediation: "Provide synchronized captions for video content.",
	},
	{model.ScannerAxe, "meta-viewport"}: {
		WCAGCriterion: "1.4.4", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision},
		Remediation: "Remove user-scalable=no and maximum-scale restrictions from the viewport meta tag.",
	},
	{model.ScannerAxe, "tabindex"}: {
		WCAGCriterion: "2.4.3", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactMotor, model.ImpactBlind},
		Remediation: "Avoid positive tabindex values; let focus order follow document order.",
	},
	{model.ScannerAxe, "button-name"}: {
		WCAGCriterion: "4.1.2", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Give the button an accessible name via visible text, aria-label, or aria-labelledby.",
	},
	{model.ScannerAxe, "frame-title"}: {
		WCAGCriterion: "4.1.2", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Add a descriptive title attribute to the iframe.",
	},
	{model.ScannerAxe, "autocomplete-valid"}: {
		WCAGCriterion: "1.3.5", Severity: model.SeverityLow,
		Impact:      []model.DisabilityImpact{model.ImpactCognitive, model.ImpactMotor},
		Remediation: "Use a valid autocomplete token matching the field's purpose.",
	},

	{model.ScannerPa11y, "WCAG2AA.Principle1.Guideline1_1.1_1_1.H37"}: {
		WCAGCriterion: "1.1.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Add an alt attribute describing the image's purpose.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle1.Guideline1_4.1_4_3.G18.Fail"}: {
		WCAGCriterion: "1.4.3", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision},
		Remediation: "Increase the foreground/background contrast ratio to at least 4.5:1.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle1.Guideline1_3.1_3_1.F68"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Associate the form control with a programmatic label.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle2.Guideline2_4.2_4_4.H77"}: {
		WCAGCriterion: "2.4.4", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Write link text that makes sense out of context.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle1.Guideline1_3.1_3_1.H42"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactCognitive},
		Remediation: "Mark up headings with the correct heading level and do not skip levels.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle4.Guideline4_1.4_1_2.H91.A.NoContent"}: {
		WCAGCriterion: "4.1.2", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Give the link an accessible name.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle3.Guideline3_1.3_1_1.H57.2"}: {
		WCAGCriterion: "3.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Set a valid lang attribute on the document element.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle4.Guideline4_1.4_1_1.F77"}: {
		WCAGCriterion: "4.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Remove duplicate id attribute values.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle1.Guideline1_2.1_2_2.G87"}: {
		WCAGCriterion: "1.2.2", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactDeaf},
		Remediation: "Provide captions for the prerecorded video.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle2.Guideline2_4.2_4_3.H4.2"}: {
		WCAGCriterion: "2.4.3", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactMotor},
		Remediation: "Ensure a logical, predictable focus order through interactive elements.",
	},
	{model.ScannerPa11y, "WCAG2AA.Principle1.Guideline1_4.1_4_4.G142"}: {
		WCAGCriterion: "1.4.4", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision},
		Remediation: "Allow the page to be zoomed to 200% without loss of content or function.",
	},

	{model.ScannerWave, "alt_missing"}: {
		WCAGCriterion: "1.1.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Add an alt attribute to the image.",
	},
	{model.ScannerWave, "contrast"}: {
		WCAGCriterion: "1.4.3", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision, model.ImpactColorBlind},
		Remediation: "Increase text/background contrast to meet the 4.5:1 minimum ratio.",
	},
	{model.ScannerWave, "label_missing"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Add a form label associated with this field.",
	},
	{model.ScannerWave, "link_empty"}: {
		WCAGCriterion: "2.4.4", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Provide text content for the link.",
	},
	{model.ScannerWave, "heading_skipped"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactCognitive},
		Remediation: "Use heading levels in sequential order.",
	},
	{model.ScannerWave, "aria_menu_broken"}: {
		WCAGCriterion: "4.1.2", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactMotor},
		Remediation: "Ensure ARIA menu widgets expose the roles and states assistive tech expects.",
	},
	{model.ScannerWave, "duplicate_id"}: {
		WCAGCriterion: "4.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Make every id attribute unique.",
	},
	{model.ScannerWave, "language_missing"}: {
		WCAGCriterion: "3.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Declare the page language with a lang attribute on <html>.",
	},
	{model.ScannerWave, "flashing_content"}: {
		WCAGCriterion: "2.3.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactCognitive},
		Remediation: "Remove or slow content that flashes more than three times per second.",
	},
	{model.ScannerWave, "small_text"}: {
		WCAGCriterion: "1.4.4", Severity: model.SeverityLow,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision},
		Remediation: "Avoid text smaller than 9px and ensure the page supports 200% zoom.",
	},

	{model.ScannerLighthouse, "image-alt"}: {
		WCAGCriterion: "1.1.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Add alt text to every informative image.",
	},
	{model.ScannerLighthouse, "color-contrast"}: {
		WCAGCriterion: "1.4.3", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision, model.ImpactColorBlind},
		Remediation: "Increase contrast between foreground text and its background.",
	},
	{model.ScannerLighthouse, "label"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Associate every form element with a label.",
	},
	{model.ScannerLighthouse, "link-name"}: {
		WCAGCriterion: "2.4.4", Severity: model.SeverityHigh,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Give links discernible, unique text.",
	},
	{model.ScannerLighthouse, "heading-order"}: {
		WCAGCriterion: "1.3.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind, model.ImpactCognitive},
		Remediation: "Arrange headings in a sequential, non-skipping order.",
	},
	{model.ScannerLighthouse, "html-has-lang"}: {
		WCAGCriterion: "3.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Set a valid lang attribute on the root html element.",
	},
	{model.ScannerLighthouse, "duplicate-id-active"}: {
		WCAGCriterion: "4.1.1", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactBlind},
		Remediation: "Remove duplicate ids from focusable or ARIA-referenced elements.",
	},
	{model.ScannerLighthouse, "tabindex"}: {
		WCAGCriterion: "2.4.3", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactMotor},
		Remediation: "Remove positive tabindex values.",
	},
	{model.ScannerLighthouse, "meta-viewport"}: {
		WCAGCriterion: "1.4.4", Severity: model.SeverityModerate,
		Impact:      []model.DisabilityImpact{model.ImpactLowVision},
		Remediation: "Allow pinch-zoom and scaling in the viewport meta tag.",
	},
	{model.ScannerLighthouse, "video-caption"}: {
		WCAGCriterion: "1.2.2", Severity: model.SeverityCritical,
		Impact:      []model.DisabilityImpact{model.ImpactDeaf},
		Remediation: "Add captions to video elements.",
	},
}

// DefaultRuleInfo is used when a (scanner, rule code) pair is not present
// in ruleTable: an unmapped rule is treated as a moderate, generic finding
// rather than dropped, since scanner rule sets evolve independently of
// this table.
var DefaultRuleInfo = RuleInfo{
	WCAGCriterion: "4.1.1",
	Severity:      model.SeverityModerate,
	Impact:        []model.DisabilityImpact{model.ImpactCognitive},
	Remediation:   "Review the reported element against the relevant WCAG success criterion.",
}

// Lookup returns the RuleInfo for (scanner, ruleCode), falling back to
// DefaultRuleInfo when the pair is not registered.
func Lookup(scanner model.ScannerID, ruleCode string) RuleInfo {
	if info, ok := ruleTable[RuleKey{Scanner: scanner, RuleCode: ruleCode}]; ok {
		return info
	}
	return DefaultRuleInfo
}
