package taxonomy

import "sync"

// Pattern identifiers emitted by detectors.
const (
	PreselectedInvasiveDefault = "preselected_invasive_default"
	VisualDistraction          = "visual_distraction"
	EmotionalSteering          = "emotional_steering"
	HiddenInPlainSight         = "hidden_in_plain_sight"
	MisleadingButton           = "misleading_button"
	OverwhelmingOptions        = "overwhelming_options"
	AmbiguousWording           = "ambiguous_wording"
)

// The citations, descriptions and remedies are part of the report contract and
// must stay word for word.
var defaultRules = []PatternRule{
	// Skipping
	{
		ID:                 PreselectedInvasiveDefault,
		Category:           CategorySkipping,
		DisplayName:        "Deceptive Snugness",
		RegulationCitation: "GDPR Art. 25(1) (Data protection by design/default) & Art. 6/4(11)",
		Description:        "Pre-selecting the most data-invasive features by default to exploit user inertia.",
		Severity:           SeverityHigh,
		PenaltyWeight:      25,
		Remedy:             "Leave all non-essential consent checkboxes unchecked by default.",
	},
	{
		ID:                 VisualDistraction,
		Category:           CategorySkipping,
		DisplayName:        "Look Over There",
		RegulationCitation: "GDPR Art. 5(1)(a) (Transparency), Art. 12(1) & Art. 12(2)",
		Description:        "Putting a data protection action in competition with a highly distracting visual element (e.g., a massive 'Accept All' button next to a hidden 'Settings' link).",
		Severity:           SeverityHigh,
		PenaltyWeight:      20,
		Remedy:             "Provide equal visual weight, size, and contrast for both 'Accept' and 'Reject' options.",
	},

	// Stirring
	{
		ID:                 EmotionalSteering,
		Category:           CategoryStirring,
		DisplayName:        "Emotional Steering / Confirmshaming",
		RegulationCitation: "GDPR Art. 5(1)(a), Art. 12(1), Art. 12(2), Art. 8 & Art. 7",
		Description:        "Using emotionally manipulative wording to make users feel highly positive or highly negative (anxious/guilty) to influence them to act against their data protection interests.",
		Severity:           SeverityMedium,
		PenaltyWeight:      15,
		Remedy:             "Use neutral, objective language for opt-out buttons (e.g., 'Decline' or 'No, thank you').",
	},
	{
		ID:                 HiddenInPlainSight,
		Category:           CategoryStirring,
		DisplayName:        "Hidden in Plain Sight",
		RegulationCitation: "GDPR Art. 5(1)(a) (Fairness), Art. 7, Art. 12(1) & Art. 12(2)",
		Description:        "Using visual styles like tiny fonts or low contrast to nudge users toward more invasive options by hiding restrictive controls.",
		Severity:           SeverityHigh,
		PenaltyWeight:      25,
		Remedy:             "Ensure opt-out links meet standard web accessibility contrast ratios and are clearly legible.",
	},

	// Hindering & Overloading
	{
		ID:                 MisleadingButton,
		Category:           CategoryHindering,
		DisplayName:        "Misleading Information",
		RegulationCitation: "GDPR Art. 5(1)(a) (Fairness of processing), Art. 12(1) & Art. 7(2)",
		Description:        "Creating a discrepancy between expectations and actions (e.g., a 'Continue' button acting as an 'Accept All' mechanism).",
		Severity:           SeverityHigh,
		PenaltyWeight:      25,
		Remedy:             "Button labels must explicitly and accurately describe their exact resulting action.",
	},
	{
		ID:                 OverwhelmingOptions,
		Category:           CategoryOverloading,
		DisplayName:        "Too Many Options",
		RegulationCitation: "GDPR Art. 5(1)(a) & Art. 12(1)",
		Description:        "Providing an overwhelming amount of choices or massive toggle grids, leading users to overlook settings or give up entirely.",
		Severity:           SeverityMedium,
		PenaltyWeight:      15,
		Remedy:             "Provide a top-level 'Reject All' button alongside granular settings.",
	},

	// Left in the Dark
	{
		ID:                 AmbiguousWording,
		Category:           CategoryLeftInDark,
		DisplayName:        "Ambiguous Wording or Information",
		RegulationCitation: "GDPR Art. 5(1)(a), Art. 12(1), Art. 7(2) & Art. 13",
		Description:        "Using vague terms or double negatives that leave users unsure of how to exercise control over their personal data.",
		Severity:           SeverityHigh,
		PenaltyWeight:      20,
		Remedy:             "Use clear, plain language without double negatives or deceptive phrasing.",
	},
}

var defaultTaxonomy = sync.OnceValue(func() *Taxonomy {
	t, err := New(defaultRules...)
	if err != nil {
		panic("taxonomy: invalid built-in rules: " + err.Error())
	}
	return t
})

// Default returns the built-in regulatory taxonomy. The same immutable value
// is returned on every call.
func Default() *Taxonomy {
	return defaultTaxonomy()
}
