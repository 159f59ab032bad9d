package station

// Rule tags an utterance with Label when any keyword is a substring of the
// lower-cased text.
type Rule struct {
	Label    Label
	Keywords []string
}

var rules = []Rule{
	{Label{DomainDataGathering, "symptom_analysis"}, []string{"pain", "duration", "radiate", "severity", "trigger", "location"}},
	{Label{DomainDataGathering, "medications"}, []string{"medication", "drugs"}},
	{Label{DomainDataGathering, "allergies"}, []string{"allerg"}},
	{Label{DomainDataGathering, "family_history"}, []string{"family"}},

	{Label{DomainInterpersonal, "idea"}, []string{"what do you think", "your idea", "what's causing", "what's going on"}},
	{Label{DomainInterpersonal, "concern"}, []string{"are you worried", "any concerns", "bother you", "worried about"}},
	{Label{DomainInterpersonal, "expectation"}, []string{"what do you expect", "what are you hoping", "would you like"}},

	{Label{DomainManagement, "admission"}, []string{"admit", "admission", "hospital", "stay in"}},
	{Label{DomainManagement, "treatment"}, []string{"treatment", "medication", "painkiller", "aspirin", "spray"}},
	{Label{DomainManagement, "followup"}, []string{"follow-up", "gp", "review", "see you again"}},
	{Label{DomainManagement, "safety_netting"}, []string{"safety", "red flag", "come back", "warning sign"}},
}

// Rules returns a copy of the classification table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Label: r.Label, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Classify returns every label whose keywords occur in the utterance, in
// table order. It is pure: the same text always yields the same labels.
func Classify(utterance string) []Label {
	text := normalizeText(utterance)
	var labels []Label
	for _, r := range rules {
		if containsAny(text, r.Keywords) {
			labels = append(labels, r.Label)
		}
	}
	return labels
}
