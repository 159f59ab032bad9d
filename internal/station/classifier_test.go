package station

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelStrings(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		utterance string
		want      []string
	}{
		{"Can you tell me about your pain?", []string{"data_gathering/symptom_analysis"}},
		{"Are you on any drugs?", []string{"data_gathering/medications"}},
		{"Any ALLERGIES?", []string{"data_gathering/allergies"}},
		{"Does anything run in the family?", []string{"data_gathering/family_history"}},
		{"What's going on, in your view?", []string{"interpersonal/idea"}},
		{"Is anything worried about in particular?", []string{"interpersonal/concern"}},
		{"What are you hoping for today?", []string{"interpersonal/expectation"}},
		{"We will need to admit you", []string{"management/admission"}},
		{"I'll give you a GTN spray", []string{"management/treatment"}},
		{"I'd like to see you again next week", []string{"management/followup"}},
		{"Those are warning signs to look for", []string{"management/safety_netting"}},
		{"How are you today?", nil},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got := labelStrings(Classify(tt.utterance))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_MultipleDomains(t *testing.T) {
	got := labelStrings(Classify("Is the painkiller medication helping, or would you like to stay in hospital?"))

	assert.Equal(t, []string{
		"data_gathering/symptom_analysis",
		"data_gathering/medications",
		"interpersonal/expectation",
		"management/admission",
		"management/treatment",
	}, got)
}

func TestClassify_Deterministic(t *testing.T) {
	u := "Any allergies or family history? Would you like a painkiller?"
	first := Classify(u)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(u))
	}
}

func TestRules_EveryLabelReachable(t *testing.T) {
	table := Rules()
	require.Len(t, table, 11)

	seen := map[string]bool{}
	for _, r := range table {
		require.NotEmpty(t, r.Keywords, r.Label.String())
		for _, kw := range r.Keywords {
			labels := labelStrings(Classify("well, " + kw + " then"))
			assert.Contains(t, labels, r.Label.String(), "keyword %q", kw)
		}
		seen[r.Label.String()] = true
	}
	assert.Len(t, seen, 11)
}

func TestRules_ReturnsCopy(t *testing.T) {
	table := Rules()
	table[0].Keywords[0] = "changed"

	assert.Equal(t, "pain", Rules()[0].Keywords[0])
}
