package station

import (
	"strings"
	"time"
)

// AffectState is the patient's emotional memory for one session.
type AffectState struct {
	Mood           Mood `json:"mood"`
	NameAskedCount int  `json:"name_asked_count"`

	// FallbackMemory is a scratchpad for the reply generator; the engine
	// never reads it.
	FallbackMemory map[string]string `json:"fallback_memory"`
	LastResponse   string            `json:"last_response"`

	DiagnosisExplained  bool      `json:"diagnosis_explained"`
	TransitionStartedAt time.Time `json:"transition_started_at"`
	FallbackTriggered   bool      `json:"fallback_triggered"`
}

// NewAffectState returns a state already reset to session-start defaults.
func NewAffectState() AffectState {
	var a AffectState
	a.Reset()
	return a
}

// Reset restores every field to its start-of-session default.
func (a *AffectState) Reset() {
	*a = AffectState{
		Mood:           MoodNeutral,
		FallbackMemory: map[string]string{},
	}
}

// Clone returns a copy that shares no maps with a.
func (a AffectState) Clone() AffectState {
	out := a
	out.FallbackMemory = make(map[string]string, len(a.FallbackMemory))
	for k, v := range a.FallbackMemory {
		out.FallbackMemory[k] = v
	}
	return out
}

type moodRule struct {
	mood     Mood
	keywords []string
}

// Evaluated top to bottom; first hit wins.
var moodRules = []moodRule{
	{MoodShocked, []string{"cancer", "surgery", "serious condition", "tumor", "operation"}},
	{MoodComforted, []string{"take your time", "i understand", "i'm here to help", "you'll be okay", "don't worry"}},
	{MoodDefensive, []string{"why didn't you", "you should have", "didn't you say earlier", "you never mentioned"}},
	{MoodRelieved, []string{"nothing serious", "it's okay", "benign", "good news", "you'll recover"}},
	{MoodAnxious, []string{"worried", "concerned", "alarming", "very serious", "emergency"}},
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

func normalizeText(s string) string {
	return apostrophes.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// DetectMood scans the utterance for emotionally loaded phrases. It returns
// current when nothing matches.
func DetectMood(utterance string, current Mood) Mood {
	text := normalizeText(utterance)
	for _, rule := range moodRules {
		if containsAny(text, rule.keywords) {
			return rule.mood
		}
	}
	return current
}

// UpdateMood applies one candidate utterance to the affect state.
// repeatCount is the number of earlier utterances it duplicates.
func UpdateMood(state *AffectState, utterance string, repeatCount int) Mood {
	switch {
	case repeatCount == 1:
		state.Mood = MoodMildlyAnnoyed
	case repeatCount == 2:
		state.Mood = MoodFrustrated
	case repeatCount >= 3:
		state.Mood = MoodAngry
	default:
		state.Mood = DetectMood(utterance, state.Mood)
	}

	// Being asked for a name over and over overrides everything above.
	if strings.Contains(normalizeText(utterance), "name") {
		state.NameAskedCount++
		if state.NameAskedCount >= 3 {
			state.Mood = MoodFrustrated
		} else if state.NameAskedCount == 2 {
			state.Mood = MoodMildlyAnnoyed
		}
	}
	return state.Mood
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
