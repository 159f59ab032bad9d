package station

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mood is the patient's current emotional tone.
type Mood string

const (
	MoodNeutral       Mood = "neutral"
	MoodShocked       Mood = "shocked"
	MoodComforted     Mood = "comforted"
	MoodDefensive     Mood = "defensive"
	MoodRelieved      Mood = "relieved"
	MoodAnxious       Mood = "anxious"
	MoodMildlyAnnoyed Mood = "mildly_annoyed"
	MoodFrustrated    Mood = "frustrated"
	MoodAngry         Mood = "angry"
)

type PhaseName string

const (
	PhaseHistory    PhaseName = "history"
	PhaseTransition PhaseName = "transition"
	PhaseICE        PhaseName = "ice"
	PhaseManagement PhaseName = "management"
)

// Phase is one timed segment of the station.
type Phase struct {
	Name               PhaseName     `json:"name" yaml:"name"`
	Duration           time.Duration `json:"duration" yaml:"duration"`
	EarlyExitOnSilence bool          `json:"early_exit_on_silence" yaml:"early_exit_on_silence"`
}

// DefaultPhases returns the station schedule in execution order.
func DefaultPhases() []Phase {
	return []Phase{
		{Name: PhaseHistory, Duration: 8 * time.Minute},
		{Name: PhaseTransition, Duration: 10 * time.Second, EarlyExitOnSilence: true},
		{Name: PhaseICE, Duration: 10 * time.Second},
		{Name: PhaseManagement, Duration: 10 * time.Second},
	}
}

// Turn is one candidate utterance as logged.
type Turn struct {
	ID    string    `json:"id"`
	Phase PhaseName `json:"phase"`
	At    time.Time `json:"timestamp"`
	Text  string    `json:"input"`
}

// PhaseRecord is what actually happened in a phase.
type PhaseRecord struct {
	Name       PhaseName `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	EndedEarly bool      `json:"ended_early"`
}

// Domain groups classifier labels.
type Domain string

const (
	DomainDataGathering Domain = "data_gathering"
	DomainInterpersonal Domain = "interpersonal"
	DomainManagement    Domain = "management"
)

// Domains lists the label domains in report order.
var Domains = []Domain{DomainDataGathering, DomainInterpersonal, DomainManagement}

// Label is a domain classification such as data_gathering/allergies.
type Label struct {
	Domain Domain `json:"domain"`
	Name   string `json:"name"`
}

func (l Label) String() string {
	return string(l.Domain) + "/" + l.Name
}

// LabelSet tracks coverage, not frequency.
type LabelSet map[string]struct{}

func (s LabelSet) Add(name string) bool {
	if _, ok := s[name]; ok {
		return false
	}
	s[name] = struct{}{}
	return true
}

func (s LabelSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the labels in lexical order.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Ratings
const (
	RatingStrong        = "strong"
	RatingIncomplete    = "incomplete"
	RatingAllICECovered = "all_ice_covered"
	RatingMissedSomeICE = "missed_some_ice"
	RatingClearPlan     = "clear_plan"
	RatingLacking       = "lacking"
	RatingNoRepetition  = "no_repetition"
)

// Missed-item identifiers.
const (
	MissedAllergies     = "allergies"
	MissedExpectation   = "expectation"
	MissedSafetyNetting = "safety_netting"
)

// FeedbackReport is the structured outcome of a station.
type FeedbackReport struct {
	SessionID   uuid.UUID `json:"session_id"`
	CaseID      string    `json:"case_id"`
	StationName string    `json:"station_name"`

	DataGathering string `json:"data_gathering"`
	Interpersonal string `json:"interpersonal"`
	Management    string `json:"management"`
	Listening     string `json:"listening"`

	Repetitions int                 `json:"repetitions"`
	Covered     map[Domain][]string `json:"covered"`
	Missed      []string            `json:"missed"`
	Duplicates  []string            `json:"duplicates"`
	Questions   int                 `json:"questions"`
	FinalMood   Mood                `json:"final_mood,omitempty"`

	Phases []PhaseRecord `json:"phases,omitempty"`

	Narrative   string    `json:"narrative"`
	GeneratedAt time.Time `json:"generated_at"`
}

var coveredLines = []struct {
	domain Domain
	label  string
	line   string
}{
	{DomainDataGathering, "symptom_analysis", "Symptom analysis: onset, radiation, severity, triggers"},
	{DomainDataGathering, "family_history", "Family history"},
	{DomainDataGathering, "medications", "Medications"},
	{DomainDataGathering, "allergies", "Allergies"},
	{DomainInterpersonal, "idea", "ICE: the patient's ideas"},
	{DomainInterpersonal, "concern", "ICE: the patient's concerns"},
	{DomainInterpersonal, "expectation", "ICE: the patient's expectations"},
	{DomainManagement, "admission", "Admission"},
	{DomainManagement, "treatment", "Treatment"},
	{DomainManagement, "followup", "Follow-up"},
	{DomainManagement, "safety_netting", "Safety-netting"},
}

var missedLines = map[string]string{
	MissedAllergies:     "Allergies",
	MissedExpectation:   "Asking about the patient's expectations",
	MissedSafetyNetting: "Safety-netting",
}

// Text renders the report for chat delivery and the console.
func (r *FeedbackReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Station report: %s (%s)\n\n", r.StationName, r.CaseID)

	b.WriteString("You asked about:\n")
	for _, cl := range coveredLines {
		if contains(r.Covered[cl.domain], cl.label) {
			fmt.Fprintf(&b, "  + %s\n", cl.line)
		}
	}

	if len(r.Missed) > 0 {
		b.WriteString("\nYou missed:\n")
		for _, m := range r.Missed {
			fmt.Fprintf(&b, "  - %s\n", missedLines[m])
		}
	}

	b.WriteString("\nPerformance summary\n")
	fmt.Fprintf(&b, "  Data gathering: %s\n", r.DataGathering)
	fmt.Fprintf(&b, "  Interpersonal: %s\n", r.Interpersonal)
	fmt.Fprintf(&b, "  Management: %s\n", r.Management)
	fmt.Fprintf(&b, "  Listening: %s\n", r.Listening)

	if r.Narrative != "" {
		fmt.Fprintf(&b, "\nExaminer feedback:\n%s\n", r.Narrative)
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
