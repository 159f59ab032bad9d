package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"osce-station/internal/casefile"
	"osce-station/internal/station"
)

// DefaultFamilyRelevantBias is the chance that a family-history answer
// includes a relevant risk factor.
const DefaultFamilyRelevantBias = 0.7

// Patient fallback lines.
const (
	PatientFallback     = "Sorry doctor, I'm not sure how to answer that."
	FamilyHistoryUnsure = "Not sure about family history, doctor."
	notADoctorReply     = "Sorry, I didn't mean that. I'm just a patient feeling unwell."
	patientSystemPrompt = "You are a simulated patient in a UKMLA OSCE exam."
	patientTemperature  = 0.6
	patientMaxTokens    = 200
	patientHistoryTurns = 6
)

// Patient is a station.ReplyProvider backed by a chat model.
type Patient struct {
	llm    Completer
	model  string
	bias   float64
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type PatientOption func(*Patient)

// WithFamilyRelevantBias sets the probability in [0,1] that a relevant
// family risk factor is offered.
func WithFamilyRelevantBias(p float64) PatientOption {
	return func(pt *Patient) {
		pt.bias = min(max(p, 0), 1)
	}
}

// WithRand makes family-history answers reproducible.
func WithRand(r *rand.Rand) PatientOption {
	return func(pt *Patient) { pt.rng = r }
}

func WithModel(model string) PatientOption {
	return func(pt *Patient) { pt.model = model }
}

func NewPatient(llm Completer, logger *slog.Logger, opts ...PatientOption) *Patient {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Patient{
		llm:    llm,
		bias:   DefaultFamilyRelevantBias,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateReply answers one candidate utterance in character. Provider
// failures are logged and answered with PatientFallback.
func (p *Patient) GenerateReply(ctx context.Context, req station.ReplyRequest) (string, error) {
	if req.Case == nil {
		return PatientFallback, nil
	}

	if isFamilyQuestion(req.Utterance) {
		if reply, ok := p.familyHistoryReply(req.Case); ok {
			return reply, nil
		}
	}

	raw, err := p.llm.Complete(ctx, ChatRequest{
		Model: p.model,
		Messages: []Message{
			{Role: "system", Content: patientSystemPrompt},
			{Role: "user", Content: BuildPatientPrompt(req)},
		},
		Temperature: patientTemperature,
		MaxTokens:   patientMaxTokens,
	})
	if err != nil {
		p.logger.Warn("patient reply failed, using fallback",
			"case_id", req.Case.ID,
			"phase", req.Phase,
			"error", &station.TransientProviderError{Provider: "patient", Err: err},
		)
		return PatientFallback, nil
	}

	reply := CleanResponse(raw)
	if reply == "" {
		return PatientFallback, nil
	}
	return reply, nil
}

func isFamilyQuestion(utterance string) bool {
	return strings.Contains(strings.ToLower(utterance), "family")
}

// familyHistoryReply answers from the case's risk factors without the
// model. It reports false when the case has nothing to offer.
func (p *Patient) familyHistoryReply(c *casefile.Case) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.StationType == casefile.StationCounselling && c.Diagnosis != "" {
		relative := []string{"mother", "father"}[p.rng.Intn(2)]
		return fmt.Sprintf("My %s also had %s.", relative, strings.ToLower(c.Diagnosis)), true
	}

	relevant := c.RiskFactors.FamilyRelevant
	distractors := c.RiskFactors.FamilyDistractors
	if len(relevant) == 0 && len(distractors) == 0 {
		return "", false
	}

	var pool []string
	if len(relevant) > 0 && p.rng.Float64() < p.bias {
		pool = append(pool, relevant[p.rng.Intn(len(relevant))])
	}
	if len(distractors) > 0 {
		pool = append(pool, distractors[p.rng.Intn(len(distractors))])
	}
	if len(pool) == 0 {
		return FamilyHistoryUnsure, true
	}
	return pool[p.rng.Intn(len(pool))], true
}

// AdjustForPhase prefixes the utterance with what the doctor is doing.
func AdjustForPhase(phase station.PhaseName, utterance string) string {
	switch phase {
	case station.PhaseICE:
		return "Doctor is exploring your ICE concerns. " + utterance
	case station.PhaseManagement:
		return "Doctor is discussing management. " + utterance
	case station.PhaseTransition:
		return "Doctor is reviewing findings and explaining them. " + utterance
	}
	return utterance
}

// BuildPatientPrompt renders the in-character instructions for one turn.
func BuildPatientPrompt(req station.ReplyRequest) string {
	c := req.Case
	name := c.Name
	if name == "" {
		name = "the patient"
	}
	age := c.Age
	if age == "" {
		age = "40"
	}
	complaint := c.PresentingComplaint
	if complaint == "" {
		complaint = "some symptoms"
	}
	family := strings.Join(c.FamilyHistory, ", ")
	if family == "" {
		family = "None relevant"
	}
	mood := strings.ReplaceAll(string(req.Affect.Mood), "_", " ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s-year-old UKMLA OSCE patient.\n", name, age)
	fmt.Fprintf(&b, "You ONLY experience these symptoms: %s.\n", strings.Join(c.Symptoms, ", "))
	fmt.Fprintf(&b, "Your current mood is: %s.\n", mood)
	fmt.Fprintf(&b, "Your main concern today is: %s.\n", complaint)
	b.WriteString("If you've already said a symptom, do NOT repeat it unless the doctor specifically re-asks.\n\n")

	b.WriteString("HOW TO RESPOND:\n")
	b.WriteString("- Respond naturally and briefly, like a real person.\n")
	b.WriteString("- Mention only ONE vague symptom early on.\n")
	b.WriteString("- NEVER list all symptoms or red flags at once.\n")
	b.WriteString("- Reveal more ONLY if the doctor asks clearly and specifically.\n")
	b.WriteString("- NEVER give medical advice or guess a diagnosis.\n\n")

	b.WriteString("SOCIAL AND FAMILY HISTORY (only if directly asked):\n")
	fmt.Fprintf(&b, "- Smoking: %s\n", orNA(c.SocialHistory.Smoking))
	fmt.Fprintf(&b, "- Alcohol: %s\n", orNA(c.SocialHistory.Alcohol))
	fmt.Fprintf(&b, "- Diet: %s\n", orNA(c.SocialHistory.Diet))
	fmt.Fprintf(&b, "- Exercise: %s\n", orNA(c.SocialHistory.Exercise))
	fmt.Fprintf(&b, "- Family history: %s\n", family)
	if len(c.Medications) > 0 {
		fmt.Fprintf(&b, "- Medications: %s\n", strings.Join(c.Medications, ", "))
	}
	b.WriteString("\n")

	switch req.Phase {
	case station.PhaseICE:
		fmt.Fprintf(&b, "Your ideas: %s\nYour concerns: %s\nYour expectations: %s\n\n",
			orNA(c.ICE.Ideas), orNA(c.ICE.Concerns), orNA(c.ICE.Expectations))
	case station.PhaseTransition:
		fmt.Fprintf(&b, "The doctor has examined you. Findings:\n%s\n\n", c.ExaminationSummary())
	}

	if earlier := earlierQuestions(req.History, req.Utterance); len(earlier) > 0 {
		b.WriteString("The doctor already asked:\n")
		for _, q := range earlier {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}
	if req.Affect.LastResponse != "" {
		fmt.Fprintf(&b, "Your last answer was: %q. Move the conversation forward.\n\n", req.Affect.LastResponse)
	}

	fmt.Fprintf(&b, "The doctor says: %q\n\n", AdjustForPhase(req.Phase, req.Utterance))
	fmt.Fprintf(&b, "Match your mood (%s). Now respond as the patient:", mood)
	return b.String()
}

// earlierQuestions returns the last few turns before the current one.
func earlierQuestions(history []station.Turn, current string) []string {
	if n := len(history); n > 0 && history[n-1].Text == current {
		history = history[:n-1]
	}
	if len(history) > patientHistoryTurns {
		history = history[len(history)-patientHistoryTurns:]
	}
	out := make([]string, 0, len(history))
	for _, t := range history {
		out = append(out, t.Text)
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

var (
	stageDirection = regexp.MustCompile(`\*.*?\*`)
	ellipsis       = regexp.MustCompile(`\.{2,}`)
	fillers        = regexp.MustCompile(`(?i)\b(sighs|gulps|pauses|panting|gasps|uh|um|mmm)\b[^.!?]*[.!?]?`)
	stutter        = regexp.MustCompile(`\b[A-Za-z]-[A-Za-z]+\b`)
	spaces         = regexp.MustCompile(`\s{2,}`)
)

// CleanResponse strips stage directions, fillers and stutters from model
// output so it reads as plain speech.
func CleanResponse(text string) string {
	text = stageDirection.ReplaceAllString(text, "")
	text = ellipsis.ReplaceAllString(text, ".")
	text = fillers.ReplaceAllString(text, "")
	text = stutter.ReplaceAllStringFunc(text, dropStutter)
	text = collapseRepeatedWords(text)
	text = strings.TrimSpace(spaces.ReplaceAllString(text, " "))
	text = strings.Trim(text, `"`)

	if text == "" {
		return ""
	}
	if strings.HasSuffix(text, "and") || strings.HasSuffix(text, "but") || strings.HasSuffix(text, ",") {
		text += "..."
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "call me doctor") || strings.Contains(lower, "i'm your doctor") {
		return notADoctorReply
	}
	return text
}

// dropStutter turns "I-I" or "h-hurts" into the word itself. Hyphenated
// words such as "X-ray" are kept.
func dropStutter(s string) string {
	letter, word, _ := strings.Cut(s, "-")
	if strings.EqualFold(letter, word[:1]) {
		return word
	}
	return s
}

func collapseRepeatedWords(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i, w := range words {
		if i > 0 && w == words[i-1] {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}
