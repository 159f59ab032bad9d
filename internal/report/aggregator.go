package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"osce-station/internal/casefile"
	"osce-station/internal/station"
)

// FallbackNarrative replaces the examiner critique when it cannot be produced.
const FallbackNarrative = "AI feedback could not be generated. Please try again later."

// Summary is the payload handed to the narrative provider.
type Summary struct {
	CaseSummary string                      `json:"case_summary"`
	Questions   []string                    `json:"questions"`
	Duplicates  []string                    `json:"duplicates"`
	Tags        map[station.Domain][]string `json:"tags"`
	Repetitions int                         `json:"repetitions"`
}

// NarrativeProvider writes a free-text critique of a finished station.
type NarrativeProvider interface {
	Critique(ctx context.Context, s Summary, c *casefile.Case) (string, error)
}

// Aggregator builds feedback reports. It implements station.Reporter.
type Aggregator struct {
	narrator NarrativeProvider
	logger   *slog.Logger
	now      func() time.Time
}

func NewAggregator(narrator NarrativeProvider, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{narrator: narrator, logger: logger, now: time.Now}
}

// BuildReport scores the log and attaches a narrative. It never fails; a
// broken narrative provider yields FallbackNarrative.
func (a *Aggregator) BuildReport(ctx context.Context, log *station.SessionLog, c *casefile.Case) *station.FeedbackReport {
	if log == nil {
		log = station.NewSessionLog()
	}

	r := Score(log)
	if c != nil {
		r.CaseID = c.ID
		r.StationName = c.StationName
	}
	r.Narrative = a.narrative(ctx, Summarize(log, c), c)
	r.GeneratedAt = a.now()
	return r
}

// Score computes the deterministic part of a report from the log alone.
func Score(log *station.SessionLog) *station.FeedbackReport {
	data := log.Coverage(station.DomainDataGathering)
	inter := log.Coverage(station.DomainInterpersonal)
	mgmt := log.Coverage(station.DomainManagement)

	r := &station.FeedbackReport{
		DataGathering: rate(len(data), 3, station.RatingStrong, station.RatingIncomplete),
		Interpersonal: rate(len(inter), 2, station.RatingAllICECovered, station.RatingMissedSomeICE),
		Management:    rate(len(mgmt), 2, station.RatingClearPlan, station.RatingLacking),
		Listening:     Listening(log.Repetitions),
		Repetitions:   log.Repetitions,
		Covered: map[station.Domain][]string{
			station.DomainDataGathering: data,
			station.DomainInterpersonal: inter,
			station.DomainManagement:    mgmt,
		},
		Missed:     make([]string, 0, 3),
		Duplicates: append([]string{}, log.Duplicates...),
		Questions:  len(log.Turns),
	}

	if !log.Tags[station.DomainDataGathering].Has("allergies") {
		r.Missed = append(r.Missed, station.MissedAllergies)
	}
	if !log.Tags[station.DomainInterpersonal].Has("expectation") {
		r.Missed = append(r.Missed, station.MissedExpectation)
	}
	if !log.Tags[station.DomainManagement].Has("safety_netting") {
		r.Missed = append(r.Missed, station.MissedSafetyNetting)
	}
	return r
}

// Listening rates how often the candidate repeated themselves.
func Listening(repetitions int) string {
	if repetitions == 0 {
		return station.RatingNoRepetition
	}
	return fmt.Sprintf("repeated(%d)", repetitions)
}

func rate(n, threshold int, good, bad string) string {
	if n >= threshold {
		return good
	}
	return bad
}

// Summarize assembles the narrative payload.
func Summarize(log *station.SessionLog, c *casefile.Case) Summary {
	s := Summary{
		Questions:   log.Questions(),
		Duplicates:  append([]string{}, log.Duplicates...),
		Tags:        make(map[station.Domain][]string, len(station.Domains)),
		Repetitions: log.Repetitions,
	}
	if c != nil {
		s.CaseSummary = c.Summary()
	}
	for _, d := range station.Domains {
		s.Tags[d] = log.Coverage(d)
	}
	return s
}

func (a *Aggregator) narrative(ctx context.Context, s Summary, c *casefile.Case) (text string) {
	if a.narrator == nil {
		return FallbackNarrative
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("narrative provider panicked", "error", fmt.Sprint(r))
			text = FallbackNarrative
		}
	}()

	out, err := a.narrator.Critique(ctx, s, c)
	if err != nil {
		a.logger.Warn("narrative feedback failed, using fallback",
			"error", &station.TransientProviderError{Provider: "narrative", Err: err})
		return FallbackNarrative
	}
	if strings.TrimSpace(out) == "" {
		return FallbackNarrative
	}
	return out
}
