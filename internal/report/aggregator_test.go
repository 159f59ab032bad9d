package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osce-station/internal/casefile"
	"osce-station/internal/station"
)

type stubNarrator struct {
	text  string
	err   error
	panic bool
	got   Summary
}

func (n *stubNarrator) Critique(_ context.Context, s Summary, _ *casefile.Case) (string, error) {
	n.got = s
	if n.panic {
		panic("boom")
	}
	return n.text, n.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chestPain() *casefile.Case {
	return &casefile.Case{
		ID:                  "herpes_zoster_002",
		StationName:         "Chest pain",
		Diagnosis:           "Herpes zoster",
		PresentingComplaint: "Burning chest pain",
	}
}

func logOf(utterances ...string) *station.SessionLog {
	log := station.NewSessionLog()
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, u := range utterances {
		prior := log.Questions()
		log.Append(station.PhaseHistory, at.Add(time.Duration(i)*time.Second), u)
		log.RecordRepeat(u, station.CountRepeats(u, prior))
		log.AddLabels(station.Classify(u))
	}
	return log
}

func TestScore_DataGatheringOnly(t *testing.T) {
	log := logOf(
		"Can you tell me about your pain?",
		"Are you taking any medication?",
		"Does anything run in the family?",
	)

	r := Score(log)
	assert.Equal(t, station.RatingStrong, r.DataGathering)
	assert.Equal(t, station.RatingMissedSomeICE, r.Interpersonal)
	assert.Equal(t, station.RatingLacking, r.Management)
	assert.Equal(t, station.RatingNoRepetition, r.Listening)
	assert.Contains(t, r.Missed, station.MissedExpectation)
	assert.Contains(t, r.Missed, station.MissedSafetyNetting)
	assert.Contains(t, r.Missed, station.MissedAllergies)
	assert.Equal(t, 3, r.Questions)
}

func TestScore_FullCoverage(t *testing.T) {
	log := logOf(
		"Can you tell me about your pain?",
		"Any allergies?",
		"Any family history?",
		"What do you think is going on?",
		"What are you hoping we can do?",
		"I'll start some treatment",
		"If it gets worse, come back straight away",
	)

	r := Score(log)
	assert.Equal(t, station.RatingStrong, r.DataGathering)
	assert.Equal(t, station.RatingAllICECovered, r.Interpersonal)
	assert.Equal(t, station.RatingClearPlan, r.Management)
	assert.Empty(t, r.Missed)
	assert.NotNil(t, r.Missed)
	assert.Equal(t, []string{"expectation", "idea"}, r.Covered[station.DomainInterpersonal])
}

func TestScore_Thresholds(t *testing.T) {
	// Two data-gathering labels are not enough.
	r := Score(logOf("Where is the pain?", "Any allergies?"))
	assert.Equal(t, station.RatingIncomplete, r.DataGathering)

	// One management label is not enough.
	r = Score(logOf("You may need some treatment"))
	assert.Equal(t, station.RatingLacking, r.Management)
}

func TestListening(t *testing.T) {
	assert.Equal(t, "no_repetition", Listening(0))
	assert.Equal(t, "repeated(1)", Listening(1))
	assert.Equal(t, "repeated(4)", Listening(4))

	r := Score(logOf("Where is the pain?", "where is the pain?"))
	assert.Equal(t, "repeated(1)", r.Listening)
	assert.Equal(t, []string{"where is the pain?"}, r.Duplicates)
}

func TestAggregator_BuildReport(t *testing.T) {
	narrator := &stubNarrator{text: "1. Summary: solid history."}
	agg := NewAggregator(narrator, discardLogger())
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return fixed }

	log := logOf("Can you tell me about your pain?", "Can you tell me about your pain?")
	r := agg.BuildReport(context.Background(), log, chestPain())
	require.NotNil(t, r)

	assert.Equal(t, "herpes_zoster_002", r.CaseID)
	assert.Equal(t, "Chest pain", r.StationName)
	assert.Equal(t, "1. Summary: solid history.", r.Narrative)
	assert.Equal(t, fixed, r.GeneratedAt)

	assert.Contains(t, narrator.got.CaseSummary, "Herpes zoster")
	assert.Len(t, narrator.got.Questions, 2)
	assert.Equal(t, []string{"Can you tell me about your pain?"}, narrator.got.Duplicates)
	assert.Equal(t, []string{"symptom_analysis"}, narrator.got.Tags[station.DomainDataGathering])
	assert.Empty(t, narrator.got.Tags[station.DomainManagement])
}

func TestAggregator_NarrativeFailure(t *testing.T) {
	tests := []struct {
		name     string
		narrator NarrativeProvider
	}{
		{"error", &stubNarrator{err: errors.New("groq: 429")}},
		{"panic", &stubNarrator{panic: true}},
		{"blank", &stubNarrator{text: "  \n"}},
		{"missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.narrator, discardLogger())
			log := logOf("Any allergies?", "Tell me about the pain", "Any family history?")

			r := agg.BuildReport(context.Background(), log, chestPain())
			require.NotNil(t, r)
			assert.Equal(t, FallbackNarrative, r.Narrative)
			assert.Equal(t, station.RatingStrong, r.DataGathering)
		})
	}
}

func TestAggregator_NilInputs(t *testing.T) {
	agg := NewAggregator(&stubNarrator{text: "ok"}, discardLogger())

	r := agg.BuildReport(context.Background(), nil, nil)
	require.NotNil(t, r)
	assert.Equal(t, station.RatingIncomplete, r.DataGathering)
	assert.Equal(t, station.RatingNoRepetition, r.Listening)
	assert.Len(t, r.Missed, 3)
}
