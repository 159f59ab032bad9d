package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osce-station/internal/casefile"
	"osce-station/internal/station"
)

func TestConsoleSpeech(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, consoleSpeech{w: &buf}.Speak(context.Background(), "It started yesterday."))
	assert.Equal(t, "Patient: It started yesterday.\n", buf.String())
}

func TestFeedLines(t *testing.T) {
	ctx := context.Background()
	q := station.NewQueueInput(4)

	feedLines(ctx, strings.NewReader("Hello, I'm one of the doctors\nAny allergies?\n"), q)

	first, err := q.NextUtterance(ctx, station.PhaseHistory, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "Hello, I'm one of the doctors", first)

	second, err := q.NextUtterance(ctx, station.PhaseHistory, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "Any allergies?", second)
}

func TestFeedLines_StopsWhenClosed(t *testing.T) {
	q := station.NewQueueInput(1)
	q.Close()

	done := make(chan struct{})
	go func() {
		feedLines(context.Background(), strings.NewReader("a\nb\nc\n"), q)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feedLines blocked on a closed queue")
	}
}

func TestPrintCases(t *testing.T) {
	var buf bytes.Buffer
	err := printCases(&buf, []*casefile.Case{
		{ID: "herpes_zoster_002", StationName: "Rash", StationType: casefile.StationHistory, Diagnosis: "Shingles"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "herpes_zoster_002")
	assert.Contains(t, lines[1], "Shingles")
}

func TestPrintReports(t *testing.T) {
	id := uuid.New()
	var buf bytes.Buffer
	err := printReports(&buf, []*station.FeedbackReport{{
		SessionID:   id,
		Questions:   7,
		Listening:   "repeated(2)",
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), id.String())
	assert.Contains(t, buf.String(), "2026-03-01 09:30")
	assert.Contains(t, buf.String(), "repeated(2)")
}

func TestReportsShow_InvalidID(t *testing.T) {
	rootCmd.SetArgs([]string{"reports", "show", "not-a-uuid"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session id")
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "cases", "migrate", "reports"} {
		assert.True(t, names[want], want)
	}
}
