package station

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"osce-station/internal/casefile"
)

var testStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.advance(d)
	return ctx.Err()
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedInput hands out utterances per phase. Each utterance takes one
// second to say; silence consumes the whole timeout.
type scriptedInput struct {
	clock  *fakeClock
	script map[PhaseName][]string
	errs   map[PhaseName][]error
	calls  []PhaseName
}

func newScriptedInput(clock *fakeClock, script map[PhaseName][]string) *scriptedInput {
	if script == nil {
		script = map[PhaseName][]string{}
	}
	return &scriptedInput{clock: clock, script: script, errs: map[PhaseName][]error{}}
}

func (in *scriptedInput) NextUtterance(ctx context.Context, phase PhaseName, timeout time.Duration) (string, error) {
	in.calls = append(in.calls, phase)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if errs := in.errs[phase]; len(errs) > 0 {
		in.errs[phase] = errs[1:]
		in.clock.advance(timeout)
		return "", errs[0]
	}
	if q := in.script[phase]; len(q) > 0 {
		in.script[phase] = q[1:]
		in.clock.advance(time.Second)
		return q[0], nil
	}
	in.clock.advance(timeout)
	return "", nil
}

func (in *scriptedInput) phasesSeen() []PhaseName {
	var out []PhaseName
	for _, p := range in.calls {
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}

type recordingSpeech struct {
	said []string
	err  error
}

func (s *recordingSpeech) Speak(_ context.Context, text string) error {
	s.said = append(s.said, text)
	return s.err
}

func (s *recordingSpeech) count(text string) int {
	n := 0
	for _, t := range s.said {
		if t == text {
			n++
		}
	}
	return n
}

type recordingReplies struct {
	requests []ReplyRequest
	err      error
	panicMsg string
	after    func(n int)
}

func (r *recordingReplies) GenerateReply(_ context.Context, req ReplyRequest) (string, error) {
	r.requests = append(r.requests, req)
	if r.after != nil {
		defer r.after(len(r.requests))
	}
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if r.err != nil {
		return "", r.err
	}
	return "patient says: " + req.Utterance, nil
}

type capturingReporter struct {
	log  *SessionLog
	c    *casefile.Case
	hits int
}

func (r *capturingReporter) BuildReport(_ context.Context, log *SessionLog, c *casefile.Case) *FeedbackReport {
	r.log, r.c = log, c
	r.hits++
	return &FeedbackReport{
		CaseID:      c.ID,
		StationName: c.StationName,
		Repetitions: log.Repetitions,
		Questions:   len(log.Turns),
	}
}

type notFoundRepo struct{}

func (notFoundRepo) GetCase(context.Context, string) (*casefile.Case, error) {
	return nil, casefile.ErrNotFound
}

type brokenRepo struct{}

func (brokenRepo) GetCase(context.Context, string) (*casefile.Case, error) {
	return nil, errors.New("connection refused")
}

func testCase() *casefile.Case {
	return &casefile.Case{
		ID:                  "herpes_zoster_002",
		StationName:         "Chest pain - history taking",
		Diagnosis:           "Herpes zoster",
		PresentingComplaint: "Burning chest pain",
	}
}

func testPhases() []Phase {
	return []Phase{
		{Name: PhaseHistory, Duration: time.Minute},
		{Name: PhaseTransition, Duration: 10 * time.Second, EarlyExitOnSilence: true},
		{Name: PhaseICE, Duration: 10 * time.Second},
		{Name: PhaseManagement, Duration: 10 * time.Second},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	clock    *fakeClock
	input    *scriptedInput
	speech   *recordingSpeech
	replies  *recordingReplies
	reporter *capturingReporter
	engine   *Engine
}

func newHarness(script map[PhaseName][]string) *harness {
	h := &harness{
		clock:    newFakeClock(),
		speech:   &recordingSpeech{},
		replies:  &recordingReplies{},
		reporter: &capturingReporter{},
	}
	h.input = newScriptedInput(h.clock, script)
	h.engine = NewEngine(h.input, h.replies, h.speech, h.reporter,
		WithClock(h.clock),
		WithPhases(testPhases()),
		WithLogger(discardLogger()),
	)
	return h
}
