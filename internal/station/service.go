package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"osce-station/internal/casefile"
)

// Fixed station lines.
const (
	TransitionAnnouncement = "We have reviewed your history. I will now explain the findings."
	IdlePrompt             = "Are you ready to continue, doctor?"
	FallbackReply          = "Sorry, I did not understand the question."
)

// InputProvider yields candidate utterances. An empty string means silence.
type InputProvider interface {
	NextUtterance(ctx context.Context, phase PhaseName, timeout time.Duration) (string, error)
}

// ReplyRequest is everything the reply generator may use for one turn.
type ReplyRequest struct {
	Utterance string
	Case      *casefile.Case
	Phase     PhaseName
	Affect    AffectState
	History   []Turn
}

// ReplyProvider generates the patient's answer.
type ReplyProvider interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
}

// SpeechOutput plays text to the candidate.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
}

// Reporter turns a finished session log into a report. It must not fail.
type Reporter interface {
	BuildReport(ctx context.Context, log *SessionLog, c *casefile.Case) *FeedbackReport
}

// Engine drives sessions through the phase schedule. An engine instance
// runs one session at a time.
type Engine struct {
	input    InputProvider
	replies  ReplyProvider
	speech   SpeechOutput
	reporter Reporter

	clock  Clock
	timing Timing
	phases []Phase
	logger *slog.Logger
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithTiming(t Timing) Option { return func(e *Engine) { e.timing = t } }

func WithPhases(p []Phase) Option {
	return func(e *Engine) { e.phases = append([]Phase(nil), p...) }
}

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func NewEngine(input InputProvider, replies ReplyProvider, speech SpeechOutput, reporter Reporter, opts ...Option) *Engine {
	e := &Engine{
		input:    input,
		replies:  replies,
		speech:   speech,
		reporter: reporter,
		clock:    SystemClock,
		timing:   DefaultTiming(),
		phases:   DefaultPhases(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadCase fetches a case for a session. Any lookup failure is fatal.
func LoadCase(ctx context.Context, repo casefile.Repository, key string) (*casefile.Case, error) {
	c, err := repo.GetCase(ctx, key)
	if err != nil {
		msg := "case lookup failed"
		if errors.Is(err, casefile.ErrNotFound) {
			msg = "case not found"
		}
		return nil, &FatalDataError{CaseKey: key, Message: msg, Err: err}
	}
	if c == nil {
		return nil, &FatalDataError{CaseKey: key, Message: "case not found", Err: casefile.ErrNotFound}
	}
	return c, nil
}

// RunSession runs a fresh session for c and returns its report.
func (e *Engine) RunSession(ctx context.Context, c *casefile.Case) (*FeedbackReport, error) {
	if c == nil {
		return nil, &FatalDataError{Message: "no case loaded, cannot run station", Err: casefile.ErrNotFound}
	}
	return e.Run(ctx, NewSession(c))
}

// Run executes every phase of s in order, then builds the report. Only a
// missing case or context cancellation stops it early. Either way the
// session ends done with a neutral affect.
func (e *Engine) Run(ctx context.Context, s *Session) (*FeedbackReport, error) {
	if s == nil || s.Case == nil {
		return nil, &FatalDataError{Message: "no case loaded, cannot run station", Err: casefile.ErrNotFound}
	}
	logger := e.logger.With("session_id", s.ID.String(), "case_id", s.Case.ID)

	s.update(func(s *Session) {
		s.affect.Reset()
		s.startedAt = e.clock.Now()
	})
	defer s.update(func(s *Session) {
		s.affect.Reset()
		s.endedAt = e.clock.Now()
		s.done = true
	})
	logger.Info("station started", "station", s.Case.StationName, "phases", len(e.phases))

	for _, p := range e.phases {
		if err := e.runPhase(ctx, s, p, logger); err != nil {
			return nil, fmt.Errorf("phase %s: %w", p.Name, err)
		}
	}

	report := e.reporter.BuildReport(ctx, s.Log(), s.Case)
	if report == nil {
		report = &FeedbackReport{CaseID: s.Case.ID, StationName: s.Case.StationName, GeneratedAt: e.clock.Now()}
	}
	s.update(func(s *Session) {
		report.SessionID = s.ID
		report.FinalMood = s.affect.Mood
		report.Phases = append([]PhaseRecord(nil), s.phases...)
	})
	logger.Info("station completed",
		"data_gathering", report.DataGathering,
		"interpersonal", report.Interpersonal,
		"management", report.Management,
		"listening", report.Listening,
	)
	return report, nil
}

func (e *Engine) runPhase(ctx context.Context, s *Session, p Phase, logger *slog.Logger) error {
	start := e.clock.Now()
	deadline := start.Add(p.Duration)
	s.update(func(s *Session) {
		s.phase = p.Name
		if p.Name == PhaseTransition {
			s.affect.TransitionStartedAt = start
		}
	})
	logger.Info("phase started", "phase", p.Name, "duration", p.Duration)

	if p.Name == PhaseTransition {
		e.say(ctx, p.Name, TransitionAnnouncement, logger)
		if err := e.clock.Sleep(ctx, e.timing.SettleDelay); err != nil {
			return err
		}
	}

	lastSpoke := start
	idlePrompted := false
	endedEarly := false

	for e.clock.Now().Before(deadline) {
		wait := min(e.timing.InputTimeout, deadline.Sub(e.clock.Now()))
		text, err := e.input.NextUtterance(ctx, p.Name, wait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("input failed, treating as silence",
				"phase", p.Name, "error", &TransientIOError{Operation: "next utterance", Err: err})
			text = ""
		}

		if strings.TrimSpace(text) == "" {
			silent := e.clock.Now().Sub(lastSpoke)
			if p.EarlyExitOnSilence && silent > e.timing.TransitionSilence {
				logger.Info("silent during phase, ending early", "phase", p.Name, "silent_for", silent)
				endedEarly = true
				break
			}
			if silent > e.timing.IdleThreshold && !idlePrompted {
				idlePrompted = true
				e.say(ctx, p.Name, IdlePrompt, logger)
				if err := e.clock.Sleep(ctx, e.timing.IdlePause); err != nil {
					return err
				}
			}
			if err := e.clock.Sleep(ctx, e.timing.PollInterval); err != nil {
				return err
			}
			continue
		}

		lastSpoke = e.clock.Now()
		idlePrompted = false
		e.handleTurn(ctx, s, p.Name, text, logger)
	}

	end := e.clock.Now()
	s.update(func(s *Session) {
		s.phases = append(s.phases, PhaseRecord{
			Name:       p.Name,
			StartedAt:  start,
			EndedAt:    end,
			EndedEarly: endedEarly,
		})
	})
	logger.Info("phase complete", "phase", p.Name, "elapsed", end.Sub(start), "ended_early", endedEarly)
	return nil
}

// handleTurn logs the utterance first; nothing after that can un-log it.
func (e *Engine) handleTurn(ctx context.Context, s *Session, phase PhaseName, text string, logger *slog.Logger) {
	now := e.clock.Now()

	var (
		req     ReplyRequest
		turn    Turn
		repeats int
		labels  []Label
	)
	s.update(func(s *Session) {
		prior := s.log.Questions()
		turn = s.log.Append(phase, now, text)

		repeats = CountRepeats(text, prior)
		s.log.RecordRepeat(text, repeats)
		UpdateMood(&s.affect, text, repeats)

		labels = Classify(text)
		s.log.AddLabels(labels)

		req = ReplyRequest{
			Utterance: text,
			Case:      s.Case,
			Phase:     phase,
			Affect:    s.affect.Clone(),
			History:   append([]Turn(nil), s.log.Turns...),
		}
	})
	logger.Info("candidate turn",
		"phase", phase,
		"turn_id", turn.ID,
		"repeats", repeats,
		"mood", req.Affect.Mood,
		"labels", len(labels),
	)

	var reply string
	err := guard(func() error {
		var err error
		reply, err = e.replies.GenerateReply(ctx, req)
		return err
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			logger.Warn("reply generation failed, using fallback",
				"phase", phase, "error", &TransientProviderError{Provider: "reply", Err: err})
		}
		reply = FallbackReply
		s.update(func(s *Session) { s.affect.FallbackTriggered = true })
	}
	s.update(func(s *Session) { s.affect.LastResponse = reply })

	e.say(ctx, phase, reply, logger)
}

func (e *Engine) say(ctx context.Context, phase PhaseName, text string, logger *slog.Logger) {
	err := guard(func() error { return e.speech.Speak(ctx, text) })
	if err != nil {
		logger.Warn("speech output failed", "phase", phase, "error", &TransientIOError{Operation: "speak", Err: err})
	}
}

// guard turns a collaborator panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
