package station

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"osce-station/internal/casefile"
)

// EngineFactory builds a dedicated engine for one live session.
type EngineFactory func(in InputProvider, out *Outbox) *Engine

// CompletionHook runs after a live session produced its report.
type CompletionHook func(ctx context.Context, s *Session, r *FeedbackReport)

// Live is a session running in the background.
type Live struct {
	Session *Session
	Input   *QueueInput
	Outbox  *Outbox

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	report     *FeedbackReport
	err        error
	finishedAt time.Time
}

// Done is closed when the session has finished or failed.
func (l *Live) Done() <-chan struct{} {
	return l.done
}

// Result returns the report once the session is finished.
func (l *Live) Result() (report *FeedbackReport, finished bool, err error) {
	select {
	case <-l.done:
	default:
		return nil, false, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.report, true, l.err
}

// Manager keeps independent live sessions, each with its own engine.
type Manager struct {
	cases      casefile.Repository
	newEngine  EngineFactory
	onComplete CompletionHook
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Live
}

func NewManager(cases casefile.Repository, factory EngineFactory, onComplete CompletionHook, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cases:      cases,
		newEngine:  factory,
		onComplete: onComplete,
		logger:     logger,
		sessions:   make(map[uuid.UUID]*Live),
	}
}

// Start loads the case and runs a new session in the background. The
// session outlives ctx, which only bounds the case lookup.
func (m *Manager) Start(ctx context.Context, caseKey string) (*Live, error) {
	c, err := LoadCase(ctx, m.cases, caseKey)
	if err != nil {
		return nil, err
	}

	input := NewQueueInput(16)
	outbox := NewOutbox()
	engine := m.newEngine(input, outbox)

	runCtx, cancel := context.WithCancel(context.Background())
	live := &Live{
		Session: NewSession(c),
		Input:   input,
		Outbox:  outbox,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[live.Session.ID] = live
	m.mu.Unlock()

	go func() {
		defer close(live.done)
		defer cancel()
		defer input.Close()

		report, err := engine.Run(runCtx, live.Session)
		live.mu.Lock()
		live.report, live.err = report, err
		live.finishedAt = time.Now()
		live.mu.Unlock()

		if err != nil {
			m.logger.Error("session failed", "session_id", live.Session.ID.String(), "error", err)
			return
		}
		if m.onComplete != nil {
			m.onComplete(runCtx, live.Session, report)
		}
	}()

	return live, nil
}

func (m *Manager) Get(id uuid.UUID) (*Live, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.sessions[id]
	return l, ok
}

// Stop cancels a running session. It reports whether the id was known.
func (m *Manager) Stop(id uuid.UUID) bool {
	l, ok := m.Get(id)
	if !ok {
		return false
	}
	l.cancel()
	return true
}

// Evict forgets sessions that finished more than ttl ago and returns how
// many were removed. Running sessions are never evicted.
func (m *Manager) Evict(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, l := range m.sessions {
		select {
		case <-l.done:
		default:
			continue
		}
		l.mu.RLock()
		finished := l.finishedAt
		l.mu.RUnlock()
		if finished.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions the manager holds.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown cancels every running session and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	lives := make([]*Live, 0, len(m.sessions))
	for _, l := range m.sessions {
		lives = append(lives, l)
	}
	m.mu.RUnlock()

	for _, l := range lives {
		l.cancel()
	}
	for _, l := range lives {
		<-l.done
	}
}
