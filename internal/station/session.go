package station

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"osce-station/internal/casefile"
)

// Session owns the mutable state of one station run. Only the engine that
// runs it writes; other goroutines read through Snapshot.
type Session struct {
	ID   uuid.UUID
	Case *casefile.Case

	mu        sync.RWMutex
	affect    AffectState
	log       *SessionLog
	phase     PhaseName
	phases    []PhaseRecord
	startedAt time.Time
	endedAt   time.Time
	done      bool
}

func NewSession(c *casefile.Case) *Session {
	return &Session{
		ID:     uuid.New(),
		Case:   c,
		affect: NewAffectState(),
		log:    NewSessionLog(),
	}
}

// Snapshot is a point-in-time copy of a session for readers.
type Snapshot struct {
	ID          uuid.UUID           `json:"session_id"`
	CaseID      string              `json:"case_id"`
	StationName string              `json:"station_name"`
	Phase       PhaseName           `json:"phase"`
	Mood        Mood                `json:"mood"`
	Turns       []Turn              `json:"turns"`
	Duplicates  []string            `json:"duplicates"`
	Tags        map[Domain][]string `json:"tags"`
	Repetitions int                 `json:"repetitions"`
	Phases      []PhaseRecord       `json:"phases"`
	StartedAt   time.Time           `json:"started_at"`
	EndedAt     time.Time           `json:"ended_at,omitempty"`
	Done        bool                `json:"done"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:          s.ID,
		Phase:       s.phase,
		Mood:        s.affect.Mood,
		Turns:       append([]Turn(nil), s.log.Turns...),
		Duplicates:  append([]string(nil), s.log.Duplicates...),
		Tags:        make(map[Domain][]string, len(Domains)),
		Repetitions: s.log.Repetitions,
		Phases:      append([]PhaseRecord(nil), s.phases...),
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		Done:        s.done,
	}
	if s.Case != nil {
		snap.CaseID = s.Case.ID
		snap.StationName = s.Case.StationName
	}
	for _, d := range Domains {
		snap.Tags[d] = s.log.Coverage(d)
	}
	return snap
}

// Affect returns a copy of the patient's current affect state.
func (s *Session) Affect() AffectState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.affect.Clone()
}

// Log returns a copy of the session log.
func (s *Session) Log() *SessionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Clone()
}

// Phases returns the phases executed so far.
func (s *Session) Phases() []PhaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PhaseRecord(nil), s.phases...)
}

func (s *Session) update(fn func(s *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}
