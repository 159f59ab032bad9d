package station

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// SessionLog is the accumulating record of one conversation. It is written
// only by the engine running the session.
type SessionLog struct {
	Turns       []Turn
	Duplicates  []string
	Tags        map[Domain]LabelSet
	Repetitions int
}

func NewSessionLog() *SessionLog {
	tags := make(map[Domain]LabelSet, len(Domains))
	for _, d := range Domains {
		tags[d] = LabelSet{}
	}
	return &SessionLog{
		Turns:      make([]Turn, 0),
		Duplicates: make([]string, 0),
		Tags:       tags,
	}
}

// NewTurnID generates a turn ID in format TRN-{nanoid(10)}.
func NewTurnID() (string, error) {
	id, err := gonanoid.New(10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TRN-%s", id), nil
}

// Append records a candidate utterance and returns the stored turn.
func (l *SessionLog) Append(phase PhaseName, at time.Time, text string) Turn {
	id, err := NewTurnID()
	if err != nil {
		id = fmt.Sprintf("TRN-%d", len(l.Turns)+1)
	}
	t := Turn{ID: id, Phase: phase, At: at, Text: text}
	l.Turns = append(l.Turns, t)
	return t
}

// Questions returns the logged utterance texts in arrival order.
func (l *SessionLog) Questions() []string {
	out := make([]string, len(l.Turns))
	for i, t := range l.Turns {
		out[i] = t.Text
	}
	return out
}

// RecordRepeat registers that text matched repeatCount earlier turns. Each
// distinct phrasing is stored in Duplicates once.
func (l *SessionLog) RecordRepeat(text string, repeatCount int) {
	if repeatCount < 1 {
		return
	}
	l.Repetitions++
	for _, d := range l.Duplicates {
		if d == text {
			return
		}
	}
	l.Duplicates = append(l.Duplicates, text)
}

// AddLabels unions labels into the matching domain sets.
func (l *SessionLog) AddLabels(labels []Label) {
	for _, lb := range labels {
		set, ok := l.Tags[lb.Domain]
		if !ok {
			set = LabelSet{}
			l.Tags[lb.Domain] = set
		}
		set.Add(lb.Name)
	}
}

// Coverage returns the sorted labels seen for a domain.
func (l *SessionLog) Coverage(d Domain) []string {
	return l.Tags[d].Sorted()
}

// Clone returns a deep copy safe to hand to readers.
func (l *SessionLog) Clone() *SessionLog {
	out := &SessionLog{
		Turns:       make([]Turn, len(l.Turns)),
		Duplicates:  make([]string, len(l.Duplicates)),
		Tags:        make(map[Domain]LabelSet, len(l.Tags)),
		Repetitions: l.Repetitions,
	}
	copy(out.Turns, l.Turns)
	copy(out.Duplicates, l.Duplicates)
	for d, set := range l.Tags {
		cp := make(LabelSet, len(set))
		for k := range set {
			cp[k] = struct{}{}
		}
		out.Tags[d] = cp
	}
	return out
}
