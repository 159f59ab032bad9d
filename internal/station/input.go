package station

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrInputClosed is returned when pushing to a closed queue.
var ErrInputClosed = errors.New("input queue closed")

// QueueInput is an InputProvider fed by pushes from another goroutine, such
// as an HTTP handler or a console reader.
type QueueInput struct {
	ch     chan string
	closed chan struct{}
	once   sync.Once
}

func NewQueueInput(buffer int) *QueueInput {
	if buffer < 1 {
		buffer = 1
	}
	return &QueueInput{
		ch:     make(chan string, buffer),
		closed: make(chan struct{}),
	}
}

// Push enqueues a candidate utterance. It blocks while the queue is full.
func (q *QueueInput) Push(ctx context.Context, text string) error {
	select {
	case <-q.closed:
		return ErrInputClosed
	default:
	}
	select {
	case q.ch <- text:
		return nil
	case <-q.closed:
		return ErrInputClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops further pushes. Queued utterances remain readable.
func (q *QueueInput) Close() {
	q.once.Do(func() { close(q.closed) })
}

// NextUtterance waits up to timeout for the next utterance. An empty string
// means the candidate said nothing in that window.
func (q *QueueInput) NextUtterance(ctx context.Context, _ PhaseName, timeout time.Duration) (string, error) {
	select {
	case text := <-q.ch:
		return text, nil
	default:
	}
	if timeout <= 0 {
		return "", nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case text := <-q.ch:
		return text, nil
	case <-t.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Utterance is one thing the patient (or the station) said aloud.
type Utterance struct {
	Seq   int       `json:"seq"`
	Text  string    `json:"text"`
	Audio []byte    `json:"audio_base64,omitempty"`
	At    time.Time `json:"at"`
}

// Outbox is a SpeechOutput that keeps everything said for polling clients.
type Outbox struct {
	mu    sync.RWMutex
	items []Utterance
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Speak(_ context.Context, text string) error {
	o.Deliver(text, nil)
	return nil
}

// Deliver appends text with optional synthesized audio.
func (o *Outbox) Deliver(text string, audio []byte) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, Utterance{
		Seq:   len(o.items) + 1,
		Text:  text,
		Audio: audio,
		At:    time.Now(),
	})
}

// Since returns utterances with Seq greater than after.
func (o *Outbox) Since(after int) []Utterance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if after < 0 {
		after = 0
	}
	if after >= len(o.items) {
		return []Utterance{}
	}
	return append([]Utterance(nil), o.items[after:]...)
}
