package station

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const streamPollInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamEvent is one server message on the session stream.
type StreamEvent struct {
	Type      string     `json:"type"`
	Utterance *Utterance `json:"utterance,omitempty"`
}

const (
	EventReply = "reply"
	EventDone  = "done"
)

// Stream upgrades to a WebSocket. Text frames {"text": ...} from the
// client are queued as candidate utterances; patient replies are pushed
// back as they appear. A final done event is sent when the session ends.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	live, ok := h.live(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readerDone := make(chan struct{})
	go readUtterances(ctx, conn, live, readerDone)

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	sent := 0
	for {
		finished := false
		select {
		case <-readerDone:
			return
		case <-live.Done():
			finished = true
		case <-ticker.C:
		}

		for _, u := range live.Outbox.Since(sent) {
			if err := conn.WriteJSON(StreamEvent{Type: EventReply, Utterance: &u}); err != nil {
				return
			}
			sent = u.Seq
		}

		if finished {
			_ = conn.WriteJSON(StreamEvent{Type: EventDone})
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))
			return
		}
	}
}

func readUtterances(ctx context.Context, conn *websocket.Conn, live *Live, done chan<- struct{}) {
	defer close(done)
	for {
		var req UtteranceRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			continue
		}
		if err := live.Input.Push(ctx, text); err != nil {
			return
		}
	}
}
