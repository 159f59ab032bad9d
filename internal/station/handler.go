package station

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Transcriber turns recorded candidate audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error)
}

// PDFRenderer renders a report as a PDF document.
type PDFRenderer interface {
	RenderPDF(r *FeedbackReport) ([]byte, error)
}

type Handler struct {
	mgr *Manager
	stt Transcriber
	tts Synthesizer
	pdf PDFRenderer
}

func NewHandler(mgr *Manager, stt Transcriber, tts Synthesizer, pdf PDFRenderer) *Handler {
	return &Handler{mgr: mgr, stt: stt, tts: tts, pdf: pdf}
}

type StartSessionRequest struct {
	Case string `json:"case"`
}

type UtteranceRequest struct {
	Text string `json:"text"`
}

type TTSRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Case == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	live, err := h.mgr.Start(r.Context(), req.Case)
	if err != nil {
		var fatal *FatalDataError
		if errors.As(err, &fatal) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": live.Session.ID.String(),
		"case_id":    live.Session.Case.ID,
	})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	live, ok := h.live(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, live.Session.Snapshot())
}

func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	live, ok := h.live(w, r)
	if !ok {
		return
	}
	h.mgr.Stop(live.Session.ID)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PostUtterance(w http.ResponseWriter, r *http.Request) {
	live, ok := h.live(w, r)
	if !ok {
		return
	}
	var req UtteranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	h.enqueue(w, r, live, req.Text)
}

func (h *Handler) PostAudio(w http.ResponseWriter, r *http.Request) {
	live, ok := h.live(w, r)
	if !ok {
		return
	}
	if h.stt == nil {
		http.Error(w, "Speech-to-text is not configured", http.StatusNotImplemented)
		return
	}

	// Limit upload size (10MB)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error retrieving audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		http.Error(w, "Failed to read audio file", http.StatusInternalServerError)
		return
	}

	text, err := h.stt.Transcribe(r.Context(), buf.Bytes())
	if err != nil {
		http.Error(w, "Transcription failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.enqueue(w, r, live, text)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, live *Live, text string) {
	if text != "" {
		if err := live.Input.Push(r.Context(), text); err != nil {
			if errors.Is(err, ErrInputClosed) {
				http.Error(w, "Session has finished", http.StatusConflict)
				return
			}
			http.Error(w, "Failed to queue utterance", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"text": text})
}

func (h *Handler) GetReplies(w http.ResponseWriter, r *http.Request) {
	live, ok := h.live(w, r)
	if !ok {
		return
	}
	after, _ := strconv.Atoi(r.URL.Query().Get("after"))
	writeJSON(w, http.StatusOK, live.Outbox.Since(after))
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.finishedReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetReportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		http.Error(w, "PDF rendering is not configured", http.StatusNotImplemented)
		return
	}
	report, ok := h.finishedReport(w, r)
	if !ok {
		return
	}
	data, err := h.pdf.RenderPDF(report)
	if err != nil {
		http.Error(w, "PDF rendering failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(data)
}

func (h *Handler) HandleTTS(w http.ResponseWriter, r *http.Request) {
	if h.tts == nil {
		http.Error(w, "Text-to-speech is not configured", http.StatusNotImplemented)
		return
	}
	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	audioData, err := h.tts.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		http.Error(w, "TTS failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(audioData)
}

func (h *Handler) finishedReport(w http.ResponseWriter, r *http.Request) (*FeedbackReport, bool) {
	live, ok := h.live(w, r)
	if !ok {
		return nil, false
	}
	report, finished, err := live.Result()
	switch {
	case !finished:
		http.Error(w, "Session still running", http.StatusConflict)
		return nil, false
	case err != nil:
		http.Error(w, "Session failed: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return report, true
}

func (h *Handler) live(w http.ResponseWriter, r *http.Request) (*Live, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return nil, false
	}
	live, ok := h.mgr.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return live, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/sessions", h.StartSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.StopSession)
		r.Post("/utterances", h.PostUtterance)
		r.Post("/audio", h.PostAudio)
		r.Get("/replies", h.GetReplies)
		r.Get("/stream", h.Stream)
		r.Get("/report", h.GetReport)
		r.Get("/report.pdf", h.GetReportPDF)
	})
	r.Post("/tts", h.HandleTTS)
}
