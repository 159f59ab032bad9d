package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// DefaultSTTURL is the transcription endpoint of the local speech service.
const DefaultSTTURL = "http://tts:8000/transcribe"

// ErrEmptyAudio is returned before any request is made for a zero-length recording.
var ErrEmptyAudio = errors.New("empty audio recording")

// Transcript is what the speech service heard.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// WhisperClient posts candidate recordings to the speech service.
type WhisperClient struct {
	endpoint string
	http     *http.Client
}

func NewWhisperClient(endpoint string) *WhisperClient {
	if endpoint == "" {
		endpoint = DefaultSTTURL
	}
	return &WhisperClient{endpoint: endpoint, http: &http.Client{Timeout: time.Minute}}
}

// Transcribe satisfies station.Transcriber.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	t, err := c.Recognize(ctx, audio)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

// Recognize returns the full transcript. A blank transcript is an error:
// the station would otherwise record a silent turn.
func (c *WhisperClient) Recognize(ctx context.Context, audio []byte) (Transcript, error) {
	if len(audio) == 0 {
		return Transcript{}, ErrEmptyAudio
	}

	body, contentType, err := audioForm(audio)
	if err != nil {
		return Transcript{}, fmt.Errorf("build transcription form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return Transcript{}, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Transcript{}, NewTimeoutError(err)
		}
		return Transcript{}, NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Transcript{}, NewAPIError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var t Transcript
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return Transcript{}, NewParseError(err)
	}
	t.Text = strings.TrimSpace(t.Text)
	if t.Text == "" {
		return Transcript{}, NewAPIError(resp.StatusCode, "empty transcript")
	}
	return t, nil
}

// audioForm wraps the recording in a multipart body under the "file" field,
// naming it after the container the browser actually produced.
func audioForm(audio []byte) (io.Reader, string, error) {
	name, mime := audioKind(audio)

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func audioKind(audio []byte) (string, string) {
	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")):
		return "audio.wav", "audio/wav"
	case bytes.HasPrefix(audio, []byte("OggS")):
		return "audio.ogg", "audio/ogg"
	case bytes.HasPrefix(audio, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "audio.webm", "audio/webm"
	case bytes.HasPrefix(audio, []byte("ID3")), len(audio) > 1 && audio[0] == 0xFF && audio[1]&0xE0 == 0xE0:
		return "audio.mp3", "audio/mpeg"
	default:
		return "audio.bin", "application/octet-stream"
	}
}
