package agent

import (
	"context"
	"fmt"

	"osce-station/internal/station"
)

// Sink receives what the patient says, with audio when synthesis worked.
type Sink interface {
	Deliver(text string, audio []byte)
}

// Voice is a station.SpeechOutput that synthesizes every line before
// handing it to a sink.
type Voice struct {
	tts     station.Synthesizer
	voiceID string
	sink    Sink
}

func NewVoice(tts station.Synthesizer, voiceID string, sink Sink) *Voice {
	return &Voice{tts: tts, voiceID: voiceID, sink: sink}
}

// Speak always delivers the text. A synthesis failure is returned after
// the text went out without audio.
func (v *Voice) Speak(ctx context.Context, text string) error {
	if v.tts == nil {
		v.sink.Deliver(text, nil)
		return nil
	}
	audio, err := v.tts.Synthesize(ctx, text, v.voiceID)
	if err != nil {
		v.sink.Deliver(text, nil)
		return fmt.Errorf("synthesize speech: %w", err)
	}
	v.sink.Deliver(text, audio)
	return nil
}
