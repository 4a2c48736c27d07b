package tts

import (
	"context"

	"github.com/jarvis-assistant/host/domain/repositories"
)

// NopTextToSpeech produces no audio. Devices fall back to showing the reply text.
type NopTextToSpeech struct{}

var _ repositories.TextToSpeech = NopTextToSpeech{}

// ConvertTextToSpeech returns an already closed channel
func (NopTextToSpeech) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}
