package repositories

import "context"

// TextToSpeech turns a reply into audio chunks. The channel is closed when
// synthesis ends.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
