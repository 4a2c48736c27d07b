package commands

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/jarvis-assistant/host/adapters/llm"
	"github.com/jarvis-assistant/host/adapters/tts"
	"github.com/jarvis-assistant/host/internal/config"
)

func TestBuildPipeline(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"mock backends", func(c *config.Config) {
			c.Chat.Backend = config.ChatMock
			c.STT.Backend = config.STTMock
		}, false},
		{"grok without key", func(c *config.Config) {
			c.STT.Backend = config.STTMock
		}, false},
		{"whisper without key", func(c *config.Config) {
			c.Chat.Backend = config.ChatMock
			c.STT.Backend = config.STTWhisper
		}, true},
		{"elevenlabs without key", func(c *config.Config) {
			c.Chat.Backend = config.ChatMock
			c.STT.Backend = config.STTMock
			c.TTS.Backend = config.TTSElevenLabs
		}, true},
		{"unknown chat backend", func(c *config.Config) {
			c.Chat.Backend = "claude"
			c.STT.Backend = config.STTMock
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)

			pipeline, cleanup, err := buildPipeline(context.Background(), cfg, zaptest.NewLogger(t))
			if cleanup == nil {
				t.Fatal("Expected a cleanup function")
			}
			defer cleanup()

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildPipeline() error = %v", err)
			}
			if pipeline == nil {
				t.Error("Expected a pipeline")
			}
		})
	}
}

func TestNewChatBackend_GrokUnconfigured(t *testing.T) {
	backend, err := newChatBackend(context.Background(), config.Default(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newChatBackend() error = %v", err)
	}
	grok, ok := backend.(*llm.GrokLLM)
	if !ok {
		t.Fatalf("Expected *llm.GrokLLM, got %T", backend)
	}
	if grok.Configured() {
		t.Error("Expected grok to be unconfigured without a key")
	}
}

func TestNewSynthesisBackend_Default(t *testing.T) {
	backend, err := newSynthesisBackend(config.Default(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newSynthesisBackend() error = %v", err)
	}
	if _, ok := backend.(tts.NopTextToSpeech); !ok {
		t.Errorf("Expected tts.NopTextToSpeech, got %T", backend)
	}
}
