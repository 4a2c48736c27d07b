// Package config loads host settings from .env, an optional YAML file and the
// process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jarvis-assistant/host/adapters/tts"
)

// Chat backends
const (
	ChatGrok   = "grok"
	ChatGemini = "gemini"
	ChatMock   = "mock"
)

// Speech-to-text backends
const (
	STTWhisper = "whisper"
	STTGoogle  = "google"
	STTMock    = "mock"
)

// Text-to-speech backends
const (
	TTSNone       = "none"
	TTSElevenLabs = "elevenlabs"
)

// Config is the full host configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Audio  AudioConfig  `yaml:"audio"`
	Chat   ChatConfig   `yaml:"chat"`
	STT    STTConfig    `yaml:"stt"`
	TTS    TTSConfig    `yaml:"tts"`
	Serial SerialConfig `yaml:"serial"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	// UnitTimeout drops a partially received frame or line on a shared stream.
	UnitTimeout time.Duration `yaml:"unit_timeout"`
}

type ChatConfig struct {
	Backend       string        `yaml:"backend"`
	Persona       string        `yaml:"persona"`
	HistoryWindow int           `yaml:"history_window"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float64       `yaml:"temperature"`
	Timeout       time.Duration `yaml:"timeout"`
	Grok          GrokConfig    `yaml:"grok"`
	Gemini        GeminiConfig  `yaml:"gemini"`
}

type GrokConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type STTConfig struct {
	Backend  string        `yaml:"backend"`
	Language string        `yaml:"language"`
	Whisper  WhisperConfig `yaml:"whisper"`
}

type WhisperConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type TTSConfig struct {
	Backend    string               `yaml:"backend"`
	ElevenLabs tts.ElevenLabsConfig `yaml:"elevenlabs"`
}

type SerialConfig struct {
	Port      string        `yaml:"port"`
	Baud      int           `yaml:"baud"`
	BootDelay time.Duration `yaml:"boot_delay"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8765},
		Audio:  AudioConfig{SampleRate: 16000, UnitTimeout: 2 * time.Second},
		Chat: ChatConfig{
			Backend:       ChatGrok,
			HistoryWindow: 10,
			MaxTokens:     500,
			Temperature:   0.7,
			Grok: GrokConfig{
				Model:   "grok-2-latest",
				BaseURL: "https://api.x.ai/v1",
			},
		},
		STT:    STTConfig{Backend: STTWhisper, Language: "en-US", Whisper: WhisperConfig{Model: "whisper-1"}},
		TTS:    TTSConfig{Backend: TTSNone},
		Serial: SerialConfig{Port: "/dev/ttyACM0", Baud: 115200, BootDelay: 2 * time.Second},
		Log:    LogConfig{Level: "info"},
	}
}

// Load builds the configuration. A missing .env file is not an error; path
// may be empty to skip the YAML file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str("HOST", &c.Server.Host)
	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := num("SAMPLE_RATE", &c.Audio.SampleRate); err != nil {
		return err
	}

	str("CHAT_BACKEND", &c.Chat.Backend)
	str("GROK_API_KEY", &c.Chat.Grok.APIKey)
	str("GROK_MODEL", &c.Chat.Grok.Model)
	str("GROK_BASE_URL", &c.Chat.Grok.BaseURL)
	str("GEMINI_API_KEY", &c.Chat.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Chat.Gemini.Model)

	str("STT_BACKEND", &c.STT.Backend)
	str("STT_LANGUAGE", &c.STT.Language)
	str("OPENAI_API_KEY", &c.STT.Whisper.APIKey)
	str("OPENAI_BASE_URL", &c.STT.Whisper.BaseURL)
	str("WHISPER_MODEL", &c.STT.Whisper.Model)

	str("TTS_BACKEND", &c.TTS.Backend)
	str("ELEVEN_LABS_API_KEY", &c.TTS.ElevenLabs.APIKey)
	str("ELEVEN_LABS_VOICE_ID", &c.TTS.ElevenLabs.VoiceID)

	str("SERIAL_PORT", &c.Serial.Port)
	if err := num("SERIAL_BAUD", &c.Serial.Baud); err != nil {
		return err
	}

	str("LOG_LEVEL", &c.Log.Level)
	if v, ok := lookup("LOG_DEVELOPMENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_DEVELOPMENT %q: %w", v, err)
		}
		c.Log.Development = b
	}

	c.Chat.Backend = strings.ToLower(c.Chat.Backend)
	c.STT.Backend = strings.ToLower(c.STT.Backend)
	c.TTS.Backend = strings.ToLower(c.TTS.Backend)
	return nil
}

// Validate rejects settings the host cannot run with
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.UnitTimeout <= 0 {
		return fmt.Errorf("unit timeout must be positive, got %s", c.Audio.UnitTimeout)
	}
	if c.Chat.HistoryWindow < 1 {
		return fmt.Errorf("history window must be at least 1, got %d", c.Chat.HistoryWindow)
	}
	if c.Chat.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be at least 1, got %d", c.Chat.MaxTokens)
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("temperature %.2f outside [0, 2]", c.Chat.Temperature)
	}
	if c.Chat.Timeout < 0 {
		return fmt.Errorf("chat timeout must not be negative")
	}

	switch c.Chat.Backend {
	case ChatGrok, ChatGemini, ChatMock:
	default:
		return fmt.Errorf("unknown chat backend %q", c.Chat.Backend)
	}
	switch c.STT.Backend {
	case STTWhisper, STTGoogle, STTMock:
	default:
		return fmt.Errorf("unknown stt backend %q", c.STT.Backend)
	}
	switch c.TTS.Backend {
	case TTSNone, TTSElevenLabs:
	default:
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}

	if c.Serial.Baud <= 0 {
		return fmt.Errorf("baud rate must be positive, got %d", c.Serial.Baud)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// ChatConfigured reports whether the selected chat backend has a credential
func (c Config) ChatConfigured() bool {
	switch c.Chat.Backend {
	case ChatGrok:
		return c.Chat.Grok.APIKey != ""
	case ChatGemini:
		return c.Chat.Gemini.APIKey != ""
	}
	return true
}

// NewLogger builds the zap logger described by the log section
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
