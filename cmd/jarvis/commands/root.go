package commands

import (
	"github.com/spf13/cobra"

	"github.com/jarvis-assistant/host/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "Jarvis voice assistant host",
	Long: `jarvis - host side of the Jarvis voice assistant.

A capture device records an utterance and streams it to the host, which
transcribes it, asks the chat backend for a reply and reports every step
back to the device.

Configuration is read from .env, then the optional --config YAML file,
then the environment. Commonly used variables:
  GROK_API_KEY      chat backend credential (xAI)
  CHAT_BACKEND      grok | gemini | mock
  STT_BACKEND       whisper | google | mock
  OPENAI_API_KEY    Whisper transcription credential
  TTS_BACKEND       none | elevenlabs

Examples:
  jarvis serve --port 8765
  jarvis serial -p /dev/ttyACM0 -b 115200
  jarvis device-sim --file utterance.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serialCmd)
	rootCmd.AddCommand(deviceSimCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
