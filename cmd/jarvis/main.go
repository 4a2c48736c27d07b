// Command jarvis is the host side of the Jarvis voice assistant.
//
// Usage:
//
//	jarvis [--config jarvis.yaml] <command>
//
// Commands:
//
//	serve       - WebSocket server for networked devices
//	serial      - host for a device attached over USB serial
//	device-sim  - send a recorded utterance to a running server
package main

import (
	"fmt"
	"os"

	"github.com/jarvis-assistant/host/cmd/jarvis/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
