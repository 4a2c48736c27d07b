package entities

import "time"

// Transport names the link a device is attached through
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportSerial    Transport = "serial"
)

// Device describes a connected voice-capture device
type Device struct {
	ID          string    `json:"id"`
	Transport   Transport `json:"transport"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}
