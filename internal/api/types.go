package api

import "github.com/jarvis-assistant/host/domain/entities"

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Devices int    `json:"devices"`
}

// DevicesResponse lists the connected devices
type DevicesResponse struct {
	Devices []entities.Device `json:"devices"`
	Count   int               `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
