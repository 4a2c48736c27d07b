package websocket

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/domain/entities"
	"github.com/jarvis-assistant/host/internal/protocol"
	"github.com/jarvis-assistant/host/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024
)

// ErrConnectionClosed is returned when writing to a client whose write pump has stopped.
var ErrConnectionClosed = errors.New("connection closed")

var upgrader = websocket.Upgrader{
	// Devices connect from the local network without an Origin header.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Hub maintains the set of connected devices. Every client gets its own
// session; the hub only tracks them.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	stopped chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	pipeline session.Pipeline
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(pipeline session.Pipeline, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		pipeline:   pipeline,
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.device.ID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.device.ID),
				zap.String("remoteAddr", client.device.RemoteAddr))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.device.ID]; ok {
				delete(h.clients, client.device.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.device.ID))

		case <-ctx.Done():
			return
		}
	}
}

// Devices lists the connected devices ordered by connection time
func (h *Hub) Devices() []entities.Device {
	h.mu.RLock()
	devices := make([]entities.Device, 0, len(h.clients))
	for _, client := range h.clients {
		devices = append(devices, client.device)
	}
	h.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ConnectedAt.Before(devices[j].ConnectedAt)
	})
	return devices
}

// WriteData is one outbound websocket message
type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its session.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed when the write pump exits.
	done chan struct{}

	device  entities.Device
	session *session.Session
	logger  *zap.Logger

	// Odd trailing byte of the last raw PCM message. Read pump only.
	pcmCarry []byte
}

// HandleWebSocket upgrades the request and starts the client pumps
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	device := entities.Device{
		ID:          uuid.NewString(),
		Transport:   entities.TransportWebSocket,
		RemoteAddr:  c.Request().RemoteAddr,
		ConnectedAt: time.Now(),
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		done:   make(chan struct{}),
		device: device,
		logger: logger.With(zap.String("clientID", device.ID)),
	}
	client.session = session.New(hub.pipeline, client, client.logger)

	select {
	case hub.register <- client:
	case <-hub.stopped:
		conn.Close()
		return ErrConnectionClosed
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// Emit implements usecase.Output by sending the status as a text message
func (c *Client) Emit(ctx context.Context, status protocol.Status) error {
	payload, err := status.Encode()
	if err != nil {
		return err
	}
	c.logger.Debug("Sending status", zap.String("status", string(status.Status)))
	return c.enqueue(ctx, WriteData{Type: websocket.TextMessage, Payload: payload})
}

// SendAudio implements usecase.Output by sending PCM as a binary message
func (c *Client) SendAudio(ctx context.Context, audio []byte) error {
	return c.enqueue(ctx, WriteData{Type: websocket.BinaryMessage, Payload: audio})
}

func (c *Client) enqueue(ctx context.Context, msg WriteData) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump reads device messages and drives the session. Utterances are
// processed inline, so nothing more is read from this device until the
// pipeline returns.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		in, ok := c.decode(messageType, message)
		if !ok {
			continue
		}
		if err := c.session.Handle(ctx, in); err != nil {
			c.logger.Warn("Closing connection", zap.Error(err))
			break
		}

		// The pipeline may have run for longer than pongWait.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	c.logger.Info("Device disconnected",
		zap.Int("historyLength", c.session.History().Len()),
		zap.Int("bufferedSamples", c.session.Buffered()))
}

// decode turns one websocket message into a session input. Malformed
// messages are logged and dropped.
func (c *Client) decode(messageType int, message []byte) (session.Input, bool) {
	switch messageType {
	case websocket.TextMessage:
		cmd, err := protocol.ParseCommand(message)
		if err != nil {
			c.logger.Warn("Invalid control message", zap.Error(err), zap.ByteString("message", message))
			return session.Input{}, false
		}
		c.logger.Debug("Received command", zap.String("action", cmd.Name))
		return session.CommandInput(cmd), true

	case websocket.BinaryMessage:
		if !protocol.HasMagic(message) {
			return session.AudioInput(c.rawSamples(message)), true
		}
		frame, err := protocol.DecodeFrame(message)
		if err != nil {
			c.logger.Warn("Dropping malformed audio frame", zap.Error(err), zap.Int("size", len(message)))
			return session.Input{}, false
		}
		return session.AudioInput(frame.Samples), true
	}

	c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
	return session.Input{}, false
}

// rawSamples converts headerless PCM. A sample split across two messages is
// joined with the next message.
func (c *Client) rawSamples(message []byte) []int16 {
	data := message
	if len(c.pcmCarry) > 0 {
		data = append(c.pcmCarry, message...)
		c.pcmCarry = nil
	}
	if len(data)%protocol.BytesPerSample != 0 {
		c.pcmCarry = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	return protocol.BytesToSamples(data)
}

// writePump pumps queued messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
