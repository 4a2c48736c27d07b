package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jarvis-assistant/host/domain/entities"
	"github.com/jarvis-assistant/host/internal/protocol"
	"github.com/jarvis-assistant/host/usecase"
)

var _ usecase.Output = (*Client)(nil)

// echoPipeline records the samples it receives and replies with a fixed exchange
type echoPipeline struct {
	mu      sync.Mutex
	samples [][]int16
}

func (p *echoPipeline) Process(ctx context.Context, samples []int16, conv *entities.Conversation, out usecase.Output) error {
	p.mu.Lock()
	p.samples = append(p.samples, append([]int16(nil), samples...))
	p.mu.Unlock()

	conv.AddMessage(entities.MessageRoleUser, "hello")
	conv.AddMessage(entities.MessageRoleAssistant, "hi")
	if err := out.Emit(ctx, protocol.NewTranscribedStatus("hello")); err != nil {
		return err
	}
	if err := out.SendAudio(ctx, []byte{1, 2, 3, 4}); err != nil {
		return err
	}
	return out.Emit(ctx, protocol.NewResponseStatus("hello", "hi"))
}

func (p *echoPipeline) calls() [][]int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples
}

func setupTestServer(t *testing.T) (*Hub, *echoPipeline, string) {
	t.Helper()
	// Pumps outlive the test body, so they must not log through t.
	logger := zap.NewNop()
	pipeline := &echoPipeline{}
	hub := NewHub(pipeline, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, pipeline, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, action string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"`+action+`"}`)); err != nil {
		t.Fatalf("Failed to send %s: %v", action, err)
	}
}

func readStatus(t *testing.T, conn *websocket.Conn) protocol.Status {
	t.Helper()
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read status: %v", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var status protocol.Status
		if err := json.Unmarshal(data, &status); err != nil {
			t.Fatalf("Invalid status %q: %v", data, err)
		}
		return status
	}
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(&echoPipeline{}, zaptest.NewLogger(t))

	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialized")
	}
	if len(hub.Devices()) != 0 {
		t.Error("Expected no devices")
	}
}

func TestClient_Ping(t *testing.T) {
	_, _, url := setupTestServer(t)
	conn := dial(t, url)

	for i := 0; i < 2; i++ {
		sendCommand(t, conn, "ping")
		if status := readStatus(t, conn); status.Status != protocol.StatusPong {
			t.Errorf("Expected pong, got %s", status.Status)
		}
	}
}

func TestClient_Utterance(t *testing.T) {
	_, pipeline, url := setupTestServer(t)
	conn := dial(t, url)

	// Audio before start never reaches the utterance.
	conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeFrame(0, 0, []int16{9, 9}))

	sendCommand(t, conn, "start_recording")
	if status := readStatus(t, conn); status.Status != protocol.StatusRecording {
		t.Fatalf("Expected recording, got %s", status.Status)
	}

	conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeFrame(1, 0, []int16{1, 2, 3}))
	conn.WriteMessage(websocket.BinaryMessage, protocol.SamplesToBytes([]int16{4, 5}))
	// Malformed frame is dropped.
	conn.WriteMessage(websocket.BinaryMessage, []byte("JAUD\x01"))
	sendCommand(t, conn, "stop_recording")

	if status := readStatus(t, conn); status.Status != protocol.StatusTranscribed || status.Text != "hello" {
		t.Errorf("Expected transcribed hello, got %+v", status)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, audio, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read audio: %v", err)
	}
	if messageType != websocket.BinaryMessage || len(audio) != 4 {
		t.Errorf("Expected 4 bytes of binary audio, got type %d len %d", messageType, len(audio))
	}

	status := readStatus(t, conn)
	if status.Status != protocol.StatusResponse || status.UserText != "hello" || status.AssistantText != "hi" {
		t.Errorf("Unexpected response %+v", status)
	}

	calls := pipeline.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 pipeline run, got %d", len(calls))
	}
	want := []int16{1, 2, 3, 4, 5}
	if len(calls[0]) != len(want) {
		t.Fatalf("Expected samples %v, got %v", want, calls[0])
	}
	for i := range want {
		if calls[0][i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], calls[0][i])
		}
	}
}

func TestClient_StopWithoutAudio(t *testing.T) {
	_, pipeline, url := setupTestServer(t)
	conn := dial(t, url)

	sendCommand(t, conn, "start_recording")
	readStatus(t, conn)
	sendCommand(t, conn, "stop_recording")

	status := readStatus(t, conn)
	if status.Status != protocol.StatusError || status.Message != protocol.MessageNoAudio {
		t.Errorf("Expected no audio error, got %+v", status)
	}
	if len(pipeline.calls()) != 0 {
		t.Error("Expected pipeline not to run")
	}
}

func TestClient_InvalidMessagesKeepConnection(t *testing.T) {
	_, _, url := setupTestServer(t)
	conn := dial(t, url)

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_start"}`))
	sendCommand(t, conn, "dance")
	sendCommand(t, conn, "clear_history")

	if status := readStatus(t, conn); status.Status != protocol.StatusHistoryCleared {
		t.Errorf("Expected history_cleared, got %s", status.Status)
	}
}

func TestHub_Devices(t *testing.T) {
	hub, _, url := setupTestServer(t)
	conn := dial(t, url)

	// A round trip guarantees registration happened.
	sendCommand(t, conn, "ping")
	readStatus(t, conn)

	devices := hub.Devices()
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(devices))
	}
	if devices[0].Transport != entities.TransportWebSocket || devices[0].ID == "" {
		t.Errorf("Unexpected device %+v", devices[0])
	}

	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for len(hub.Devices()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected device to be unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClient_RawPCMSplitSample(t *testing.T) {
	client := &Client{logger: zap.NewNop()}
	raw := protocol.SamplesToBytes([]int16{258, -2, 1000})

	var got []int16
	for _, part := range [][]byte{raw[:1], raw[1:3], raw[3:]} {
		in, ok := client.decode(websocket.BinaryMessage, part)
		if !ok {
			t.Fatalf("decode(% x) dropped the message", part)
		}
		got = append(got, in.Samples...)
	}

	want := []int16{258, -2, 1000}
	if len(got) != len(want) {
		t.Fatalf("Expected samples %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if len(client.pcmCarry) != 0 {
		t.Errorf("Expected no carried byte, got % x", client.pcmCarry)
	}
}
