package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind CommandKind
		wantName string
		wantErr  bool
	}{
		{name: "start", line: `{"action":"start_recording"}`, wantKind: CommandStartRecording, wantName: "start_recording"},
		{name: "stop", line: `{"action":"stop_recording"}`, wantKind: CommandStopRecording, wantName: "stop_recording"},
		{name: "ping with padding", line: "  {\"action\": \"ping\"}\r\n", wantKind: CommandPing, wantName: "ping"},
		{name: "clear history", line: `{"action":"clear_history"}`, wantKind: CommandClearHistory, wantName: "clear_history"},
		{name: "unknown action", line: `{"action":"dance"}`, wantKind: CommandUnknown, wantName: "dance"},
		{name: "extra fields", line: `{"action":"ping","device":"esp32"}`, wantKind: CommandPing, wantName: "ping"},
		{name: "missing action", line: `{"event":"ready"}`, wantErr: true},
		{name: "invalid json", line: `{"action":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", cmd.Kind, tt.wantKind)
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"event":"recording_stop","packets":42}`))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if evt.Kind != EventRecordingStop || evt.Packets != 42 {
		t.Errorf("ParseEvent() = %+v", evt)
	}
	if evt.LevelDB != -100 {
		t.Errorf("LevelDB default = %v, want -100", evt.LevelDB)
	}

	evt, err = ParseEvent([]byte(`{"event":"status","message":"wifi ok","level_db":-32.5}`))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if evt.Kind != EventStatus || evt.Message != "wifi ok" || evt.LevelDB != -32.5 {
		t.Errorf("ParseEvent() = %+v", evt)
	}

	evt, err = ParseEvent([]byte(`{"event":"reboot"}`))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if evt.Kind != EventUnknown || evt.Name != "reboot" {
		t.Errorf("unknown event parsed as %+v", evt)
	}

	if _, err := ParseEvent([]byte(`{"action":"ping"}`)); err == nil {
		t.Error("expected error for missing event field")
	}
}

func TestStatus_Encode(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   map[string]string
	}{
		{name: "pong", status: NewPongStatus(), want: map[string]string{"status": "pong"}},
		{name: "recording", status: NewRecordingStatus(), want: map[string]string{"status": "recording"}},
		{name: "transcribed", status: NewTranscribedStatus("hello"), want: map[string]string{"status": "transcribed", "text": "hello"}},
		{name: "error", status: NewErrorStatus(MessageNoAudio), want: map[string]string{"status": "error", "message": "No audio data"}},
		{
			name:   "response",
			status: NewResponseStatus("hi", "Hello, sir."),
			want:   map[string]string{"status": "response", "user_text": "hi", "assistant_text": "Hello, sir."},
		},
		{name: "history cleared", status: NewHistoryClearedStatus(), want: map[string]string{"status": "history_cleared"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.status.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			var got map[string]string
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Encode() produced invalid JSON: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("Encode() = %s, want keys %v", data, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}

	if _, err := (Status{}).Encode(); err == nil {
		t.Error("expected error encoding empty status")
	}
}
