package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFrameConstructorsDecode(t *testing.T) {
	msgFrame, err := MessageFrame(NewTextMessage("assistant", "hello"))
	if err != nil {
		t.Fatalf("message frame: %v", err)
	}
	result := TaskResult{
		Messages:   []AgentMessage{NewTextMessage("assistant", "done"), NewStopMessage("assistant", "TERMINATE")},
		StopReason: "stop message received",
	}
	resFrame, err := ResultFrame(result, RunStatusActive)
	if err != nil {
		t.Fatalf("result frame: %v", err)
	}
	compFrame, err := CompletionFrame(result, RunStatusComplete)
	if err != nil {
		t.Fatalf("completion frame: %v", err)
	}

	frames := []Frame{msgFrame, resFrame, compFrame, InputRequestFrame(), ErrorFrame("model quota exceeded", RunStatusError)}
	for _, f := range frames {
		data, err := json.Marshal(f)
		if err != nil {
			t.Fatalf("%s: marshal: %v", f.Type, err)
		}
		got, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("%s: decode: %v", f.Type, err)
		}
		if got.Type != f.Type {
			t.Errorf("expected type %s, got %s", f.Type, got.Type)
		}
	}

	msg, err := msgFrame.Message()
	if err != nil {
		t.Fatalf("frame message: %v", err)
	}
	if msg.MessageType() != MessageTypeText {
		t.Errorf("expected text message, got %s", msg.MessageType())
	}

	res, err := compFrame.TaskResult()
	if err != nil {
		t.Fatalf("frame task result: %v", err)
	}
	if len(res.Messages) != 2 || res.StopReason != "stop message received" {
		t.Errorf("unexpected task result: %+v", res)
	}
}

func TestDecodeFramePairing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"message without data", `{"type":"message"}`},
		{"message with bad payload", `{"type":"message","data":{"type":"TextMessage"}}`},
		{"result without data", `{"type":"result","status":"active"}`},
		{"input_request with data", `{"type":"input_request","data":{"type":"TextMessage","source":"a","content":"x"}}`},
		{"error without error string", `{"type":"error"}`},
		{"error with data", `{"type":"error","error":"boom","data":{}}`},
		{"bad status", `{"type":"input_request","status":"paused"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(tt.raw))
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("expected SchemaError, got %T: %v", err, err)
			}
		})
	}
}

func TestDecodeFrameUnknownType(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"heartbeat"}`))
	var uv *UnknownVariantError
	if !errors.As(err, &uv) {
		t.Fatalf("expected UnknownVariantError, got %T: %v", err, err)
	}
	if uv.Value != "heartbeat" || len(uv.Accepted) != 5 {
		t.Errorf("unexpected error contents: %+v", uv)
	}
}

func TestDecodeFrameMissingType(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"data":{}}`))
	var md *MissingDiscriminantError
	if !errors.As(err, &md) {
		t.Fatalf("expected MissingDiscriminantError, got %T: %v", err, err)
	}
}
