package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// FrameType discriminates what a realtime frame carries.
type FrameType string

const (
	FrameTypeMessage      FrameType = "message"
	FrameTypeResult       FrameType = "result"
	FrameTypeCompletion   FrameType = "completion"
	FrameTypeInputRequest FrameType = "input_request"
	FrameTypeError        FrameType = "error"
)

func frameTypeNames() []string {
	return []string{
		string(FrameTypeMessage), string(FrameTypeResult), string(FrameTypeCompletion),
		string(FrameTypeInputRequest), string(FrameTypeError),
	}
}

// Frame is one unit on the realtime channel. The payload shape is coupled to
// Type: message frames carry an AgentMessage, result and completion frames a
// TaskResult, input_request and error frames no data at all. Build frames
// through the constructors below; DecodeFrame enforces the coupling on
// receipt.
type Frame struct {
	Type      FrameType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Status    RunStatus       `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

func frameNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// MessageFrame wraps one agent message for the wire.
func MessageFrame(msg AgentMessage) (Frame, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal message frame: %w", err)
	}
	return Frame{Type: FrameTypeMessage, Data: data, Timestamp: frameNow()}, nil
}

// ResultFrame carries an intermediate task result snapshot.
func ResultFrame(result TaskResult, status RunStatus) (Frame, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal result frame: %w", err)
	}
	return Frame{Type: FrameTypeResult, Data: data, Status: status, Timestamp: frameNow()}, nil
}

// CompletionFrame carries the final task result of a run.
func CompletionFrame(result TaskResult, status RunStatus) (Frame, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal completion frame: %w", err)
	}
	return Frame{Type: FrameTypeCompletion, Data: data, Status: status, Timestamp: frameNow()}, nil
}

// InputRequestFrame asks the consumer to prompt for user input; the run
// resumes through the state machine once input arrives.
func InputRequestFrame() Frame {
	return Frame{Type: FrameTypeInputRequest, Status: RunStatusAwaitingInput, Timestamp: frameNow()}
}

// ErrorFrame reports a run failure.
func ErrorFrame(msg string, status RunStatus) Frame {
	return Frame{Type: FrameTypeError, Error: msg, Status: status, Timestamp: frameNow()}
}

// Message decodes the payload of a message frame.
func (f *Frame) Message() (AgentMessage, error) {
	if f.Type != FrameTypeMessage {
		return nil, fmt.Errorf("frame type %q carries no message", f.Type)
	}
	return DecodeMessage(f.Data)
}

// TaskResult decodes the payload of a result or completion frame.
func (f *Frame) TaskResult() (*TaskResult, error) {
	if f.Type != FrameTypeResult && f.Type != FrameTypeCompletion {
		return nil, fmt.Errorf("frame type %q carries no task result", f.Type)
	}
	var result TaskResult
	if err := json.Unmarshal(f.Data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DecodeFrame validates raw against the envelope contract: known type, the
// type/payload pairing, and a valid status when one is present.
func DecodeFrame(raw []byte) (*Frame, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &SchemaError{Union: "frame", Issues: []Issue{{Message: "invalid JSON: " + err.Error()}}}
	}
	typeRaw, ok := probe["type"]
	if !ok {
		return nil, &MissingDiscriminantError{Union: "frame", Field: "type"}
	}
	var typeVal string
	if err := json.Unmarshal(typeRaw, &typeVal); err != nil {
		return nil, &SchemaError{Union: "frame", Issues: []Issue{{Path: "type", Message: "must be a string"}}}
	}

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &SchemaError{Union: "frame", Issues: []Issue{{Message: err.Error()}}}
	}

	var issues []Issue
	switch f.Type {
	case FrameTypeMessage:
		if len(f.Data) == 0 {
			issues = append(issues, Issue{Path: "data", Message: "message frame requires a message payload"})
		} else if _, err := DecodeMessage(f.Data); err != nil {
			issues = append(issues, Issue{Path: "data", Message: err.Error()})
		}
	case FrameTypeResult, FrameTypeCompletion:
		if len(f.Data) == 0 {
			issues = append(issues, Issue{Path: "data", Message: string(f.Type) + " frame requires a task result payload"})
		} else {
			var result TaskResult
			if err := json.Unmarshal(f.Data, &result); err != nil {
				issues = append(issues, Issue{Path: "data", Message: err.Error()})
			}
		}
	case FrameTypeInputRequest:
		if len(f.Data) != 0 {
			issues = append(issues, Issue{Path: "data", Message: "input_request frame carries no payload"})
		}
	case FrameTypeError:
		if len(f.Data) != 0 {
			issues = append(issues, Issue{Path: "data", Message: "error frame carries no payload"})
		}
		if f.Error == "" {
			issues = append(issues, Issue{Path: "error", Message: "error frame requires an error string"})
		}
	default:
		return nil, &UnknownVariantError{Union: "frame", Field: "type", Value: typeVal, Accepted: frameTypeNames()}
	}

	if f.Status != "" && !f.Status.Valid() {
		issues = append(issues, Issue{Path: "status", Message: fmt.Sprintf("unknown run status %q", f.Status)})
	}

	if len(issues) > 0 {
		return nil, &SchemaError{Union: "frame", Issues: issues}
	}
	return &f, nil
}
