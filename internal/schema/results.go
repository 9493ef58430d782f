package schema

import (
	"encoding/json"
	"fmt"
)

// TaskResult is what a finished run produced: the full message transcript
// and, when known, why the team stopped.
type TaskResult struct {
	Messages   []AgentMessage `json:"messages"`
	StopReason string         `json:"stop_reason,omitempty"`
}

// UnmarshalJSON narrows each transcript entry through the message registry.
func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var aux struct {
		Messages   []json.RawMessage `json:"messages"`
		StopReason string            `json:"stop_reason"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode task result: %w", err)
	}

	msgs := make([]AgentMessage, 0, len(aux.Messages))
	for i, raw := range aux.Messages {
		msg, err := DecodeMessage(raw)
		if err != nil {
			return fmt.Errorf("task result message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	r.Messages = msgs
	r.StopReason = aux.StopReason
	return nil
}

// TeamResult wraps a TaskResult with the run's aggregate cost summary and
// wall-clock duration in seconds.
type TeamResult struct {
	TaskResult TaskResult `json:"task_result"`
	Usage      string     `json:"usage"`
	Duration   float64    `json:"duration"`
}

// TotalUsage sums the models_usage carried by a transcript's messages.
// Messages without usage count as zero.
func TotalUsage(msgs []AgentMessage) RequestUsage {
	var total RequestUsage
	for _, msg := range msgs {
		if u := Usage(msg); u != nil {
			total.PromptTokens += u.PromptTokens
			total.CompletionTokens += u.CompletionTokens
		}
	}
	return total
}

// Summary renders the usage in the serialized form stored on TeamResult.
func (u RequestUsage) Summary() string {
	return fmt.Sprintf("prompt_tokens=%d completion_tokens=%d", u.PromptTokens, u.CompletionTokens)
}
