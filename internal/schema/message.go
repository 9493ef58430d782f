package schema

import "encoding/json"

// MessageType is the discriminant that selects a concrete message variant.
type MessageType string

const (
	MessageTypeText           MessageType = "TextMessage"
	MessageTypeMultiModal     MessageType = "MultiModalMessage"
	MessageTypeStop           MessageType = "StopMessage"
	MessageTypeHandoff        MessageType = "HandoffMessage"
	MessageTypeToolCall       MessageType = "ToolCallMessage"
	MessageTypeToolCallResult MessageType = "ToolCallResultMessage"
)

// AgentMessage is anything an agent may emit. The concrete type is selected
// by the "type" field on the wire; DecodeMessage performs the narrowing.
type AgentMessage interface {
	MessageType() MessageType
	agentMessage()
}

// ChatMessage is the user-visible subset of AgentMessage: text, multimodal,
// stop, and handoff messages.
type ChatMessage interface {
	AgentMessage
	chatMessage()
}

// InnerMessage is internal agent-to-agent traffic: tool calls and their
// results.
type InnerMessage interface {
	AgentMessage
	innerMessage()
}

// MultiModalItem is one entry of mixed text-and-image content. Exactly one
// of Text or Image is set.
type MultiModalItem struct {
	Text  string        `json:"text,omitempty" validate:"required_without=Image,excluded_with=Image"`
	Image *ImageContent `json:"image,omitempty"`
}

type TextMessage struct {
	Type        MessageType   `json:"type"`
	Source      string        `json:"source" validate:"required"`
	ModelsUsage *RequestUsage `json:"models_usage,omitempty"`
	Content     string        `json:"content" validate:"required"`
}

type MultiModalMessage struct {
	Type        MessageType    `json:"type"`
	Source      string         `json:"source" validate:"required"`
	ModelsUsage *RequestUsage  `json:"models_usage,omitempty"`
	Content     []MultiModalItem `json:"content" validate:"min=1,dive"`
}

type StopMessage struct {
	Type        MessageType   `json:"type"`
	Source      string        `json:"source" validate:"required"`
	ModelsUsage *RequestUsage `json:"models_usage,omitempty"`
	Content     string        `json:"content" validate:"required"`
}

// HandoffMessage transfers control to the agent named by Target.
type HandoffMessage struct {
	Type        MessageType   `json:"type"`
	Source      string        `json:"source" validate:"required"`
	ModelsUsage *RequestUsage `json:"models_usage,omitempty"`
	Content     string        `json:"content"`
	Target      string        `json:"target" validate:"required"`
}

type ToolCallMessage struct {
	Type        MessageType    `json:"type"`
	Source      string         `json:"source" validate:"required"`
	ModelsUsage *RequestUsage  `json:"models_usage,omitempty"`
	Content     []FunctionCall `json:"content" validate:"min=1,dive"`
}

type ToolCallResultMessage struct {
	Type        MessageType               `json:"type"`
	Source      string                    `json:"source" validate:"required"`
	ModelsUsage *RequestUsage             `json:"models_usage,omitempty"`
	Content     []FunctionExecutionResult `json:"content" validate:"min=1,dive"`
}

func NewTextMessage(source, content string) *TextMessage {
	return &TextMessage{Type: MessageTypeText, Source: source, Content: content}
}

func NewMultiModalMessage(source string, content []MultiModalItem) *MultiModalMessage {
	return &MultiModalMessage{Type: MessageTypeMultiModal, Source: source, Content: content}
}

func NewStopMessage(source, content string) *StopMessage {
	return &StopMessage{Type: MessageTypeStop, Source: source, Content: content}
}

func NewHandoffMessage(source, content, target string) *HandoffMessage {
	return &HandoffMessage{Type: MessageTypeHandoff, Source: source, Content: content, Target: target}
}

func NewToolCallMessage(source string, calls []FunctionCall) *ToolCallMessage {
	return &ToolCallMessage{Type: MessageTypeToolCall, Source: source, Content: calls}
}

func NewToolCallResultMessage(source string, results []FunctionExecutionResult) *ToolCallResultMessage {
	return &ToolCallResultMessage{Type: MessageTypeToolCallResult, Source: source, Content: results}
}

func (*TextMessage) MessageType() MessageType           { return MessageTypeText }
func (*MultiModalMessage) MessageType() MessageType     { return MessageTypeMultiModal }
func (*StopMessage) MessageType() MessageType           { return MessageTypeStop }
func (*HandoffMessage) MessageType() MessageType        { return MessageTypeHandoff }
func (*ToolCallMessage) MessageType() MessageType       { return MessageTypeToolCall }
func (*ToolCallResultMessage) MessageType() MessageType { return MessageTypeToolCallResult }

func (*TextMessage) agentMessage()           {}
func (*MultiModalMessage) agentMessage()     {}
func (*StopMessage) agentMessage()           {}
func (*HandoffMessage) agentMessage()        {}
func (*ToolCallMessage) agentMessage()       {}
func (*ToolCallResultMessage) agentMessage() {}

func (*TextMessage) chatMessage()       {}
func (*MultiModalMessage) chatMessage() {}
func (*StopMessage) chatMessage()       {}
func (*HandoffMessage) chatMessage()    {}

func (*ToolCallMessage) innerMessage()       {}
func (*ToolCallResultMessage) innerMessage() {}

// MarshalJSON implementations pin the discriminant so hand-built values
// round-trip even when Type was left unset.

func (m *TextMessage) MarshalJSON() ([]byte, error) {
	type alias TextMessage
	a := alias(*m)
	a.Type = MessageTypeText
	return json.Marshal(a)
}

func (m *MultiModalMessage) MarshalJSON() ([]byte, error) {
	type alias MultiModalMessage
	a := alias(*m)
	a.Type = MessageTypeMultiModal
	return json.Marshal(a)
}

func (m *StopMessage) MarshalJSON() ([]byte, error) {
	type alias StopMessage
	a := alias(*m)
	a.Type = MessageTypeStop
	return json.Marshal(a)
}

func (m *HandoffMessage) MarshalJSON() ([]byte, error) {
	type alias HandoffMessage
	a := alias(*m)
	a.Type = MessageTypeHandoff
	return json.Marshal(a)
}

func (m *ToolCallMessage) MarshalJSON() ([]byte, error) {
	type alias ToolCallMessage
	a := alias(*m)
	a.Type = MessageTypeToolCall
	return json.Marshal(a)
}

func (m *ToolCallResultMessage) MarshalJSON() ([]byte, error) {
	type alias ToolCallResultMessage
	a := alias(*m)
	a.Type = MessageTypeToolCallResult
	return json.Marshal(a)
}

// AttachUsage returns a copy of msg with the usage report set. The input is
// never mutated. The type switch is exhaustive over all message variants; an
// unlisted variant is a programming error surfaced as nil.
func AttachUsage(msg AgentMessage, usage RequestUsage) AgentMessage {
	switch v := msg.(type) {
	case *TextMessage:
		c := *v
		c.ModelsUsage = &usage
		return &c
	case *MultiModalMessage:
		c := *v
		c.ModelsUsage = &usage
		return &c
	case *StopMessage:
		c := *v
		c.ModelsUsage = &usage
		return &c
	case *HandoffMessage:
		c := *v
		c.ModelsUsage = &usage
		return &c
	case *ToolCallMessage:
		c := *v
		c.ModelsUsage = &usage
		return &c
	case *ToolCallResultMessage:
		c := *v
		c.ModelsUsage = &usage
		return &c
	}
	return nil
}

// Usage returns the usage report attached to msg, or nil.
func Usage(msg AgentMessage) *RequestUsage {
	switch v := msg.(type) {
	case *TextMessage:
		return v.ModelsUsage
	case *MultiModalMessage:
		return v.ModelsUsage
	case *StopMessage:
		return v.ModelsUsage
	case *HandoffMessage:
		return v.ModelsUsage
	case *ToolCallMessage:
		return v.ModelsUsage
	case *ToolCallResultMessage:
		return v.ModelsUsage
	}
	return nil
}
