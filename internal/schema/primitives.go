package schema

// RequestUsage reports the token cost of a single model call. It may be
// attached to any message via AttachUsage.
type RequestUsage struct {
	PromptTokens     int `json:"prompt_tokens" validate:"gte=0"`
	CompletionTokens int `json:"completion_tokens" validate:"gte=0"`
}

// ImageContent carries an image either by reference (URL) or inline as a
// base64 payload (Data). At least one of the two must be set. When both are
// present the inline payload wins; see Resolve.
type ImageContent struct {
	URL  string `json:"url,omitempty" validate:"required_without=Data"`
	Alt  string `json:"alt,omitempty"`
	Data string `json:"data,omitempty"`
}

// Resolve returns the effective image source, preferring inline data over
// the URL when both are set.
func (c ImageContent) Resolve() string {
	if c.Data != "" {
		return c.Data
	}
	return c.URL
}

// FunctionCall is a request by a model to invoke a named tool. Arguments
// must be valid JSON text.
type FunctionCall struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Arguments string `json:"arguments" validate:"json"`
}

// FunctionExecutionResult is the outcome of executing a prior FunctionCall.
// CallID must match the ID of a call issued earlier in the same run; that
// referential invariant is checked by CheckCallReferences, not here.
type FunctionExecutionResult struct {
	CallID  string `json:"call_id" validate:"required"`
	Content string `json:"content"`
}
