package schema

import (
	"fmt"
	"strings"
)

// Issue pinpoints one invalid or missing field by its JSON path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// SchemaError reports that a recognized variant failed shape validation. It
// accumulates every issue found, not just the first, with full nested paths.
type SchemaError struct {
	Union  string  `json:"union"`
	Issues []Issue `json:"issues"`
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		parts[i] = iss.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Union, strings.Join(parts, "; "))
}

// UnknownVariantError reports a discriminant value outside the closed set.
type UnknownVariantError struct {
	Union    string   `json:"union"`
	Field    string   `json:"field"`
	Value    string   `json:"value"`
	Accepted []string `json:"accepted"`
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown %s %s %q, accepted values: %s",
		e.Union, e.Field, e.Value, strings.Join(e.Accepted, ", "))
}

// MissingDiscriminantError reports input with no discriminant field at all.
type MissingDiscriminantError struct {
	Union string `json:"union"`
	Field string `json:"field"`
}

func (e *MissingDiscriminantError) Error() string {
	return fmt.Sprintf("missing %s discriminant field %q", e.Union, e.Field)
}

// DepthExceededError reports termination conditions nested beyond the
// configured cap, which guards against pathological or cyclic input.
type DepthExceededError struct {
	Path     string `json:"path"`
	MaxDepth int    `json:"max_depth"`
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("termination conditions at %s exceed maximum nesting depth %d", e.Path, e.MaxDepth)
}

// InvalidTransitionError reports a run state machine event that is not legal
// in the current state.
type InvalidTransitionError struct {
	Current RunStatus `json:"current"`
	Event   RunEvent  `json:"event"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q in state %q", e.Event.Name, e.Current)
}

// ReferentialError reports a tool-call result whose call_id matches no prior
// tool call in the same run.
type ReferentialError struct {
	Path   string `json:"path"`
	CallID string `json:"call_id"`
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s: call_id %q does not match any prior function call", e.Path, e.CallID)
}
