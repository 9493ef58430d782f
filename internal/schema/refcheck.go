package schema

import "fmt"

// CheckCallReferences verifies that every tool-call result in msgs refers to
// a function call issued earlier in the same sequence. The sequence is
// expected in run order.
func CheckCallReferences(msgs []AgentMessage) error {
	issued := make(map[string]struct{})
	for i, m := range msgs {
		switch v := m.(type) {
		case *ToolCallMessage:
			for _, call := range v.Content {
				issued[call.ID] = struct{}{}
			}
		case *ToolCallResultMessage:
			for j, result := range v.Content {
				if _, ok := issued[result.CallID]; !ok {
					return &ReferentialError{
						Path:   fmt.Sprintf("messages[%d].content[%d].call_id", i, j),
						CallID: result.CallID,
					}
				}
			}
		}
	}
	return nil
}
