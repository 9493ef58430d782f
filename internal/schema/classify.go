package schema

import "fmt"

// Family names the branch a message belongs to after classification.
type Family int

const (
	FamilyChat Family = iota + 1
	FamilyInner
)

func (f Family) String() string {
	switch f {
	case FamilyChat:
		return "chat"
	case FamilyInner:
		return "inner"
	}
	return "unknown"
}

// Classify narrows an AgentMessage to the chat or inner family. It is total
// over the message variants; a variant that implements neither marker
// interface is reported as an error so new variants cannot slip through
// unclassified.
func Classify(msg AgentMessage) (Family, error) {
	switch msg.(type) {
	case ChatMessage:
		return FamilyChat, nil
	case InnerMessage:
		return FamilyInner, nil
	}
	return 0, fmt.Errorf("unclassified message type %q", msg.MessageType())
}

// AsChat narrows msg to the user-visible chat family.
func AsChat(msg AgentMessage) (ChatMessage, bool) {
	c, ok := msg.(ChatMessage)
	return c, ok
}

// AsInner narrows msg to the internal tool-traffic family.
func AsInner(msg AgentMessage) (InnerMessage, bool) {
	i, ok := msg.(InnerMessage)
	return i, ok
}
