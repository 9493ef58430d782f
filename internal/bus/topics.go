package bus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// TopicRunEvents carries frames emitted by the execution engine for a run.
func TopicRunEvents(runID string) string {
	return fmt.Sprintf("run.%s.events", runID)
}

// TopicRunInput carries user input delivered to a paused run.
func TopicRunInput(runID string) string {
	return fmt.Sprintf("run.%s.input", runID)
}

// TopicRunControl carries start/stop commands for a run.
func TopicRunControl(runID string) string {
	return fmt.Sprintf("run.%s.control", runID)
}

const TopicRunsAll = "run.>"
