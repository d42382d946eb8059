package events

// Sink adapts the bus to the orchestrator's progress contract, stamping
// every event with the question being processed.
type Sink struct {
	bus        *Bus
	questionID string
}

// NewSink creates a sink publishing to bus on behalf of questionID.
func NewSink(bus *Bus, questionID string) *Sink {
	return &Sink{bus: bus, questionID: questionID}
}

// Progress publishes an agent_progress event.
func (s *Sink) Progress(agent, message string, fraction float64) {
	s.bus.Publish(NewAgentProgressEvent(s.questionID, agent, message, fraction))
}

// Reasoning publishes a reasoning event.
func (s *Sink) Reasoning(text string) {
	s.bus.Publish(NewReasoningEvent(s.questionID, text))
}
