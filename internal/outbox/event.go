package outbox

// Event is the domain event envelope written to the outbox table in the same
// transaction as the state change it describes. The Kafka topic equals
// EventType, one event type per topic.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
