package mesa

// EventType classifies a mesa state change.
type EventType string

const (
	EventOccupied    EventType = "occupied"
	EventFreed       EventType = "freed"
	EventTransferred EventType = "transferred"
	EventUpdated     EventType = "updated"
)

// Actor identifies the user behind an event.
type Actor struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}

// Event records a mesa change so other terminals can react to it.
// Timestamp is in Unix milliseconds.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Mesa      Mesa      `json:"mesa"`
	User      Actor     `json:"user"`
	Timestamp int64     `json:"timestamp"`
}
