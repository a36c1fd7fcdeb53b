package domain

import "time"

// Bus channels the agent publishes on.
const (
	ChannelCandidates = "polyarb:candidates"
	ChannelPositions  = "polyarb:positions"
	ChannelOrders     = "polyarb:orders"
	ChannelStatus     = "polyarb:status"

	StreamCycles = "polyarb:cycles"
)

// EventType identifies an agent event.
type EventType string

const (
	EventCycleCompleted  EventType = "cycle_completed"
	EventCandidateFound  EventType = "candidate_found"
	EventPositionSized   EventType = "position_sized"
	EventOrderExecuted   EventType = "order_executed"
	EventPositionSettled EventType = "position_settled"
	EventScanningStarted EventType = "scanning_started"
	EventScanningStopped EventType = "scanning_stopped"
)

// Event is the JSON envelope published to the bus and forwarded to
// websocket clients.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CycleReport summarises one continuous-scan cycle.
type CycleReport struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Params     ScanParams           `json:"params"`
	Fetched    int                  `json:"fetched"`
	Candidates []MarketCandidate    `json:"candidates"`
	Verified   []VerificationResult `json:"verifications"`
	Positions  []PositionRecord     `json:"positions"`
	Errors     []string             `json:"errors,omitempty"`
}
