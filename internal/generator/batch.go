package generator

import (
	"time"

	"github.com/google/uuid"
)

// SlotState is the lifecycle state of one requested image.
type SlotState string

const (
	StatePending SlotState = "pending"
	StateSuccess SlotState = "success"
	StateFailure SlotState = "failure"
)

// Slot is the outcome of one requested image. Data is set iff State is
// success, ErrorMessage iff State is failure.
type Slot struct {
	Index        int       `json:"index"`
	State        SlotState `json:"state"`
	Data         string    `json:"data,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Batch holds every slot of one generation request in request order.
type Batch struct {
	ID        uuid.UUID
	Strategy  Strategy
	Slots     []Slot
	StartedAt time.Time
	Duration  time.Duration
}

func newBatch(strategy Strategy, count int, now time.Time) Batch {
	slots := make([]Slot, count)
	for i := range slots {
		slots[i] = Slot{Index: i, State: StatePending}
	}
	return Batch{ID: uuid.New(), Strategy: strategy, Slots: slots, StartedAt: now}
}

// ImageURLs returns the data URLs of successful slots in slot order.
func (b Batch) ImageURLs() []string {
	urls := make([]string, 0, len(b.Slots))
	for _, s := range b.Slots {
		if s.State == StateSuccess {
			urls = append(urls, s.Data)
		}
	}
	return urls
}

// Succeeded counts successful slots.
func (b Batch) Succeeded() int {
	return b.count(StateSuccess)
}

// Failed counts failed slots.
func (b Batch) Failed() int {
	return b.count(StateFailure)
}

func (b Batch) count(state SlotState) int {
	n := 0
	for _, s := range b.Slots {
		if s.State == state {
			n++
		}
	}
	return n
}
