package chatws

import (
	"encoding/json"
	"sync"

	"github.com/samber/lo"
)

// Target is a live push destination registered in a room.
type Target interface {
	ID() string
	Send(payload []byte) error
	Close(code int, reason string)
}

type DeliveryFailure struct {
	TargetID string
	Err      error
}

// DeliveryReport describes one broadcast. Callers that only need
// fire-and-forget semantics can ignore it.
type DeliveryReport struct {
	Attempted int
	Delivered int
	Failures  []DeliveryFailure
}

// Registry maps conversation ids to the targets currently streaming them.
// It is process-local: a second server instance has its own rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]map[string]Target
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[int64]map[string]Target),
	}
}

func (r *Registry) Connect(conversationID int64, target Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[conversationID]
	if !ok {
		room = make(map[string]Target)
		r.rooms[conversationID] = room
	}
	room[target.ID()] = target
}

// Disconnect removes target from the room and reports whether this call
// removed it. Empty rooms are dropped.
func (r *Registry) Disconnect(conversationID int64, target Target) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[conversationID]
	if !ok {
		return false
	}
	current, ok := room[target.ID()]
	if !ok || current != target {
		return false
	}
	delete(room, target.ID())
	if len(room) == 0 {
		delete(r.rooms, conversationID)
	}
	return true
}

// Broadcast sends payload to every target in the room concurrently. A target
// whose send fails is removed from the room and closed so its client
// reconnects; failures never propagate.
func (r *Registry) Broadcast(conversationID int64, payload []byte) DeliveryReport {
	r.mu.RLock()
	targets := lo.Values(r.rooms[conversationID])
	r.mu.RUnlock()

	report := DeliveryReport{Attempted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			errs[i] = target.Send(payload)
		}(i, target)
	}
	wg.Wait()

	for i, target := range targets {
		if errs[i] == nil {
			report.Delivered++
			continue
		}
		report.Failures = append(report.Failures, DeliveryFailure{TargetID: target.ID(), Err: errs[i]})
		if r.Disconnect(conversationID, target) {
			target.Close(CloseInternalError, "delivery failed")
		}
	}
	return report
}

// BroadcastEvent encodes event once and broadcasts it. The error only reports
// encoding problems.
func (r *Registry) BroadcastEvent(conversationID int64, event any) (DeliveryReport, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return DeliveryReport{}, err
	}
	return r.Broadcast(conversationID, payload), nil
}

func (r *Registry) RoomSize(conversationID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}

func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Close empties every room and closes the remaining targets.
func (r *Registry) Close() {
	r.mu.Lock()
	targets := make([]Target, 0)
	for _, room := range r.rooms {
		targets = append(targets, lo.Values(room)...)
	}
	r.rooms = make(map[int64]map[string]Target)
	r.mu.Unlock()

	for _, target := range targets {
		target.Close(CloseGoingAway, "server shutting down")
	}
}
