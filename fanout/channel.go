// Package fanout is the room-addressable publish/subscribe mechanism used
// to push state changes to connected participants. Delivery is at-most-once
// best-effort: publishing never blocks or fails the mutation that triggered
// it, and disconnected participants rebuild state from the store on their
// next read.
package fanout

import (
	"context"
	"encoding/json"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Channel publishes typed events to one room's subscribers or to a single
// user's private address. The user address exists for events that must reach
// users not (yet) subscribed to the room: room-created invites and
// admin-triggered deletion notices.
type Channel interface {
	PublishRoom(ctx context.Context, roomID primitive.ObjectID, event Event)
	PublishUser(ctx context.Context, userID primitive.ObjectID, event Event)
}

// Sink receives marshalled events for local delivery to websocket clients.
// The hub implements it.
type Sink interface {
	DeliverRoom(roomID string, data []byte)
	DeliverUser(userID string, data []byte)
}

// Bus is the in-process Channel for single-node deployments and tests: it
// hands events straight to the local sink.
type Bus struct {
	sink Sink
}

func NewBus(sink Sink) *Bus {
	return &Bus{sink: sink}
}

func (b *Bus) PublishRoom(_ context.Context, roomID primitive.ObjectID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("fanout: marshal %s event: %v", event.Name, err)
		return
	}
	b.sink.DeliverRoom(roomID.Hex(), data)
}

func (b *Bus) PublishUser(_ context.Context, userID primitive.ObjectID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("fanout: marshal %s event: %v", event.Name, err)
		return
	}
	b.sink.DeliverUser(userID.Hex(), data)
}
