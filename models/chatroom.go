package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatRoom is a direct (2-party) or group (3+) conversation container.
// Members mirrors the set of ChatRoomMember rows for the room; the Registry
// is the only writer of both. LastMessage is a denormalized pointer whose
// value is decided by the Ledger through Registry.SetLastMessage.
type ChatRoom struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string               `bson:"name" json:"name"`
	IsGroup     bool                 `bson:"isGroup" json:"isGroup"`
	Avatar      string               `bson:"avatar" json:"avatar"`
	Members     []primitive.ObjectID `bson:"members" json:"members"`
	LastMessage *primitive.ObjectID  `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// HasMember reports whether id is in the room's member set.
func (r *ChatRoom) HasMember(id primitive.ObjectID) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}
