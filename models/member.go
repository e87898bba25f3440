package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberRole distinguishes the room creator from everyone else. There is no
// promotion path; admin is assigned once at creation.
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// MemberStatus is the live presence of a member inside one room.
type MemberStatus string

const (
	StatusOnline  MemberStatus = "online"
	StatusOffline MemberStatus = "offline"
)

// ValidStatus reports whether s is one of the two accepted presence values.
func ValidStatus(s MemberStatus) bool {
	return s == StatusOnline || s == StatusOffline
}

// ChatRoomMember is one (room, user) row. JoinedAt stays nil for members who
// were added to a room but have not entered it yet; that is what marks a
// membership as not-yet-accepted.
type ChatRoomMember struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ChatRoom     primitive.ObjectID `bson:"chatRoom" json:"chatRoom"`
	User         primitive.ObjectID `bson:"user" json:"user"`
	Role         MemberRole         `bson:"role" json:"role"`
	Status       MemberStatus       `bson:"status" json:"status"`
	JoinedAt     *time.Time         `bson:"joinedAt,omitempty" json:"joinedAt,omitempty"`
	LastOnlineAt *time.Time         `bson:"lastOnlineAt,omitempty" json:"lastOnlineAt,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
