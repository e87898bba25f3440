// Package memstore is a mutex-guarded, map-backed implementation of the
// store contract. It backs the service unit tests and the STORE=memory dev
// mode; mongostore is the durable implementation.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/models"
)

type Store struct {
	mu       sync.RWMutex
	users    map[primitive.ObjectID]models.User
	rooms    map[primitive.ObjectID]models.ChatRoom
	members  map[primitive.ObjectID]models.ChatRoomMember
	messages map[primitive.ObjectID]models.Message
}

func New() *Store {
	return &Store{
		users:    make(map[primitive.ObjectID]models.User),
		rooms:    make(map[primitive.ObjectID]models.ChatRoom),
		members:  make(map[primitive.ObjectID]models.ChatRoomMember),
		messages: make(map[primitive.ObjectID]models.Message),
	}
}

// ---- users ----

func (s *Store) InsertUser(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return user.ID, nil
}

func (s *Store) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		out := u
		return &out, nil
	}
	return nil, nil
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// ---- rooms ----

func (s *Store) InsertRoom(_ context.Context, room *models.ChatRoom) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.ID.IsZero() {
		room.ID = primitive.NewObjectID()
	}
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now
	s.rooms[room.ID] = cloneRoom(*room)
	return room.ID, nil
}

func (s *Store) GetRoomByID(_ context.Context, id primitive.ObjectID) (*models.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[id]; ok {
		out := cloneRoom(r)
		return &out, nil
	}
	return nil, nil
}

func (s *Store) GetRoomsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatRoom, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.rooms[id]; ok {
			out = append(out, cloneRoom(r))
		}
	}
	return out, nil
}

func (s *Store) FindDirectRoom(_ context.Context, a, b primitive.ObjectID) (*models.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if !r.IsGroup && sameMemberSet(r.Members, []primitive.ObjectID{a, b}) {
			out := cloneRoom(r)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) FindGroupRoom(_ context.Context, name string, members []primitive.ObjectID) (*models.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.IsGroup && r.Name == name && sameMemberSet(r.Members, members) {
			out := cloneRoom(r)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) AddRoomMember(_ context.Context, roomID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	for _, m := range r.Members {
		if m == userID {
			return nil
		}
	}
	r.Members = append(r.Members, userID)
	r.UpdatedAt = time.Now()
	s.rooms[roomID] = r
	return nil
}

func (s *Store) RemoveRoomMember(_ context.Context, roomID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	kept := r.Members[:0]
	for _, m := range r.Members {
		if m != userID {
			kept = append(kept, m)
		}
	}
	r.Members = kept
	r.UpdatedAt = time.Now()
	s.rooms[roomID] = r
	return nil
}

func (s *Store) SetLastMessage(_ context.Context, roomID primitive.ObjectID, messageID *primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	if messageID == nil {
		r.LastMessage = nil
	} else {
		id := *messageID
		r.LastMessage = &id
	}
	r.UpdatedAt = at
	s.rooms[roomID] = r
	return nil
}

func (s *Store) DeleteRoom(_ context.Context, roomID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// ---- members ----

func (s *Store) InsertMembers(_ context.Context, members []models.ChatRoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range members {
		if members[i].ID.IsZero() {
			members[i].ID = primitive.NewObjectID()
		}
		members[i].CreatedAt = now
		members[i].UpdatedAt = now
		s.members[members[i].ID] = members[i]
	}
	return nil
}

func (s *Store) GetMember(_ context.Context, roomID, userID primitive.ObjectID) (*models.ChatRoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ChatRoom == roomID && m.User == userID {
			out := m
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateMember(_ context.Context, member *models.ChatRoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	member.UpdatedAt = time.Now()
	s.members[member.ID] = *member
	return nil
}

func (s *Store) ListRoomMembers(_ context.Context, roomID primitive.ObjectID) ([]models.ChatRoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatRoomMember
	for _, m := range s.members {
		if m.ChatRoom == roomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.Hex() < out[j].User.Hex() })
	return out, nil
}

func (s *Store) ListUserRoomIDs(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []primitive.ObjectID
	for _, m := range s.members {
		if m.User == userID {
			out = append(out, m.ChatRoom)
		}
	}
	return out, nil
}

func (s *Store) DeleteMember(_ context.Context, roomID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.members {
		if m.ChatRoom == roomID && m.User == userID {
			delete(s.members, id)
		}
	}
	return nil
}

func (s *Store) DeleteRoomMembers(_ context.Context, roomID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.members {
		if m.ChatRoom == roomID {
			delete(s.members, id)
		}
	}
	return nil
}

// ---- messages ----

func (s *Store) InsertMessage(_ context.Context, msg *models.Message) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	s.messages[msg.ID] = cloneMessage(*msg)
	return msg.ID, nil
}

func (s *Store) GetMessageByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.messages[id]; ok {
		out := cloneMessage(m)
		return &out, nil
	}
	return nil, nil
}

func (s *Store) ListRoomMessages(_ context.Context, roomID primitive.ObjectID, page, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.roomMessagesAsc(roomID)
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	skip := (page - 1) * limit
	if skip >= len(all) {
		return []models.Message{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

func (s *Store) LatestRoomMessage(_ context.Context, roomID primitive.ObjectID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.roomMessagesAsc(roomID)
	if len(all) == 0 {
		return nil, nil
	}
	out := all[len(all)-1]
	return &out, nil
}

func (s *Store) MarkAllRead(_ context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.ChatRoom != roomID || m.IsReadBy(userID) {
			continue
		}
		m.ReadBy = append(append([]primitive.ObjectID{}, m.ReadBy...), userID)
		m.UpdatedAt = time.Now()
		s.messages[id] = m
		n++
	}
	return n, nil
}

func (s *Store) UpdateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.UpdatedAt = time.Now()
	s.messages[msg.ID] = cloneMessage(*msg)
	return nil
}

func (s *Store) DeleteMessage(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

func (s *Store) CountUnread(_ context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, m := range s.messages {
		if m.ChatRoom != roomID || m.Type == models.MessageSystem {
			continue
		}
		if !m.IsReadBy(userID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteRoomMessages(_ context.Context, roomID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if m.ChatRoom == roomID {
			delete(s.messages, id)
		}
	}
	return nil
}

// roomMessagesAsc returns copies sorted by createdAt, insertion id as the
// tiebreak so equal timestamps still order deterministically.
func (s *Store) roomMessagesAsc(roomID primitive.ObjectID) []models.Message {
	var out []models.Message
	for _, m := range s.messages {
		if m.ChatRoom == roomID {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneRoom(r models.ChatRoom) models.ChatRoom {
	r.Members = append([]primitive.ObjectID{}, r.Members...)
	if r.LastMessage != nil {
		id := *r.LastMessage
		r.LastMessage = &id
	}
	return r
}

func cloneMessage(m models.Message) models.Message {
	m.Attachments = append([]string{}, m.Attachments...)
	m.ReadBy = append([]primitive.ObjectID{}, m.ReadBy...)
	m.DelBy = append([]models.DeleteMarker{}, m.DelBy...)
	return m
}

func sameMemberSet(a, b []primitive.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[primitive.ObjectID]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}
