package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go-rooms/backend/models"
)

func (s *Store) InsertMembers(ctx context.Context, members []models.ChatRoomMember) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := opCtx(ctx)
	defer cancel()

	now := time.Now()
	docs := make([]interface{}, 0, len(members))
	for i := range members {
		members[i].CreatedAt = now
		members[i].UpdatedAt = now
		docs = append(docs, members[i])
	}
	_, err := s.members().InsertMany(ctx, docs)
	return err
}

func (s *Store) GetMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.ChatRoomMember, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var member models.ChatRoomMember
	err := s.members().FindOne(ctx, bson.M{"chatRoom": roomID, "user": userID}).Decode(&member)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *Store) UpdateMember(ctx context.Context, member *models.ChatRoomMember) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	member.UpdatedAt = time.Now()
	_, err := s.members().ReplaceOne(ctx, bson.M{"_id": member.ID}, member)
	return err
}

func (s *Store) ListRoomMembers(ctx context.Context, roomID primitive.ObjectID) ([]models.ChatRoomMember, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	cursor, err := s.members().Find(ctx, bson.M{"chatRoom": roomID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []models.ChatRoomMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) ListUserRoomIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	cursor, err := s.members().Find(ctx, bson.M{"user": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []models.ChatRoomMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ChatRoom)
	}
	return ids, nil
}

func (s *Store) DeleteMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.members().DeleteOne(ctx, bson.M{"chatRoom": roomID, "user": userID})
	return err
}

func (s *Store) DeleteRoomMembers(ctx context.Context, roomID primitive.ObjectID) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.members().DeleteMany(ctx, bson.M{"chatRoom": roomID})
	return err
}
