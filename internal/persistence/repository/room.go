package repository

import (
	"context"
	"errors"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// roomRepository is the mongo-backed canvas-room store. Member mutations map
// to $addToSet / $pull, which keeps them idempotent on the server side.
type roomRepository struct {
	db *mongo.Database
}

func NewRoomRepository(database *mongo.Database) domain.RoomRepository {
	return &roomRepository{
		db: database,
	}
}

func (r *roomRepository) collection() *mongo.Collection {
	return r.db.Collection(db.CanvasRoomsCollection)
}

func (r *roomRepository) CreateIfAbsent(ctx context.Context, room *domain.CanvasRoom) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := r.collection().InsertOne(ctx, room)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrRoomAlreadyExists
	}
	return err
}

func (r *roomRepository) FindByID(ctx context.Context, id string) (*domain.CanvasRoom, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	var room domain.CanvasRoom
	err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) AddMember(ctx context.Context, roomID, connectionID string) (*domain.CanvasRoom, error) {
	return r.updateMembers(ctx, roomID, bson.M{
		"$addToSet": bson.M{"users": connectionID},
	})
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID, connectionID string) (*domain.CanvasRoom, error) {
	return r.updateMembers(ctx, roomID, bson.M{
		"$pull": bson.M{"users": connectionID},
	})
}

func (r *roomRepository) updateMembers(ctx context.Context, roomID string, update bson.M) (*domain.CanvasRoom, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room domain.CanvasRoom
	err := r.collection().FindOneAndUpdate(ctx, bson.M{"_id": roomID}, update, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteByID is idempotent: deleting a missing room succeeds.
func (r *roomRepository) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}

	_, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	return err
}
