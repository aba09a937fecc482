package user

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"sockchat/internal/app/db"
)

// UsersCollection is the MongoDB collection holding user documents.
const UsersCollection = "users"

type userDocument struct {
	Username     string `bson:"username"`
	PasswordHash string `bson:"passwordHash"`
}

// MongoStore persists users as {username, passwordHash} documents.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore ensures the unique username index and returns the store.
func NewMongoStore(ctx context.Context, database *mongo.Database) (*MongoStore, error) {
	coll := database.Collection(UsersCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("user: create index: %w", err)
	}

	return &MongoStore{coll: coll}, nil
}

// FindByUsername implements Store.
func (s *MongoStore) FindByUsername(ctx context.Context, username string) (User, error) {
	var doc userDocument

	err := s.coll.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user: find: %w", err)
	}

	return User{Username: doc.Username, PasswordHash: doc.PasswordHash}, nil
}

// Create implements Store.
func (s *MongoStore) Create(ctx context.Context, u User) error {
	_, err := s.coll.InsertOne(ctx, userDocument{Username: u.Username, PasswordHash: u.PasswordHash})
	if db.IsDuplicateKey(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("user: insert: %w", err)
	}
	return nil
}
