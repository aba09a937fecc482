package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SessionsCollection is the MongoDB collection holding session documents.
const SessionsCollection = "sessions"

type sessionDocument struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	CreatedAt time.Time `bson:"createdAt"`
	Expires   time.Time `bson:"expires"`
}

// MongoStore keeps sessions as documents; a TTL index on expires lets the server reap them.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore ensures the TTL index and returns the store.
func NewMongoStore(ctx context.Context, database *mongo.Database) (*MongoStore, error) {
	coll := database.Collection(SessionsCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_ttl"),
	})
	if err != nil {
		return nil, fmt.Errorf("session: create ttl index: %w", err)
	}

	return &MongoStore{coll: coll, now: time.Now}, nil
}

func (s *MongoStore) live(id string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "expires", Value: bson.D{{Key: "$gt", Value: s.now()}}},
	}
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, id string) (Record, error) {
	var doc sessionDocument

	err := s.coll.FindOne(ctx, s.live(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: find: %w", err)
	}

	return Record{ID: doc.ID, Username: doc.Username, CreatedAt: doc.CreatedAt, ExpiresAt: doc.Expires}, nil
}

// Set implements Store.
func (s *MongoStore) Set(ctx context.Context, rec Record) error {
	doc := sessionDocument{ID: rec.ID, Username: rec.Username, CreatedAt: rec.CreatedAt, Expires: rec.ExpiresAt}

	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("session: replace: %w", err)
	}
	return nil
}

// Touch implements Store.
func (s *MongoStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := s.coll.UpdateOne(ctx, s.live(id), bson.D{{Key: "$set", Value: bson.D{{Key: "expires", Value: expiresAt}}}})
	if err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Destroy implements Store.
func (s *MongoStore) Destroy(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
