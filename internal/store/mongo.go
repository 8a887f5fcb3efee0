// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package store provides the MongoDB-backed document store for chat
// history. The store owns message documents; the broker only holds a
// transient copy while broadcasting.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/models"
)

const messagesCollection = "messages"

// connectTimeout bounds one dial attempt; the connector's retry loop owns
// the overall schedule.
const connectTimeout = 5 * time.Second

// Store is a MongoDB-backed document store.
type Store struct {
	cfg      config.MongoConfig
	client   *mongo.Client
	messages *mongo.Collection
}

// New creates an unconnected Store. Connect must succeed before any other
// method is called; the dependency connector enforces that ordering.
func New(cfg config.MongoConfig) *Store {
	return &Store{cfg: cfg}
}

// Connect dials the document store and verifies reachability with a ping.
// It satisfies connector.DialFunc.
func (s *Store) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.cfg.URI))
	if err != nil {
		return fmt.Errorf("connect document store: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("ping document store: %w", err)
	}

	s.client = client
	s.messages = client.Database(s.cfg.Database).Collection(messagesCollection)
	return nil
}

// Disconnect closes the underlying client.
func (s *Store) Disconnect(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Ping verifies the store is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("document store not connected")
	}
	return s.client.Ping(ctx, readpref.Primary())
}

// FindRecent returns up to limit messages for a room, newest first.
// Callers that need oldest-first ordering reverse the slice.
func (s *Store) FindRecent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.messages.Find(ctx, bson.M{"room": room}, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent messages for room %s: %w", room, err)
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages for room %s: %w", room, err)
	}
	return msgs, nil
}

// Insert persists a message, assigning its id and server timestamp.
// The returned copy is the persisted form that gets broadcast.
func (s *Store) Insert(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.ID = primitive.NewObjectID().Hex()
	msg.Timestamp = time.Now().UTC()

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}
