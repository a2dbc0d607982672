package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes(dbName string) error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoClient.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chats := db.Collection("chat_sessions")
	_, err := chats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_chat_id").
				SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "chatbot_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("by_chatbot_updated"),
		},
	})
	if err != nil {
		return err
	}

	voice := db.Collection("voice_buffer")
	_, err = voice.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "chunk_index", Value: 1}},
			Options: options.Index().
				SetName("uniq_chat_chunk").
				SetUnique(true),
		},
	})
	return err
}
