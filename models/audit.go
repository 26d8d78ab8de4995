package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docs-answer-bot/internal/logger"
)

// AnswerLog is an append-only record of one answered question
type AnswerLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID    string             `bson:"request_id" json:"request_id"`
	Source       string             `bson:"source" json:"source"` // slack, ask, ask_stream
	Channel      string             `bson:"channel,omitempty" json:"channel,omitempty"`
	User         string             `bson:"user,omitempty" json:"user,omitempty"`
	Question     string             `bson:"question" json:"question"`
	RefinedQuery string             `bson:"refined_query,omitempty" json:"refined_query,omitempty"`
	Documents    int                `bson:"documents" json:"documents"`
	Chunks       int                `bson:"chunks" json:"chunks"`
	ErrorKind    string             `bson:"error_kind,omitempty" json:"error_kind,omitempty"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Delivered    bool               `bson:"delivered" json:"delivered"`
	DurationMS   int64              `bson:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// AnswerLogger writes answer records to MongoDB. A nil *AnswerLogger
// discards everything, which is how the service runs without MONGO_URI.
type AnswerLogger struct {
	col *mongo.Collection
}

func NewAnswerLogger(col *mongo.Collection) *AnswerLogger {
	return &AnswerLogger{col: col}
}

// Log stores entry
func (al *AnswerLogger) Log(ctx context.Context, entry *AnswerLog) error {
	if al == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	res, err := al.col.InsertOne(ctx, entry)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return nil
}

// LogAsync logs an answer record asynchronously
func (al *AnswerLogger) LogAsync(entry *AnswerLog) {
	if al == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := al.Log(ctx, entry); err != nil {
			logger.Error("Failed to write answer log", "request_id", entry.RequestID, "error", err)
		}
	}()
}

// Recent returns the newest records, optionally only failed ones
func (al *AnswerLogger) Recent(ctx context.Context, limit int64, failedOnly bool) ([]AnswerLog, error) {
	if al == nil {
		return nil, nil
	}

	filter := bson.M{}
	if failedOnly {
		filter["error_kind"] = bson.M{"$exists": true, "$ne": ""}
	}

	cursor, err := al.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []AnswerLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// Purge deletes records created before cutoff and returns how many went.
func (al *AnswerLogger) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if al == nil {
		return 0, nil
	}
	res, err := al.col.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
