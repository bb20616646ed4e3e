package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
)

const (
	TopicUsers    = "users"
	TopicArticles = "articles"

	EventUserRegistered   = "user_registered"
	EventArticlePublished = "article_published"
	EventCommentAdded     = "comment_added"
)

type UserRegistered struct {
	EventType string    `json:"event_type"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type ArticlePublished struct {
	EventType string    `json:"event_type"`
	ArticleID int64     `json:"article_id"`
	SubjectID int64     `json:"subject_id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentAdded struct {
	EventType string    `json:"event_type"`
	ArticleID int64     `json:"article_id"`
	CommentID int64     `json:"comment_id"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// envelope is decoded first to route a message by its event type.
type envelope struct {
	EventType string `json:"event_type"`
}

// EventPublisher sends domain events without ever failing the caller.
// A nil producer turns every Publish into a no-op.
type EventPublisher struct {
	producer KafkaProducer
}

func NewEventPublisher(producer KafkaProducer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (p *EventPublisher) Publish(ctx context.Context, topic, eventType string, key int64, event any) {
	if p == nil || p.producer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		observability.EventsPublished.WithLabelValues(topic, eventType, "error").Inc()
		slog.Error("failed to marshal event", "topic", topic, "event_type", eventType, "error", err)
		return
	}

	if err := p.producer.Send(ctx, topic, key, payload); err != nil {
		observability.EventsPublished.WithLabelValues(topic, eventType, "error").Inc()
		slog.Warn("event dropped", "topic", topic, "event_type", eventType, "key", key, "error", err)
		return
	}
	observability.EventsPublished.WithLabelValues(topic, eventType, "ok").Inc()
}
