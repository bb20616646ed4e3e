package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
	"github.com/segmentio/kafka-go"
)

const fetchRetryDelay = time.Second

// MessageReader is the part of *kafka.Reader the consumer depends on.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type SubscriberLister interface {
	ListSubscriberIDs(ctx context.Context, subjectID int64) ([]int64, error)
}

// Consumer fans published articles out to the subscribers of their subject.
type Consumer struct {
	reader        MessageReader
	subscriptions SubscriberLister
}

func NewConsumer(brokers []string, groupID string, subscriptions SubscriberLister) *Consumer {
	return NewConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    TopicArticles,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	}), subscriptions)
}

func NewConsumerWithReader(reader MessageReader, subscriptions SubscriberLister) *Consumer {
	return &Consumer{reader: reader, subscriptions: subscriptions}
}

// Consume blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Consume(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			slog.Error("failed to fetch Kafka message", "topic", TopicArticles, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// Not retried; a broken message must not stall the partition.
			slog.Error("failed to handle Kafka message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("failed to commit Kafka message", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	switch env.EventType {
	case EventArticlePublished:
		var event ArticlePublished
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", env.EventType, err)
		}
		return c.notifySubscribers(ctx, event)
	case EventCommentAdded:
		slog.Debug("comment event received", "key", string(msg.Key))
		return nil
	default:
		slog.Warn("unknown event type", "event_type", env.EventType)
		return nil
	}
}

func (c *Consumer) notifySubscribers(ctx context.Context, event ArticlePublished) error {
	if event.ArticleID == 0 || event.SubjectID == 0 {
		return fmt.Errorf("invalid %s event: missing article_id or subject_id", EventArticlePublished)
	}

	subscribers, err := c.subscriptions.ListSubscriberIDs(ctx, event.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to list subscribers of subject %d: %w", event.SubjectID, err)
	}

	notified := 0
	for _, userID := range subscribers {
		if userID == event.AuthorID {
			continue
		}
		slog.Info("article notification",
			"user_id", userID,
			"article_id", event.ArticleID,
			"subject_id", event.SubjectID,
			"title", event.Title)
		observability.NotificationsSent.Inc()
		notified++
	}

	slog.Info("article published event processed", "article_id", event.ArticleID, "notified", notified)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
