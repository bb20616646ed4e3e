package service

import "context"

// EventPublisher is satisfied by *kafka.EventPublisher. Implementations must
// not block the request on broker failures.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType string, key int64, event any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, int64, any) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
