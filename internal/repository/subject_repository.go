package repository

import (
	"context"

	"github.com/honeynil/mdd-api/internal/models"
)

type SubjectRepository interface {
	List(ctx context.Context) ([]models.Subject, error)
	GetByID(ctx context.Context, id int64) (*models.Subject, error)
}

type SubscriptionRepository interface {
	Create(ctx context.Context, userID, subjectID int64) (*models.Subscription, error)
	Delete(ctx context.Context, userID, subjectID int64) (bool, error)
	Exists(ctx context.Context, userID, subjectID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error)
	ListSubscriberIDs(ctx context.Context, subjectID int64) ([]int64, error)
}
