package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
	"github.com/honeynil/mdd-api/internal/infrastructure/redis"
	"github.com/honeynil/mdd-api/internal/models"
	"github.com/honeynil/mdd-api/internal/repository"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const subjectCatalogueKey = "subjects:all"

type SubjectService interface {
	// List returns every subject when subscribed is nil, otherwise only the
	// subjects whose subscription state matches *subscribed.
	List(ctx context.Context, userID int64, subscribed *bool) ([]models.SubjectView, error)
	Subscribe(ctx context.Context, userID, subjectID int64) error
	Unsubscribe(ctx context.Context, userID, subjectID int64) error
}

type subjectService struct {
	subjectRepo      repository.SubjectRepository
	subscriptionRepo repository.SubscriptionRepository
	cache            redis.RedisClient
	cacheTTL         time.Duration
}

// NewSubjectService builds the service. A nil cache disables catalogue caching.
func NewSubjectService(
	subjectRepo repository.SubjectRepository,
	subscriptionRepo repository.SubscriptionRepository,
	cache redis.RedisClient,
	cacheTTL time.Duration,
) *subjectService {
	return &subjectService{
		subjectRepo:      subjectRepo,
		subscriptionRepo: subscriptionRepo,
		cache:            cache,
		cacheTTL:         cacheTTL,
	}
}

func (s *subjectService) List(ctx context.Context, userID int64, subscribed *bool) ([]models.SubjectView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SubjectService.List")
	defer span.End()

	subjects, err := s.catalogue(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load subjects")
		return nil, err
	}

	followed, err := subscribedSubjectIDs(ctx, s.subscriptionRepo, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	views := make([]models.SubjectView, 0, len(subjects))
	for _, subject := range subjects {
		isFollowed := followed[subject.ID]
		if subscribed != nil && *subscribed != isFollowed {
			continue
		}
		views = append(views, subject.View(isFollowed))
	}
	return views, nil
}

func (s *subjectService) Subscribe(ctx context.Context, userID, subjectID int64) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SubjectService.Subscribe")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("subject.id", subjectID))

	if _, err := s.subjectRepo.GetByID(ctx, subjectID); err != nil {
		return err
	}

	exists, err := s.subscriptionRepo.Exists(ctx, userID, subjectID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: failed to check subscription", pkgerrors.ErrInternal)
	}
	if exists {
		return pkgerrors.ErrAlreadySubscribed
	}

	sub, err := s.subscriptionRepo.Create(ctx, userID, subjectID)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrAlreadySubscribed) || stderrors.Is(err, pkgerrors.ErrSubjectNotFound) {
			return err
		}
		span.RecordError(err)
		slog.Error("failed to subscribe", "user_id", userID, "subject_id", subjectID, "error", err)
		return fmt.Errorf("%w: failed to subscribe", pkgerrors.ErrInternal)
	}

	slog.Info("subscribed", "user_id", userID, "subject_id", subjectID, "subscription_id", sub.ID)
	return nil
}

// Unsubscribe succeeds whether or not a subscription existed.
func (s *subjectService) Unsubscribe(ctx context.Context, userID, subjectID int64) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SubjectService.Unsubscribe")
	defer span.End()

	if _, err := s.subjectRepo.GetByID(ctx, subjectID); err != nil {
		return err
	}

	removed, err := s.subscriptionRepo.Delete(ctx, userID, subjectID)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to unsubscribe", "user_id", userID, "subject_id", subjectID, "error", err)
		return fmt.Errorf("%w: failed to unsubscribe", pkgerrors.ErrInternal)
	}

	slog.Info("unsubscribed", "user_id", userID, "subject_id", subjectID, "removed", removed)
	return nil
}

// catalogue reads the subject list through the cache. Cache failures fall
// back to the database and are never returned.
func (s *subjectService) catalogue(ctx context.Context) ([]models.Subject, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, subjectCatalogueKey)
		switch {
		case err == nil:
			var subjects []models.Subject
			if jsonErr := json.Unmarshal([]byte(raw), &subjects); jsonErr == nil {
				observability.SubjectCacheLookups.WithLabelValues("hit").Inc()
				return subjects, nil
			}
			slog.Warn("discarding undecodable subject cache entry", "key", subjectCatalogueKey)
			observability.SubjectCacheLookups.WithLabelValues("miss").Inc()
		case stderrors.Is(err, redis.ErrKeyNotFound):
			observability.SubjectCacheLookups.WithLabelValues("miss").Inc()
		default:
			slog.Warn("subject cache unavailable", "error", err)
			observability.SubjectCacheLookups.WithLabelValues("error").Inc()
		}
	}

	subjects, err := s.subjectRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list subjects", pkgerrors.ErrInternal)
	}

	if s.cache != nil {
		payload, err := json.Marshal(subjects)
		if err == nil {
			err = s.cache.Set(ctx, subjectCatalogueKey, payload, s.cacheTTL)
		}
		if err != nil {
			slog.Warn("failed to cache subjects", "error", err)
		}
	}
	return subjects, nil
}

func subscribedSubjectIDs(ctx context.Context, subs repository.SubscriptionRepository, userID int64) (map[int64]bool, error) {
	list, err := subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list subscriptions", pkgerrors.ErrInternal)
	}
	ids := make(map[int64]bool, len(list))
	for _, sub := range list {
		ids[sub.SubjectID] = true
	}
	return ids, nil
}
