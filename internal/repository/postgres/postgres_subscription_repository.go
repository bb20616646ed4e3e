package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/honeynil/mdd-api/internal/models"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
)

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

// Create relies on the (user_id, subject_id) unique constraint to reject
// duplicates, so concurrent subscribe calls cannot both succeed.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, userID, subjectID int64) (_ *models.Subscription, err error) {
	ctx, done := startOp(ctx, "SubscriptionRepository.Create")
	defer done(&err)

	sub := &models.Subscription{UserID: userID, SubjectID: subjectID}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO subscriptions (user_id, subject_id) VALUES ($1, $2) RETURNING id`,
		userID, subjectID,
	).Scan(&sub.ID)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == uniqueViolation {
			return nil, pkgerrors.ErrAlreadySubscribed
		}
		if mapped := mapMissingReference(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}

func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, userID, subjectID int64) (_ bool, err error) {
	ctx, done := startOp(ctx, "SubscriptionRepository.Delete")
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND subject_id = $2`, userID, subjectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresSubscriptionRepository) Exists(ctx context.Context, userID, subjectID int64) (exists bool, err error) {
	ctx, done := startOp(ctx, "SubscriptionRepository.Exists")
	defer done(&err)

	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id = $1 AND subject_id = $2)`,
		userID, subjectID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return exists, nil
}

func (r *PostgresSubscriptionRepository) ListByUser(ctx context.Context, userID int64) (_ []models.Subscription, err error) {
	ctx, done := startOp(ctx, "SubscriptionRepository.ListByUser")
	defer done(&err)

	query := `
		SELECT s.id, s.subject_id, sub.name, sub.description
		FROM subscriptions s
		JOIN subjects sub ON sub.id = s.subject_id
		WHERE s.user_id = $1
		ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		s := models.Subscription{UserID: userID}
		if err = rows.Scan(&s.ID, &s.SubjectID, &s.Subject.Name, &s.Subject.Description); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		s.Subject.ID = s.SubjectID
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

func (r *PostgresSubscriptionRepository) ListSubscriberIDs(ctx context.Context, subjectID int64) (_ []int64, err error) {
	ctx, done := startOp(ctx, "SubscriptionRepository.ListSubscriberIDs")
	defer done(&err)

	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM subscriptions WHERE subject_id = $1 ORDER BY user_id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}
	return ids, nil
}
