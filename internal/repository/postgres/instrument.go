package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var tracer = otel.Tracer("postgres-repository")

// startOp opens a span for a repository method and returns the func that
// closes it and records call metrics. Usage: defer done(&err).
func startOp(ctx context.Context, method string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, method)
	start := time.Now()
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil && !isNotFound(*errp) {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		observability.ObserveRepository(method, start, errp)
		span.End()
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, pkgerrors.ErrUserNotFound) ||
		errors.Is(err, pkgerrors.ErrSubjectNotFound) ||
		errors.Is(err, pkgerrors.ErrArticleNotFound)
}

func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// mapMissingReference turns a foreign key violation into the not-found error
// of the referenced row. Other errors are returned unchanged.
func mapMissingReference(err error) error {
	pqErr, ok := pqError(err)
	if !ok || pqErr.Code != foreignKeyViolation {
		return err
	}
	switch {
	case strings.HasSuffix(pqErr.Constraint, "_subject_id_fkey"):
		return pkgerrors.ErrSubjectNotFound
	case strings.HasSuffix(pqErr.Constraint, "_article_id_fkey"):
		return pkgerrors.ErrArticleNotFound
	case strings.HasSuffix(pqErr.Constraint, "_user_id_fkey"):
		return pkgerrors.ErrUserNotFound
	default:
		return err
	}
}
