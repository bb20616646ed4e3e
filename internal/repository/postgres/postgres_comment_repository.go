package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/honeynil/mdd-api/internal/models"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"github.com/lib/pq"
)

const commentSelect = `
	SELECT c.id, c.article_id, c.user_id, c.content, c.created_at, u.username
	FROM comments c
	JOIN users u ON u.id = c.user_id`

type PostgresCommentRepository struct {
	db *sql.DB
}

func NewPostgresCommentRepository(db *sql.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

func (r *PostgresCommentRepository) Create(ctx context.Context, comment *models.Comment) (err error) {
	ctx, done := startOp(ctx, "CommentRepository.Create")
	defer done(&err)

	if comment == nil {
		return pkgerrors.ErrNilComment
	}

	query := `INSERT INTO comments (article_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`
	err = r.db.QueryRowContext(ctx, query, comment.ArticleID, comment.UserID, comment.Content).
		Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		if mapped := mapMissingReference(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByArticle returns the comments of an article, oldest first.
func (r *PostgresCommentRepository) ListByArticle(ctx context.Context, articleID int64) (_ []models.Comment, err error) {
	ctx, done := startOp(ctx, "CommentRepository.ListByArticle")
	defer done(&err)

	rows, err := r.db.QueryContext(ctx, commentSelect+` WHERE c.article_id = $1 ORDER BY c.created_at ASC, c.id ASC`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err = rows.Scan(&c.ID, &c.ArticleID, &c.UserID, &c.Content, &c.CreatedAt, &c.AuthorUsername); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// ListByArticles loads the comments of several articles in one query,
// grouped by article id, each group oldest first.
func (r *PostgresCommentRepository) ListByArticles(ctx context.Context, articleIDs []int64) (_ map[int64][]models.Comment, err error) {
	ctx, done := startOp(ctx, "CommentRepository.ListByArticles")
	defer done(&err)

	byArticle := make(map[int64][]models.Comment, len(articleIDs))
	if len(articleIDs) == 0 {
		return byArticle, nil
	}

	rows, err := r.db.QueryContext(ctx,
		commentSelect+` WHERE c.article_id = ANY($1) ORDER BY c.created_at ASC, c.id ASC`,
		pq.Array(articleIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Comment
		if err = rows.Scan(&c.ID, &c.ArticleID, &c.UserID, &c.Content, &c.CreatedAt, &c.AuthorUsername); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		byArticle[c.ArticleID] = append(byArticle[c.ArticleID], c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return byArticle, nil
}
