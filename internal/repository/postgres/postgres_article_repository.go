package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/honeynil/mdd-api/internal/models"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"github.com/lib/pq"
)

const articleSelect = `
	SELECT a.id, a.subject_id, a.user_id, a.title, a.content, a.created_at,
	       u.email, u.username, s.name, s.description
	FROM articles a
	JOIN users u ON u.id = a.user_id
	JOIN subjects s ON s.id = a.subject_id`

type PostgresArticleRepository struct {
	db *sql.DB
}

func NewPostgresArticleRepository(db *sql.DB) *PostgresArticleRepository {
	return &PostgresArticleRepository{db: db}
}

func (r *PostgresArticleRepository) Create(ctx context.Context, article *models.Article) (err error) {
	ctx, done := startOp(ctx, "ArticleRepository.Create")
	defer done(&err)

	if article == nil {
		return pkgerrors.ErrNilArticle
	}

	query := `INSERT INTO articles (subject_id, user_id, title, content) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err = r.db.QueryRowContext(ctx, query, article.SubjectID, article.UserID, article.Title, article.Content).
		Scan(&article.ID, &article.CreatedAt)
	if err != nil {
		if mapped := mapMissingReference(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

func (r *PostgresArticleRepository) GetByID(ctx context.Context, id int64) (_ *models.Article, err error) {
	ctx, done := startOp(ctx, "ArticleRepository.GetByID")
	defer done(&err)

	article, err := scanArticle(r.db.QueryRowContext(ctx, articleSelect+` WHERE a.id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrArticleNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get article %d: %w", id, err)
	}
	return article, nil
}

// ListBySubjects returns the articles of the given subjects ordered by
// creation time; ties keep insertion order.
func (r *PostgresArticleRepository) ListBySubjects(ctx context.Context, subjectIDs []int64, ascending bool) (_ []models.Article, err error) {
	ctx, done := startOp(ctx, "ArticleRepository.ListBySubjects")
	defer done(&err)

	articles := make([]models.Article, 0)
	if len(subjectIDs) == 0 {
		return articles, nil
	}

	order := "DESC"
	if ascending {
		order = "ASC"
	}
	query := articleSelect + ` WHERE a.subject_id = ANY($1) ORDER BY a.created_at ` + order + `, a.id ` + order

	rows, err := r.db.QueryContext(ctx, query, pq.Array(subjectIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		article, scanErr := scanArticle(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan article: %w", scanErr)
			return nil, err
		}
		articles = append(articles, *article)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	err := row.Scan(
		&a.ID,
		&a.SubjectID,
		&a.UserID,
		&a.Title,
		&a.Content,
		&a.CreatedAt,
		&a.Author.Email,
		&a.Author.Username,
		&a.Subject.Name,
		&a.Subject.Description,
	)
	if err != nil {
		return nil, err
	}
	a.Author.UserID = a.UserID
	a.Subject.ID = a.SubjectID
	return &a, nil
}
