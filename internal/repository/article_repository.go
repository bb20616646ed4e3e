package repository

import (
	"context"

	"github.com/honeynil/mdd-api/internal/models"
)

type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	ListBySubjects(ctx context.Context, subjectIDs []int64, ascending bool) ([]models.Article, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByArticle(ctx context.Context, articleID int64) ([]models.Comment, error)
	ListByArticles(ctx context.Context, articleIDs []int64) (map[int64][]models.Comment, error)
}
