package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	stderrors "errors"

	"github.com/honeynil/mdd-api/internal/infrastructure/kafka"
	"github.com/honeynil/mdd-api/internal/models"
	"github.com/honeynil/mdd-api/internal/repository"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type CreateArticleInput struct {
	Title     string
	Content   string
	SubjectID int64
}

type ArticleService interface {
	// Feed lists articles from the user's subscribed subjects, newest first
	// unless ascending is set.
	Feed(ctx context.Context, userID int64, ascending bool) ([]models.ArticleView, error)
	Create(ctx context.Context, userID int64, in CreateArticleInput) (*models.ArticleView, error)
	Get(ctx context.Context, userID, articleID int64) (*models.ArticleView, error)
	AddComment(ctx context.Context, userID, articleID int64, content string) (*models.CommentView, error)
	ListComments(ctx context.Context, articleID int64) ([]models.CommentView, error)
}

type articleService struct {
	articleRepo      repository.ArticleRepository
	commentRepo      repository.CommentRepository
	subjectRepo      repository.SubjectRepository
	subscriptionRepo repository.SubscriptionRepository
	events           EventPublisher
}

func NewArticleService(
	articleRepo repository.ArticleRepository,
	commentRepo repository.CommentRepository,
	subjectRepo repository.SubjectRepository,
	subscriptionRepo repository.SubscriptionRepository,
	events EventPublisher,
) *articleService {
	return &articleService{
		articleRepo:      articleRepo,
		commentRepo:      commentRepo,
		subjectRepo:      subjectRepo,
		subscriptionRepo: subscriptionRepo,
		events:           publisherOrNoop(events),
	}
}

func (s *articleService) Feed(ctx context.Context, userID int64, ascending bool) ([]models.ArticleView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ArticleService.Feed")
	defer span.End()

	followed, err := subscribedSubjectIDs(ctx, s.subscriptionRepo, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(followed) == 0 {
		return []models.ArticleView{}, nil
	}

	subjectIDs := make([]int64, 0, len(followed))
	for id := range followed {
		subjectIDs = append(subjectIDs, id)
	}

	articles, err := s.articleRepo.ListBySubjects(ctx, subjectIDs, ascending)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list articles")
		return nil, fmt.Errorf("%w: failed to list articles", pkgerrors.ErrInternal)
	}
	span.SetAttributes(attribute.Int("feed.size", len(articles)))
	if len(articles) == 0 {
		return []models.ArticleView{}, nil
	}

	articleIDs := make([]int64, len(articles))
	for i, a := range articles {
		articleIDs[i] = a.ID
	}
	comments, err := s.commentRepo.ListByArticles(ctx, articleIDs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to list comments", pkgerrors.ErrInternal)
	}

	views := make([]models.ArticleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, articleView(a, followed, comments[a.ID]))
	}
	return views, nil
}

func (s *articleService) Create(ctx context.Context, userID int64, in CreateArticleInput) (*models.ArticleView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ArticleService.Create")
	defer span.End()

	v := pkgerrors.NewValidationError()
	if strings.TrimSpace(in.Title) == "" {
		v.Add("title", "title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		v.Add("content", "content is required")
	}
	if in.SubjectID < 1 {
		v.Add("subjectId", "subjectId is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if _, err := s.subjectRepo.GetByID(ctx, in.SubjectID); err != nil {
		return nil, err
	}

	article := &models.Article{
		SubjectID: in.SubjectID,
		UserID:    userID,
		Title:     in.Title,
		Content:   in.Content,
	}
	if err := s.articleRepo.Create(ctx, article); err != nil {
		if stderrors.Is(err, pkgerrors.ErrSubjectNotFound) {
			return nil, err
		}
		span.RecordError(err)
		slog.Error("failed to create article", "user_id", userID, "subject_id", in.SubjectID, "error", err)
		return nil, fmt.Errorf("%w: failed to create article", pkgerrors.ErrInternal)
	}

	s.events.Publish(ctx, kafka.TopicArticles, kafka.EventArticlePublished, article.ID, kafka.ArticlePublished{
		EventType: kafka.EventArticlePublished,
		ArticleID: article.ID,
		SubjectID: article.SubjectID,
		AuthorID:  userID,
		Title:     article.Title,
		CreatedAt: article.CreatedAt,
	})
	slog.Info("article published", "article_id", article.ID, "user_id", userID, "subject_id", article.SubjectID)

	return s.Get(ctx, userID, article.ID)
}

func (s *articleService) Get(ctx context.Context, userID, articleID int64) (*models.ArticleView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ArticleService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("article.id", articleID))

	article, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}

	followed, err := subscribedSubjectIDs(ctx, s.subscriptionRepo, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	comments, err := s.commentRepo.ListByArticle(ctx, articleID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to list comments", pkgerrors.ErrInternal)
	}

	view := articleView(*article, followed, comments)
	return &view, nil
}

func (s *articleService) AddComment(ctx context.Context, userID, articleID int64, content string) (*models.CommentView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ArticleService.AddComment")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		v := pkgerrors.NewValidationError()
		v.Add("content", "comment must not be empty")
		return nil, v
	}

	if _, err := s.articleRepo.GetByID(ctx, articleID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ArticleID: articleID,
		UserID:    userID,
		Content:   content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		if stderrors.Is(err, pkgerrors.ErrArticleNotFound) {
			return nil, err
		}
		span.RecordError(err)
		slog.Error("failed to add comment", "user_id", userID, "article_id", articleID, "error", err)
		return nil, fmt.Errorf("%w: failed to add comment", pkgerrors.ErrInternal)
	}

	s.events.Publish(ctx, kafka.TopicArticles, kafka.EventCommentAdded, articleID, kafka.CommentAdded{
		EventType: kafka.EventCommentAdded,
		ArticleID: articleID,
		CommentID: comment.ID,
		AuthorID:  userID,
		CreatedAt: comment.CreatedAt,
	})

	view := comment.View()
	return &view, nil
}

func (s *articleService) ListComments(ctx context.Context, articleID int64) ([]models.CommentView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ArticleService.ListComments")
	defer span.End()

	if _, err := s.articleRepo.GetByID(ctx, articleID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByArticle(ctx, articleID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to list comments", pkgerrors.ErrInternal)
	}
	return commentViews(comments), nil
}

func articleView(a models.Article, followed map[int64]bool, comments []models.Comment) models.ArticleView {
	return models.ArticleView{
		ArticleID: a.ID,
		Title:     a.Title,
		Content:   a.Content,
		CreatedAt: a.CreatedAt,
		Author:    a.Author,
		Subject:   a.Subject.View(followed[a.Subject.ID]),
		Comments:  commentViews(comments),
	}
}

func commentViews(comments []models.Comment) []models.CommentView {
	views := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, c.View())
	}
	return views
}
