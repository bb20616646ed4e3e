package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/honeynil/mdd-api/internal/infrastructure/redis"
	"github.com/honeynil/mdd-api/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) FindByEmailOrUsername(ctx context.Context, login string) (*models.User, error) {
	args := m.Called(ctx, login)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

type mockSubjectRepo struct{ mock.Mock }

func (m *mockSubjectRepo) List(ctx context.Context) ([]models.Subject, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]models.Subject)
	return s, args.Error(1)
}

func (m *mockSubjectRepo) GetByID(ctx context.Context, id int64) (*models.Subject, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.Subject)
	return s, args.Error(1)
}

type mockSubscriptionRepo struct{ mock.Mock }

func (m *mockSubscriptionRepo) Create(ctx context.Context, userID, subjectID int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subjectID)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *mockSubscriptionRepo) Delete(ctx context.Context, userID, subjectID int64) (bool, error) {
	args := m.Called(ctx, userID, subjectID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSubscriptionRepo) Exists(ctx context.Context, userID, subjectID int64) (bool, error) {
	args := m.Called(ctx, userID, subjectID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSubscriptionRepo) ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).([]models.Subscription)
	return s, args.Error(1)
}

func (m *mockSubscriptionRepo) ListSubscriberIDs(ctx context.Context, subjectID int64) ([]int64, error) {
	args := m.Called(ctx, subjectID)
	s, _ := args.Get(0).([]int64)
	return s, args.Error(1)
}

type mockArticleRepo struct{ mock.Mock }

func (m *mockArticleRepo) Create(ctx context.Context, article *models.Article) error {
	return m.Called(ctx, article).Error(0)
}

func (m *mockArticleRepo) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Article)
	return a, args.Error(1)
}

func (m *mockArticleRepo) ListBySubjects(ctx context.Context, subjectIDs []int64, ascending bool) ([]models.Article, error) {
	args := m.Called(ctx, subjectIDs, ascending)
	a, _ := args.Get(0).([]models.Article)
	return a, args.Error(1)
}

type mockCommentRepo struct{ mock.Mock }

func (m *mockCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	return m.Called(ctx, comment).Error(0)
}

func (m *mockCommentRepo) ListByArticle(ctx context.Context, articleID int64) ([]models.Comment, error) {
	args := m.Called(ctx, articleID)
	c, _ := args.Get(0).([]models.Comment)
	return c, args.Error(1)
}

func (m *mockCommentRepo) ListByArticles(ctx context.Context, articleIDs []int64) (map[int64][]models.Comment, error) {
	args := m.Called(ctx, articleIDs)
	c, _ := args.Get(0).(map[int64][]models.Comment)
	return c, args.Error(1)
}

// stubIssuer returns "token:<login>:<id>" so tests can check what was signed.
type stubIssuer struct{ err error }

func (s stubIssuer) Issue(login string, userID int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("token:%s:%d", login, userID), nil
}

type publishedEvent struct {
	Topic     string
	EventType string
	Key       int64
	Event     any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic, eventType string, key int64, event any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, eventType, key, event})
}

// memoryCache is an in-memory RedisClient.
type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.values[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.values[key] = string(v)
	case string:
		c.values[key] = v
	default:
		c.values[key] = fmt.Sprint(v)
	}
	c.sets++
	return nil
}

func (c *memoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memoryCache) Close() error { return nil }
