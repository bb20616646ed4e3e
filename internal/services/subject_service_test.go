package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/honeynil/mdd-api/internal/models"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var catalogue = []models.Subject{
	{ID: 1, Name: "Go", Description: "Gophers"},
	{ID: 2, Name: "Java", Description: "Beans"},
	{ID: 3, Name: "Rust", Description: "Crabs"},
}

func boolPtr(b bool) *bool { return &b }

func TestSubjectService_List(t *testing.T) {
	ctx := context.Background()
	following := []models.Subscription{{ID: 9, UserID: 7, SubjectID: 2}}

	cases := []struct {
		name       string
		subscribed *bool
		want       []models.SubjectView
	}{
		{"All", nil, []models.SubjectView{
			catalogue[0].View(false), catalogue[1].View(true), catalogue[2].View(false),
		}},
		{"OnlySubscribed", boolPtr(true), []models.SubjectView{catalogue[1].View(true)}},
		{"OnlyUnsubscribed", boolPtr(false), []models.SubjectView{catalogue[0].View(false), catalogue[2].View(false)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subjects := &mockSubjectRepo{}
			subs := &mockSubscriptionRepo{}
			subjects.On("List", mock.Anything).Return(catalogue, nil)
			subs.On("ListByUser", mock.Anything, int64(7)).Return(following, nil)

			got, err := NewSubjectService(subjects, subs, nil, time.Minute).List(ctx, 7, tc.subscribed)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubjectService_CatalogueCache(t *testing.T) {
	ctx := context.Background()
	subjects := &mockSubjectRepo{}
	subs := &mockSubscriptionRepo{}
	cache := newMemoryCache()
	subjects.On("List", mock.Anything).Return(catalogue, nil).Once()
	subs.On("ListByUser", mock.Anything, int64(7)).Return([]models.Subscription{}, nil)

	svc := NewSubjectService(subjects, subs, cache, time.Minute)
	first, err := svc.List(ctx, 7, nil)
	require.NoError(t, err)
	second, err := svc.List(ctx, 7, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)
	subjects.AssertExpectations(t)
}

func TestSubjectService_CacheFailureFallsBack(t *testing.T) {
	subjects := &mockSubjectRepo{}
	subs := &mockSubscriptionRepo{}
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	subjects.On("List", mock.Anything).Return(catalogue, nil)
	subs.On("ListByUser", mock.Anything, int64(7)).Return([]models.Subscription{}, nil)

	got, err := NewSubjectService(subjects, subs, cache, time.Minute).List(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSubjectService_CorruptCacheEntry(t *testing.T) {
	subjects := &mockSubjectRepo{}
	subs := &mockSubscriptionRepo{}
	cache := newMemoryCache()
	cache.values[subjectCatalogueKey] = "{not json"
	subjects.On("List", mock.Anything).Return(catalogue, nil).Once()
	subs.On("ListByUser", mock.Anything, int64(7)).Return([]models.Subscription{}, nil)

	got, err := NewSubjectService(subjects, subs, cache, time.Minute).List(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	subjects.AssertExpectations(t)
}

func TestSubjectService_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		subjects := &mockSubjectRepo{}
		subs := &mockSubscriptionRepo{}
		subjects.On("GetByID", mock.Anything, int64(1)).Return(&catalogue[0], nil)
		subs.On("Exists", mock.Anything, int64(7), int64(1)).Return(false, nil)
		subs.On("Create", mock.Anything, int64(7), int64(1)).Return(&models.Subscription{ID: 4, UserID: 7, SubjectID: 1}, nil)

		require.NoError(t, NewSubjectService(subjects, subs, nil, 0).Subscribe(ctx, 7, 1))
		subs.AssertExpectations(t)
	})

	t.Run("UnknownSubject", func(t *testing.T) {
		subjects := &mockSubjectRepo{}
		subs := &mockSubscriptionRepo{}
		subjects.On("GetByID", mock.Anything, int64(99)).Return(nil, pkgerrors.ErrSubjectNotFound)

		err := NewSubjectService(subjects, subs, nil, 0).Subscribe(ctx, 7, 99)
		assert.ErrorIs(t, err, pkgerrors.ErrSubjectNotFound)
		subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AlreadySubscribed", func(t *testing.T) {
		subjects := &mockSubjectRepo{}
		subs := &mockSubscriptionRepo{}
		subjects.On("GetByID", mock.Anything, int64(1)).Return(&catalogue[0], nil)
		subs.On("Exists", mock.Anything, int64(7), int64(1)).Return(true, nil)

		err := NewSubjectService(subjects, subs, nil, 0).Subscribe(ctx, 7, 1)
		assert.ErrorIs(t, err, pkgerrors.ErrAlreadySubscribed)
	})

	t.Run("ConcurrentDuplicate", func(t *testing.T) {
		subjects := &mockSubjectRepo{}
		subs := &mockSubscriptionRepo{}
		subjects.On("GetByID", mock.Anything, int64(1)).Return(&catalogue[0], nil)
		subs.On("Exists", mock.Anything, int64(7), int64(1)).Return(false, nil)
		subs.On("Create", mock.Anything, int64(7), int64(1)).Return(nil, pkgerrors.ErrAlreadySubscribed)

		err := NewSubjectService(subjects, subs, nil, 0).Subscribe(ctx, 7, 1)
		assert.ErrorIs(t, err, pkgerrors.ErrAlreadySubscribed)
	})
}

func TestSubjectService_Unsubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent", func(t *testing.T) {
		subjects := &mockSubjectRepo{}
		subs := &mockSubscriptionRepo{}
		subjects.On("GetByID", mock.Anything, int64(1)).Return(&catalogue[0], nil)
		subs.On("Delete", mock.Anything, int64(7), int64(1)).Return(true, nil).Once()
		subs.On("Delete", mock.Anything, int64(7), int64(1)).Return(false, nil).Once()

		svc := NewSubjectService(subjects, subs, nil, 0)
		require.NoError(t, svc.Unsubscribe(ctx, 7, 1))
		require.NoError(t, svc.Unsubscribe(ctx, 7, 1))
		subs.AssertExpectations(t)
	})

	t.Run("UnknownSubject", func(t *testing.T) {
		subjects := &mockSubjectRepo{}
		subjects.On("GetByID", mock.Anything, int64(99)).Return(nil, pkgerrors.ErrSubjectNotFound)

		err := NewSubjectService(subjects, &mockSubscriptionRepo{}, nil, 0).Unsubscribe(ctx, 7, 99)
		assert.ErrorIs(t, err, pkgerrors.ErrSubjectNotFound)
	})
}
