package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscart/marketplace-backend/pkg/db/dbtest"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
)

func seedNotifications(t *testing.T, repo Repository, userID uuid.UUID, n int) []models.Notification {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Notification, 0, n)
	for i := 0; i < n; i++ {
		notification := models.Notification{
			UserID:    userID,
			EventID:   uuid.New(),
			Type:      enums.NotificationTypeOrderAlert,
			Title:     "Order updated",
			Message:   "status changed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		created, err := repo.CreateOnce(context.Background(), &notification)
		require.NoError(t, err)
		require.True(t, created)
		out = append(out, notification)
	}
	return out
}

func TestCreateOnceSkipsDuplicateEvent(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	ctx := context.Background()
	userID := uuid.New()
	eventID := uuid.New()

	first := &models.Notification{UserID: userID, EventID: eventID, Type: enums.NotificationTypeOrderAlert, Title: "a", Message: "b"}
	created, err := repo.CreateOnce(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &models.Notification{UserID: userID, EventID: eventID, Type: enums.NotificationTypeOrderAlert, Title: "a", Message: "b"}
	created, err = repo.CreateOnce(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	other := &models.Notification{UserID: uuid.New(), EventID: eventID, Type: enums.NotificationTypeOrderAlert, Title: "a", Message: "b"}
	created, err = repo.CreateOnce(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestServiceListPaginates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo)
	require.NoError(t, err)

	userID := uuid.New()
	seeded := seedNotifications(t, repo, userID, 5)
	seedNotifications(t, repo, uuid.New(), 2)

	page, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, seeded[4].ID, page.Items[0].ID)
	assert.Equal(t, seeded[2].ID, page.Items[2].ID)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 2)
	assert.Equal(t, seeded[1].ID, next.Items[0].ID)
	assert.Empty(t, next.NextCursor)
}

func TestServiceListRejectsBadInput(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t).DB()))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceMarkRead(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo)
	require.NoError(t, err)

	userID := uuid.New()
	seeded := seedNotifications(t, repo, userID, 3)
	ctx := context.Background()

	require.NoError(t, svc.MarkRead(ctx, userID, seeded[0].ID))
	// already read is still found
	require.NoError(t, svc.MarkRead(ctx, userID, seeded[0].ID))

	err = svc.MarkRead(ctx, uuid.New(), seeded[1].ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	unread, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Items, 2)

	count, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDeleteOlderThanKeepsUnread(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	userID := uuid.New()
	seeded := seedNotifications(t, repo, userID, 3)
	ctx := context.Background()

	_, err := repo.MarkRead(ctx, userID, seeded[0].ID, time.Now().UTC())
	require.NoError(t, err)

	deleted, err := repo.DeleteOlderThan(ctx, nil, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, client.DB().Model(&models.Notification{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
