package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOnce(ctx context.Context, notification *models.Notification) (bool, error)
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type listNotificationsParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func unread(db *gorm.DB) *gorm.DB {
	return db.Where("read_at IS NULL")
}

// CreateOnce reports false when the user already holds a notification for the
// same source event.
func (r *gormRepository) CreateOnce(ctx context.Context, notification *models.Notification) (bool, error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	onePerEvent := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
		DoNothing: true,
	}
	res := r.db.WithContext(ctx).Clauses(onePerEvent).Create(notification)
	return res.RowsAffected == 1, res.Error
}

func (r *gormRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	query := r.inbox(ctx, params.UserID)
	if params.UnreadOnly {
		query = query.Scopes(unread)
	}
	var rows []models.Notification
	err := query.Scopes(pagination.Keyset(params.Cursor, params.Limit)).Find(&rows).Error
	return rows, err
}

// MarkRead reports whether the notification exists for userID. COALESCE keeps
// the first read time, so the update matches already read rows too.
func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error) {
	res := r.inbox(ctx, userID).
		Where("id = ?", notificationID).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", now))
	return res.RowsAffected > 0, res.Error
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.inbox(ctx, userID).Scopes(unread).UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteOlderThan prunes read notifications created before cutoff. Unread
// rows are kept regardless of age.
func (r *gormRepository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
