package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
)

const (
	maxDLQErrorLen  = 1024
	defaultDLQLimit = 50
	maxDLQListLimit = 500
)

// DLQRepository stores outbox events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records entry inside the publisher's claim transaction. A second
// insert for the same event is ignored so a replayed batch cannot fail on the
// unique event index.
func (r *DLQRepository) InsertTx(ctx context.Context, tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("dlq insert requires a transaction")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		msg := clipError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	var existing int64
	if err := tx.WithContext(ctx).Model(&models.OutboxDLQ{}).Where("event_id = ?", entry.EventID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

// FindByEventID returns nil without error when the event was never dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var row models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// DLQFilter narrows List. The zero value lists the newest rows of any reason.
type DLQFilter struct {
	Reason enums.OutboxDLQErrorReason
	Limit  int
}

func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultDLQLimit
	case limit > maxDLQListLimit:
		limit = maxDLQListLimit
	}
	q := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit)
	if filter.Reason != "" {
		q = q.Where("error_reason = ?", filter.Reason)
	}
	var rows []models.OutboxDLQ
	return rows, q.Find(&rows).Error
}

// clipError bounds message without splitting a multi-byte rune.
func clipError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	cut := maxDLQErrorLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
