package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
)

// Service is the read side of the in-app inbox. Rows are written by the
// consumer, never through this interface.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

type ListResult = pagination.Page[models.Notification]

var errNoIdentity = pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, errNoIdentity
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		Cursor:     after,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	page := pagination.BuildPage(rows, params.Limit, notificationCursor)
	return &page, nil
}

func notificationCursor(n models.Notification) pagination.Cursor {
	return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
}

// MarkRead is idempotent: marking an already read notification succeeds and
// keeps the original read time.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	switch {
	case userID == uuid.Nil:
		return errNoIdentity
	case notificationID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	found, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, errNoIdentity
	}
	count, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
