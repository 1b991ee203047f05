package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/api/validators"
	"github.com/campuscart/marketplace-backend/internal/notifications"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
)

// ListNotifications returns the caller's inbox, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, "notifications", svc != nil, true, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return err
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unread_only")
		if err != nil {
			return err
		}
		page, err := svc.List(r.Context(), notifications.ListParams{
			UserID:     userID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unreadOnly,
		})
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, page)
		return nil
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, "notifications", svc != nil, true, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		notificationID, err := validators.ParsePathUUID(r, "notificationId")
		if err != nil {
			return err
		}
		if err := svc.MarkRead(r.Context(), userID, notificationID); err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
		return nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, "notifications", svc != nil, true, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		updated, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
		return nil
	})
}
