package controllers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscart/marketplace-backend/api/middleware"
	"github.com/campuscart/marketplace-backend/internal/notifications"
	product "github.com/campuscart/marketplace-backend/internal/products"
	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func withIdentity(req *http.Request, userID uuid.UUID, role enums.UserRole, params map[string]string) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), userID, role)
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rc))
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": ok}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-CampusCart-Env"))

	rec = httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": down}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)

	rec = httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubProducts struct {
	created  product.CreateProductInput
	removeBy enums.UserRole
	err      error
}

func (s *stubProducts) Create(_ context.Context, sellerID uuid.UUID, input product.CreateProductInput) (*product.ProductDTO, error) {
	s.created = input
	return &product.ProductDTO{ID: uuid.New(), SellerID: sellerID, Title: input.Title, Status: enums.ProductStatusActive}, s.err
}

func (s *stubProducts) Get(_ context.Context, productID uuid.UUID) (*product.ProductDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &product.ProductDTO{ID: productID}, nil
}

func (s *stubProducts) Remove(_ context.Context, _ uuid.UUID, role enums.UserRole, productID uuid.UUID) (*product.ProductDTO, error) {
	s.removeBy = role
	if s.err != nil {
		return nil, s.err
	}
	return &product.ProductDTO{ID: productID, Status: enums.ProductStatusRemoved}, nil
}

func TestCreateProduct(t *testing.T) {
	svc := &stubProducts{}
	body := `{"title":"  Engineering Drawing kit  ","price_cents":45000}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewBufferString(body)), uuid.New(), enums.UserRoleStudent, nil)
	rec := httptest.NewRecorder()
	CreateProduct(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Engineering Drawing kit", svc.created.Title)
	assert.Equal(t, int64(45000), svc.created.PriceCents)

	req = withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewBufferString(`{"title":"x","price_cents":0}`)), uuid.New(), enums.UserRoleStudent, nil)
	rec = httptest.NewRecorder()
	CreateProduct(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveProductPassesRole(t *testing.T) {
	svc := &stubProducts{}
	id := uuid.New()
	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/", nil), uuid.New(), enums.UserRoleAdmin, map[string]string{"productId": id.String()})
	rec := httptest.NewRecorder()
	RemoveProduct(svc, logger.Nop()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.UserRoleAdmin, svc.removeBy)

	svc.err = pkgerrors.New(pkgerrors.CodeInvalidState, "product is pending")
	rec = httptest.NewRecorder()
	RemoveProduct(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetProductNotFound(t *testing.T) {
	svc := &stubProducts{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), enums.UserRoleStudent, map[string]string{"productId": uuid.NewString()})
	rec := httptest.NewRecorder()
	GetProduct(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubNotifications struct {
	params   notifications.ListParams
	markErr  error
	marked   []uuid.UUID
	allCount int64
}

func (s *stubNotifications) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.params = params
	return &notifications.ListResult{Items: []models.Notification{}}, nil
}

func (s *stubNotifications) MarkRead(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	s.marked = append(s.marked, id)
	return s.markErr
}

func (s *stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return s.allCount, nil
}

func TestListNotifications(t *testing.T) {
	svc := &stubNotifications{}
	user := uuid.New()
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5&unread_only=true&cursor=c1", nil), user, enums.UserRoleStudent, nil)
	rec := httptest.NewRecorder()
	ListNotifications(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notifications.ListParams{UserID: user, Limit: 5, Cursor: "c1", UnreadOnly: true}, svc.params)

	req = withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unread_only=maybe", nil), user, enums.UserRoleStudent, nil)
	rec = httptest.NewRecorder()
	ListNotifications(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkNotificationRead(t *testing.T) {
	svc := &stubNotifications{allCount: 3}
	id := uuid.New()
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New(), enums.UserRoleStudent, map[string]string{"notificationId": id.String()})
	rec := httptest.NewRecorder()
	MarkNotificationRead(svc, logger.Nop()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, svc.marked)

	svc.markErr = pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	rec = httptest.NewRecorder()
	MarkNotificationRead(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	MarkAllNotificationsRead(svc, logger.Nop()).ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New(), enums.UserRoleStudent, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"updated":3}}`, rec.Body.String())
}
