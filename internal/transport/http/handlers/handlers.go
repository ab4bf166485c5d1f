package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/placenotes/internal/models"
	"github.com/pribylovaa/placenotes/internal/service"
)

// Service: операции сервисного слоя, которые вызывают хендлеры.
type Service interface {
	FindNear(ctx context.Context, in service.NearInput) (*models.Page, error)
	FindInbox(ctx context.Context, in service.InboxInput) (*models.Page, error)
	CreateItem(ctx context.Context, in service.CreateItemInput) (*models.Item, error)
	UpdateBody(ctx context.Context, in service.UpdateBodyInput) (*models.Item, error)
	MarkRead(ctx context.Context, in service.MarkReadInput) (*models.Item, error)
	SetHidden(ctx context.Context, in service.SetHiddenInput) (*models.Item, error)
	DeleteItem(ctx context.Context, itemID, callerID string) error
}

// Handlers агрегирует зависимости REST-ручек.
type Handlers struct {
	svc           Service
	defaultRadius float64
}

// New создаёт хендлеры. defaultRadius подставляется, если radius не передан в поиске.
func New(svc Service, defaultRadius float64) *Handlers {
	return &Handlers{svc: svc, defaultRadius: defaultRadius}
}

// writeJSON: единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict: строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// statusErrorInvalidArgument: локальная ошибка парсинга -> InvalidArgument.
func statusErrorInvalidArgument() error {
	return status.Error(codes.InvalidArgument, "invalid argument")
}

func statusErrorUnauthenticated() error {
	return status.Error(codes.Unauthenticated, "unauthenticated")
}
