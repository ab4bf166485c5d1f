package storage

import (
	"context"
	"errors"

	"github.com/pribylovaa/placenotes/internal/models"
)

var (
	// ErrNotFound: запись отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID: идентификатор не является ObjectID.
	ErrInvalidID = errors.New("invalid id")
)

// Storage описывает операции над размещёнными записями (заметками и сообщениями).
type Storage interface {
	// CreateItem сохраняет новую запись.
	// Входной Item должен содержать OwnerID, Kind, Body и валидную Location;
	// ID, CreatedAt, UpdatedAt, Read и Hidden выставляет хранилище.
	CreateItem(ctx context.Context, item models.Item) (*models.Item, error)

	// ItemByID возвращает запись по идентификатору.
	// Возможные ошибки: ErrInvalidID, ErrNotFound.
	ItemByID(ctx context.Context, id string) (*models.Item, error)

	// UpdateBody заменяет текст записи и возвращает обновлённую запись.
	// Возможные ошибки: ErrInvalidID, ErrNotFound.
	UpdateBody(ctx context.Context, id, body string) (*models.Item, error)

	// SetRead выставляет флаг прочтения.
	// Возможные ошибки: ErrInvalidID, ErrNotFound.
	SetRead(ctx context.Context, id string, read bool) (*models.Item, error)

	// SetHidden выставляет флаг скрытия.
	// Возможные ошибки: ErrInvalidID, ErrNotFound.
	SetHidden(ctx context.Context, id string, hidden bool) (*models.Item, error)

	// DeleteItem удаляет запись физически.
	// Возможные ошибки: ErrInvalidID, ErrNotFound.
	DeleteItem(ctx context.Context, id string) error

	// FindNear возвращает страницу записей в радиусе radius метров от center,
	// по возрастанию расстояния, с заполненными Distance и OwnerName.
	// Пустая выдача ошибкой не является.
	FindNear(ctx context.Context, center models.Point, radius float64, page, pageSize int) (*models.Page, error)

	// FindInbox возвращает страницу записей, где userID: отправитель или получатель,
	// сначала новые. Записи, скрытые получателем, в его выдачу не попадают.
	FindInbox(ctx context.Context, userID string, page, pageSize int) (*models.Page, error)

	// Close закрывает соединения/ресурсы хранилища.
	Close(ctx context.Context) error
}
