// service содержит бизнес-логику placenotes-сервиса: поиск с кэшем ответов
// и запись, за которой синхронно следует инвалидация кэша.
package service

import (
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/placenotes/internal/cache"
	"github.com/pribylovaa/placenotes/internal/config"
	"github.com/pribylovaa/placenotes/internal/storage"
)

var (
	// ErrInvalidLocation: координаты нечисловые или вне диапазона.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrInvalidRadius: радиус не положительный, не конечный или больше допустимого.
	ErrInvalidRadius = errors.New("invalid radius")
	// ErrInvalidArgument: прочие неверные входные параметры.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound: запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: вызывающий не вправе менять запись.
	ErrForbidden = errors.New("forbidden")
	// ErrStoreUnavailable: хранилище не выполнило запрос (связь, таймаут и т.п.).
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MaxBodyLen: максимальная длина текста записи в символах.
const MaxBodyLen = 2000

// defaultLoadTimeout: дедлайн общей загрузки промаха, если query.load_timeout не задан.
const defaultLoadTimeout = 5 * time.Second

// Service: поиск по области, «входящие» и запись заметок/сообщений.
type Service struct {
	storage storage.Storage
	cache   *cache.Cache
	inv     *cache.Invalidator
	cfg     config.QueryConfig
	flight  singleflight.Group
}

// New создаёт сервис. Кэш и инвалидатор создаются снаружи и передаются явно.
func New(st storage.Storage, c *cache.Cache, inv *cache.Invalidator, cfg config.QueryConfig) *Service {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}

	return &Service{
		storage: st,
		cache:   c,
		inv:     inv,
		cfg:     cfg,
	}
}

// storeErr переводит ошибку хранилища в ошибку сервиса.
func storeErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrInvalidID):
		return ErrNotFound
	default:
		return ErrStoreUnavailable
	}
}
