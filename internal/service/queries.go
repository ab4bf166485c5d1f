package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pribylovaa/placenotes/internal/cache"
	"github.com/pribylovaa/placenotes/internal/models"
	"github.com/pribylovaa/placenotes/pkg/log"
)

// NearInput: поиск по области. Radius в метрах, Page с 1.
type NearInput struct {
	Longitude float64
	Latitude  float64
	Radius    float64
	Page      int
}

// InboxInput: «входящие» пользователя. Page с 1.
type InboxInput struct {
	UserID string
	Page   int
}

// FindNear: записи в радиусе от точки, по возрастанию расстояния.
//
// Валидация (до обращения к кэшу и хранилищу):
//   - координаты конечные, долгота в [-180, 180], широта в [-90, 90] -> иначе ErrInvalidLocation;
//   - 0 < Radius <= query.max_radius -> иначе ErrInvalidRadius;
//   - Page >= 1 -> иначе ErrInvalidArgument.
//
// Поведение/ошибки:
//   - пустая выдача не ошибка: Items пуст, TotalPages = TotalMessages = 0;
//   - ErrStoreUnavailable: хранилище не ответило, кэш не заполняется.
func (s *Service) FindNear(ctx context.Context, in NearInput) (*models.Page, error) {
	const op = "service/queries/FindNear"

	lg := log.From(ctx).With(
		"op", op,
		"lon", in.Longitude,
		"lat", in.Latitude,
		"radius", in.Radius,
		"page", in.Page,
	)

	center, err := models.NewPoint(in.Longitude, in.Latitude)
	if err != nil {
		lg.Warn("invalid location", "error", err)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidLocation)
	}

	if math.IsNaN(in.Radius) || in.Radius <= 0 || in.Radius > s.cfg.MaxRadius {
		lg.Warn("invalid radius")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRadius)
	}

	if in.Page < 1 {
		lg.Warn("invalid argument: page < 1")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	q := cache.AreaQuery(center, in.Radius, in.Page)
	page, err := s.cached(ctx, q, func(ctx context.Context) (*models.Page, error) {
		return s.storage.FindNear(ctx, center, in.Radius, in.Page, s.cfg.PageSize)
	})
	if err != nil {
		err = queryErr(ctx, err)
		if errors.Is(err, ErrStoreUnavailable) {
			lg.Error("find near failed", "error", err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// FindInbox: записи, где пользователь отправитель или получатель, сначала новые.
//
// Валидация:
//   - UserID не пуст -> иначе ErrInvalidArgument;
//   - Page >= 1 -> иначе ErrInvalidArgument.
//
// Поведение/ошибки:
//   - ErrStoreUnavailable: хранилище не ответило, кэш не заполняется.
func (s *Service) FindInbox(ctx context.Context, in InboxInput) (*models.Page, error) {
	const op = "service/queries/FindInbox"

	lg := log.From(ctx).With("op", op, "user_id", in.UserID, "page", in.Page)

	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		lg.Warn("invalid argument: empty user_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if in.Page < 1 {
		lg.Warn("invalid argument: page < 1")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	q := cache.InboxQuery(in.UserID, in.Page)
	page, err := s.cached(ctx, q, func(ctx context.Context) (*models.Page, error) {
		return s.storage.FindInbox(ctx, in.UserID, in.Page, s.cfg.PageSize)
	})
	if err != nil {
		err = queryErr(ctx, err)
		if errors.Is(err, ErrStoreUnavailable) {
			lg.Error("find inbox failed", "error", err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// cached отдаёт ответ из кэша, а при промахе загружает его через load.
//
// Одновременные промахи по одному ключу в пределах одного поколения кэша
// схлопываются в один запрос к хранилищу. Запрос, пришедший после инвалидации,
// к загрузке прошлого поколения не присоединяется.
//
// Общая загрузка не зависит от отмены контекста отдельного вызывающего и
// ограничена query.load_timeout; вызывающий, чей ctx отменён, получает ctx.Err().
// Ответ не кэшируется, если за время загрузки прошла инвалидация.
func (s *Service) cached(ctx context.Context, q cache.Query, load func(context.Context) (*models.Page, error)) (*models.Page, error) {
	if page, ok := s.cache.Lookup(q); ok {
		return page, nil
	}

	gen := s.cache.Generation()
	key := cache.KeyFor(q)

	ch := s.flight.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoadTimeout)
		defer cancel()

		page, err := load(lctx)
		if err != nil {
			return nil, err
		}

		if !s.cache.PutIfFresh(gen, q, page) {
			log.From(lctx).Debug("cache_put_skipped_stale", "key", key)
		}

		return page, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*models.Page), nil
	}
}

// queryErr: отмена запроса самим клиентом передаётся как есть,
// остальное переводится через storeErr.
func queryErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
		return cerr
	}

	return storeErr(err)
}
