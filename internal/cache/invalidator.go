package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pribylovaa/placenotes/internal/cache/broadcast"
	"github.com/pribylovaa/placenotes/internal/geo"
	"github.com/pribylovaa/placenotes/internal/models"
	"github.com/pribylovaa/placenotes/pkg/log"
)

// ReasonRemote: вытеснение по событию другого инстанса.
const ReasonRemote = "remote"

// Invalidator удаляет из кэша записи, которые могла затронуть запись в хранилище.
// Вызывается синхронно, после успешной записи и до ответа клиенту.
// Ошибки наружу не возвращаются: при сомнении запись удаляется.
type Invalidator struct {
	cache *Cache
	bc    broadcast.Broadcaster
}

// NewInvalidator создаёт инвалидатор. bc == nil отключает рассылку.
func NewInvalidator(c *Cache, bc broadcast.Broadcaster) *Invalidator {
	if bc == nil {
		bc = broadcast.Nop{}
	}

	return &Invalidator{cache: c, bc: bc}
}

// OnWrite обрабатывает создание записи или правку её текста.
//   - area: удаляется, если точка записи не дальше радиуса запроса от его центра;
//   - inbox: удаляется у отправителя и у получателя, без учёта расстояния.
//
// Возвращает число удалённых записей кэша.
func (inv *Invalidator) OnWrite(ctx context.Context, item models.Item) int {
	n := inv.evictForItem(ctx, ReasonWrite, item.Location, item.OwnerID, item.RecipientID)
	inv.publish(ctx, itemEvent(broadcast.TypeWrite, item))

	return n
}

// OnDelete: запись исчезает из обеих выдач, поэтому правила как у OnWrite.
func (inv *Invalidator) OnDelete(ctx context.Context, item models.Item) int {
	n := inv.evictForItem(ctx, ReasonDelete, item.Location, item.OwnerID, item.RecipientID)
	inv.publish(ctx, itemEvent(broadcast.TypeDelete, item))

	return n
}

// OnReadStateChange удаляет «входящие» affectedUserID: флаг прочтения виден только там.
func (inv *Invalidator) OnReadStateChange(ctx context.Context, item models.Item, affectedUserID string) int {
	n := inv.evictInbox(ctx, ReasonReadState, affectedUserID)
	inv.publish(ctx, broadcast.Event{Type: broadcast.TypeReadState, UserID: affectedUserID})

	return n
}

// OnHide удаляет «входящие» affectedUserID: скрытие влияет только на них.
func (inv *Invalidator) OnHide(ctx context.Context, item models.Item, affectedUserID string) int {
	n := inv.evictInbox(ctx, ReasonHide, affectedUserID)
	inv.publish(ctx, broadcast.Event{Type: broadcast.TypeHide, UserID: affectedUserID})

	return n
}

// Apply применяет событие другого инстанса. Повторно событие не публикуется.
func (inv *Invalidator) Apply(ctx context.Context, ev broadcast.Event) int {
	switch ev.Type {
	case broadcast.TypeWrite, broadcast.TypeDelete:
		loc := models.Point{Type: models.PointType, Coordinates: [2]float64{ev.Lon, ev.Lat}}
		return inv.evictForItem(ctx, ReasonRemote, loc, ev.OwnerID, ev.RecipientID)
	case broadcast.TypeReadState, broadcast.TypeHide:
		return inv.evictInbox(ctx, ReasonRemote, ev.UserID)
	default:
		log.From(ctx).Warn("cache_unknown_event", slog.String("type", string(ev.Type)))
		return 0
	}
}

func (inv *Invalidator) evictForItem(ctx context.Context, reason string, loc models.Point, ownerID, recipientID string) int {
	lg := log.From(ctx)

	n := inv.cache.evictWhere(reason, func(e Entry) bool {
		q, err := queryOf(e)
		if err != nil {
			lg.Debug("cache_key_unparseable", slog.String("key", e.Key), slog.String("error", err.Error()))
			return true
		}

		if q.Kind == KindInbox {
			return q.RecipientID == ownerID || (recipientID != "" && q.RecipientID == recipientID)
		}

		return geo.Distance(loc, q.Center) <= q.Radius
	})

	lg.Debug("cache_invalidated", slog.String("reason", reason), slog.Int("evicted", n))

	return n
}

func (inv *Invalidator) evictInbox(ctx context.Context, reason, userID string) int {
	lg := log.From(ctx)

	n := inv.cache.evictWhere(reason, func(e Entry) bool {
		q, err := queryOf(e)
		if err != nil {
			lg.Debug("cache_key_unparseable", slog.String("key", e.Key), slog.String("error", err.Error()))
			return true
		}

		return q.Kind == KindInbox && q.RecipientID == userID
	})

	lg.Debug("cache_invalidated", slog.String("reason", reason), slog.Int("evicted", n))

	return n
}

// queryOf возвращает структурированный запрос записи, а для записей без него
// разбирает ключ. Ошибка всегда *KeyParseError.
func queryOf(e Entry) (Query, error) {
	if e.Query == nil {
		return ParseKey(e.Key)
	}

	switch e.Query.Kind {
	case KindArea, KindInbox:
		return *e.Query, nil
	default:
		return Query{}, &KeyParseError{Key: e.Key, Reason: "unknown query kind " + string(e.Query.Kind)}
	}
}

func (inv *Invalidator) publish(ctx context.Context, ev broadcast.Event) {
	if err := inv.bc.Publish(ctx, ev); err != nil {
		log.From(ctx).Warn("cache_broadcast_failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func itemEvent(t broadcast.Type, item models.Item) broadcast.Event {
	return broadcast.Event{
		Type:        t,
		Lon:         item.Location.Lon(),
		Lat:         item.Location.Lat(),
		OwnerID:     item.OwnerID,
		RecipientID: item.RecipientID,
	}
}

// IsKeyParseError сообщает, что err: ошибка разбора ключа кэша.
func IsKeyParseError(err error) bool {
	var kpe *KeyParseError
	return errors.As(err, &kpe)
}
