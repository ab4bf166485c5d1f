package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pribylovaa/placenotes/internal/models"
	"github.com/pribylovaa/placenotes/pkg/log"
)

// CreateItemInput: создание заметки или сообщения.
// Radius == nil -> models.DefaultItemRadius.
type CreateItemInput struct {
	OwnerID     string
	RecipientID string
	Kind        models.Kind
	Body        string
	Longitude   float64
	Latitude    float64
	Radius      *float64
}

// UpdateBodyInput: правка текста автором.
type UpdateBodyInput struct {
	ItemID   string
	CallerID string
	Body     string
}

// MarkReadInput: отметка о прочтении получателем.
type MarkReadInput struct {
	ItemID   string
	CallerID string
	Read     bool
}

// SetHiddenInput: скрытие/показ получателем.
type SetHiddenInput struct {
	ItemID   string
	CallerID string
	Hidden   bool
}

// CreateItem: создание записи.
//
// Валидация:
//   - OwnerID не пуст, Kind: note или message -> иначе ErrInvalidArgument;
//   - у сообщения обязателен RecipientID, у заметки его быть не должно -> ErrInvalidArgument;
//   - Body после TrimSpace не пуст и не длиннее MaxBodyLen символов -> ErrInvalidArgument;
//   - координаты валидны -> иначе ErrInvalidLocation;
//   - Radius конечный и >= 0 -> иначе ErrInvalidRadius.
//
// После сохранения синхронно инвалидирует кэш (OnWrite).
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (*models.Item, error) {
	const op = "service/items/CreateItem"

	lg := log.From(ctx).With("op", op, "owner_id", in.OwnerID, "kind", string(in.Kind))

	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.RecipientID = strings.TrimSpace(in.RecipientID)
	if in.OwnerID == "" {
		lg.Warn("invalid argument: empty owner_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	switch in.Kind {
	case models.KindMessage:
		if in.RecipientID == "" {
			lg.Warn("invalid argument: message without recipient")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
		}
	case models.KindNote:
		if in.RecipientID != "" {
			lg.Warn("invalid argument: note with recipient")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
		}
	default:
		lg.Warn("invalid argument: unknown kind")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	body, err := normalizeBody(in.Body)
	if err != nil {
		lg.Warn("invalid argument: body", "error", err)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	loc, err := models.NewPoint(in.Longitude, in.Latitude)
	if err != nil {
		lg.Warn("invalid location", "error", err)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidLocation)
	}

	radius := models.DefaultItemRadius
	if in.Radius != nil {
		radius = *in.Radius
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		lg.Warn("invalid radius")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRadius)
	}

	item, err := s.storage.CreateItem(ctx, models.Item{
		Kind:        in.Kind,
		OwnerID:     in.OwnerID,
		RecipientID: in.RecipientID,
		Body:        body,
		Location:    loc,
		Radius:      radius,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidPoint) {
			lg.Warn("invalid location", "error", err)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidLocation)
		}
		lg.Error("create item failed", "error", err)
		return nil, fmt.Errorf("%s: %w", op, storeErr(err))
	}

	evicted := s.inv.OnWrite(ctx, *item)
	lg.Info("item created", "item_id", item.ID, "evicted", evicted)

	return item, nil
}

// UpdateBody: правка текста. Разрешена только автору (иначе ErrForbidden).
// После сохранения синхронно инвалидирует кэш (OnWrite).
func (s *Service) UpdateBody(ctx context.Context, in UpdateBodyInput) (*models.Item, error) {
	const op = "service/items/UpdateBody"

	lg := log.From(ctx).With("op", op, "item_id", in.ItemID, "caller_id", in.CallerID)

	body, err := normalizeBody(in.Body)
	if err != nil {
		lg.Warn("invalid argument: body", "error", err)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	cur, err := s.load(ctx, op, in.ItemID)
	if err != nil {
		return nil, err
	}

	if cur.OwnerID != in.CallerID {
		lg.Warn("forbidden: caller is not the owner")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	item, err := s.storage.UpdateBody(ctx, cur.ID, body)
	if err != nil {
		lg.Error("update body failed", "error", err)
		return nil, fmt.Errorf("%s: %w", op, storeErr(err))
	}

	s.inv.OnWrite(ctx, *item)

	return item, nil
}

// MarkRead: смена флага прочтения. Разрешена только получателю сообщения (иначе ErrForbidden).
// Флаг виден во «входящих» обеих сторон, поэтому инвалидируются обе.
func (s *Service) MarkRead(ctx context.Context, in MarkReadInput) (*models.Item, error) {
	const op = "service/items/MarkRead"

	lg := log.From(ctx).With("op", op, "item_id", in.ItemID, "caller_id", in.CallerID, "read", in.Read)

	cur, err := s.load(ctx, op, in.ItemID)
	if err != nil {
		return nil, err
	}

	if cur.RecipientID == "" || cur.RecipientID != in.CallerID {
		lg.Warn("forbidden: caller is not the recipient")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	item, err := s.storage.SetRead(ctx, cur.ID, in.Read)
	if err != nil {
		lg.Error("set read failed", "error", err)
		return nil, fmt.Errorf("%s: %w", op, storeErr(err))
	}

	for _, uid := range parties(*item) {
		s.inv.OnReadStateChange(ctx, *item, uid)
	}

	return item, nil
}

// SetHidden: скрытие записи из «входящих». Разрешено только получателю (иначе ErrForbidden).
func (s *Service) SetHidden(ctx context.Context, in SetHiddenInput) (*models.Item, error) {
	const op = "service/items/SetHidden"

	lg := log.From(ctx).With("op", op, "item_id", in.ItemID, "caller_id", in.CallerID, "hidden", in.Hidden)

	cur, err := s.load(ctx, op, in.ItemID)
	if err != nil {
		return nil, err
	}

	if cur.RecipientID == "" || cur.RecipientID != in.CallerID {
		lg.Warn("forbidden: caller is not the recipient")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	item, err := s.storage.SetHidden(ctx, cur.ID, in.Hidden)
	if err != nil {
		lg.Error("set hidden failed", "error", err)
		return nil, fmt.Errorf("%s: %w", op, storeErr(err))
	}

	for _, uid := range parties(*item) {
		s.inv.OnHide(ctx, *item, uid)
	}

	return item, nil
}

// DeleteItem: удаление автором или получателем (иначе ErrForbidden).
// После удаления синхронно инвалидирует кэш (OnDelete).
func (s *Service) DeleteItem(ctx context.Context, itemID, callerID string) error {
	const op = "service/items/DeleteItem"

	lg := log.From(ctx).With("op", op, "item_id", itemID, "caller_id", callerID)

	cur, err := s.load(ctx, op, itemID)
	if err != nil {
		return err
	}

	if callerID == "" || (cur.OwnerID != callerID && cur.RecipientID != callerID) {
		lg.Warn("forbidden: caller is neither owner nor recipient")
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.storage.DeleteItem(ctx, cur.ID); err != nil {
		lg.Error("delete item failed", "error", err)
		return fmt.Errorf("%s: %w", op, storeErr(err))
	}

	s.inv.OnDelete(ctx, *cur)

	return nil
}

// load читает запись для проверки прав.
func (s *Service) load(ctx context.Context, op, id string) (*models.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		log.From(ctx).Warn("invalid argument: empty item_id", "op", op)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	item, err := s.storage.ItemByID(ctx, id)
	if err != nil {
		mapped := storeErr(err)
		if mapped == ErrStoreUnavailable {
			log.From(ctx).Error("load item failed", "op", op, "item_id", id, "error", err)
		}
		return nil, fmt.Errorf("%s: %w", op, mapped)
	}

	return item, nil
}

func normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", fmt.Errorf("empty body")
	}

	if utf8.RuneCountInString(body) > MaxBodyLen {
		return "", fmt.Errorf("body longer than %d characters", MaxBodyLen)
	}

	return body, nil
}

// parties: отправитель и получатель записи без повторов.
func parties(item models.Item) []string {
	if item.RecipientID == "" || item.RecipientID == item.OwnerID {
		return []string{item.OwnerID}
	}

	return []string{item.RecipientID, item.OwnerID}
}
