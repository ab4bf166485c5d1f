package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/placenotes/internal/models"
	"github.com/pribylovaa/placenotes/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func parseID(op, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s: %w", op, storage.ErrInvalidID)
	}

	return oid, nil
}

// CreateItem сохраняет запись; точка проверяется повторно, чтобы битая геометрия не попала в индекс.
func (m *Mongo) CreateItem(ctx context.Context, item models.Item) (*models.Item, error) {
	const op = "storage/mongo/CreateItem"

	if err := item.Location.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := toMS(time.Now())
	item.CreatedAt, item.UpdatedAt = now, now
	item.Read, item.Hidden = false, false

	res, err := m.items.InsertOne(ctx, toDoc(item))
	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected inserted id %T", op, res.InsertedID)
	}
	item.ID = oid.Hex()

	return &item, nil
}

// ItemByID возвращает запись по идентификатору.
func (m *Mongo) ItemByID(ctx context.Context, id string) (*models.Item, error) {
	const op = "storage/mongo/ItemByID"

	oid, err := parseID(op, id)
	if err != nil {
		return nil, err
	}

	var row itemRow
	if err := m.items.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&row); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: find: %w", op, err)
	}

	it, err := row.toItem()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return it, nil
}

// UpdateBody заменяет текст записи.
func (m *Mongo) UpdateBody(ctx context.Context, id, body string) (*models.Item, error) {
	return m.update(ctx, "storage/mongo/UpdateBody", id, bson.D{{Key: "body", Value: body}})
}

// SetRead выставляет флаг прочтения.
func (m *Mongo) SetRead(ctx context.Context, id string, read bool) (*models.Item, error) {
	return m.update(ctx, "storage/mongo/SetRead", id, bson.D{{Key: "read", Value: read}})
}

// SetHidden выставляет флаг скрытия.
func (m *Mongo) SetHidden(ctx context.Context, id string, hidden bool) (*models.Item, error) {
	return m.update(ctx, "storage/mongo/SetHidden", id, bson.D{{Key: "hidden", Value: hidden}})
}

// update применяет $set к одной записи и возвращает её состояние после обновления.
func (m *Mongo) update(ctx context.Context, op, id string, set bson.D) (*models.Item, error) {
	oid, err := parseID(op, id)
	if err != nil {
		return nil, err
	}

	set = append(set, bson.E{Key: "updated_at", Value: toMS(time.Now())})
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var row itemRow
	err = m.items.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&row)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: update: %w", op, err)
	}

	it, err := row.toItem()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return it, nil
}

// DeleteItem удаляет запись.
func (m *Mongo) DeleteItem(ctx context.Context, id string) error {
	const op = "storage/mongo/DeleteItem"

	oid, err := parseID(op, id)
	if err != nil {
		return err
	}

	res, err := m.items.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("%s: delete: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
