package mongo

import (
	"fmt"
	"time"

	"github.com/pribylovaa/placenotes/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type pointDoc struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

// itemDoc: документ коллекции items в том виде, в каком его пишет сервис.
type itemDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Kind        string             `bson:"kind"`
	OwnerID     any                `bson:"owner_id"`
	RecipientID any                `bson:"recipient_id,omitempty"`
	Body        string             `bson:"body"`
	Location    pointDoc           `bson:"location"`
	Radius      float64            `bson:"radius"`
	Read        bool               `bson:"read"`
	Hidden      bool               `bson:"hidden"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

// itemRow: документ при чтении. Ссылки на пользователей исторически
// встречаются и как ObjectID, и как строка, поэтому читаются как RawValue.
type itemRow struct {
	ID          primitive.ObjectID `bson:"_id"`
	Kind        string             `bson:"kind"`
	OwnerID     bson.RawValue      `bson:"owner_id"`
	RecipientID bson.RawValue      `bson:"recipient_id"`
	Body        string             `bson:"body"`
	Location    pointDoc           `bson:"location"`
	Radius      float64            `bson:"radius"`
	Read        bool               `bson:"read"`
	Hidden      bool               `bson:"hidden"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
	Distance    float64            `bson:"distance"`
	OwnerName   string             `bson:"owner_name"`
}

// ref: представление идентификатора пользователя для записи:
// ObjectID, если строка им является, иначе сама строка.
func ref(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}

	return id
}

// refVariants: все представления одного идентификатора для $in.
func refVariants(id string) bson.A {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.A{oid, id}
	}

	return bson.A{id}
}

func refString(v bson.RawValue) string {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.String:
		return v.StringValue()
	default:
		return ""
	}
}

func toDoc(it models.Item) itemDoc {
	d := itemDoc{
		Kind:    string(it.Kind),
		OwnerID: ref(it.OwnerID),
		Body:    it.Body,
		Location: pointDoc{
			Type:        it.Location.Type,
			Coordinates: []float64{it.Location.Lon(), it.Location.Lat()},
		},
		Radius:    it.Radius,
		Read:      it.Read,
		Hidden:    it.Hidden,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
	if it.RecipientID != "" {
		d.RecipientID = ref(it.RecipientID)
	}

	return d
}

func (r itemRow) toView() (models.ItemView, error) {
	if len(r.Location.Coordinates) != 2 {
		return models.ItemView{}, fmt.Errorf("item %s: %w: %d coordinates",
			r.ID.Hex(), models.ErrInvalidPoint, len(r.Location.Coordinates))
	}

	return models.ItemView{
		Item: models.Item{
			ID:          r.ID.Hex(),
			Kind:        models.Kind(r.Kind),
			OwnerID:     refString(r.OwnerID),
			RecipientID: refString(r.RecipientID),
			Body:        r.Body,
			Location: models.Point{
				Type:        r.Location.Type,
				Coordinates: [2]float64{r.Location.Coordinates[0], r.Location.Coordinates[1]},
			},
			Radius:    r.Radius,
			Read:      r.Read,
			Hidden:    r.Hidden,
			CreatedAt: r.CreatedAt.UTC(),
			UpdatedAt: r.UpdatedAt.UTC(),
		},
		Distance:  r.Distance,
		OwnerName: r.OwnerName,
	}, nil
}

func (r itemRow) toItem() (*models.Item, error) {
	v, err := r.toView()
	if err != nil {
		return nil, err
	}

	return &v.Item, nil
}
