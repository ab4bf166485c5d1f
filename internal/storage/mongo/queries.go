package mongo

import (
	"context"
	"fmt"

	"github.com/pribylovaa/placenotes/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

// facetResult: единственный документ, который возвращает стадия $facet:
// страница записей и общий счётчик, посчитанные в одном снимке.
type facetResult struct {
	Items []itemRow `bson:"items"`
	Total []struct {
		N int `bson:"n"`
	} `bson:"total"`
}

// FindNear ищет записи в радиусе radius метров от center.
// $geoNear считает сферическое расстояние и отбрасывает всё дальше radius,
// $facet отдаёт страницу и общий счётчик за один проход.
func (m *Mongo) FindNear(ctx context.Context, center models.Point, radius float64, page, pageSize int) (*models.Page, error) {
	const op = "storage/mongo/FindNear"

	pipeline := mongodriver.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: models.PointType},
				{Key: "coordinates", Value: bson.A{center.Lon(), center.Lat()}},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: radius},
			{Key: "spherical", Value: true},
			{Key: "key", Value: "location"},
		}}},
		// $geoNear уже упорядочивает по расстоянию; _id фиксирует порядок при равных расстояниях.
		{{Key: "$sort", Value: bson.D{{Key: "distance", Value: 1}, {Key: "_id", Value: 1}}}},
		facetStage(page, pageSize),
	}

	return m.aggregatePage(ctx, op, pipeline, page, pageSize)
}

// FindInbox возвращает записи, где userID: отправитель или получатель.
// Ссылки сравниваются и как ObjectID, и как строка.
func (m *Mongo) FindInbox(ctx context.Context, userID string, page, pageSize int) (*models.Page, error) {
	const op = "storage/mongo/FindInbox"

	ids := refVariants(userID)
	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "owner_id", Value: bson.D{{Key: "$in", Value: ids}}}},
			bson.D{
				{Key: "recipient_id", Value: bson.D{{Key: "$in", Value: ids}}},
				{Key: "hidden", Value: bson.D{{Key: "$ne", Value: true}}},
			},
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		facetStage(page, pageSize),
	}

	return m.aggregatePage(ctx, op, pipeline, page, pageSize)
}

// facetStage строит общую хвостовую стадию (skip/limit, имя автора из users и $count).
func facetStage(page, pageSize int) bson.D {
	return bson.D{{Key: "$facet", Value: bson.D{
		{Key: "items", Value: bson.A{
			bson.D{{Key: "$skip", Value: int64((page - 1) * pageSize)}},
			bson.D{{Key: "$limit", Value: int64(pageSize)}},
			bson.D{{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: usersCollection},
				{Key: "localField", Value: "owner_id"},
				{Key: "foreignField", Value: "_id"},
				{Key: "as", Value: "owner"},
			}}},
			bson.D{{Key: "$addFields", Value: bson.D{
				{Key: "owner_name", Value: bson.D{{Key: "$ifNull", Value: bson.A{
					bson.D{{Key: "$arrayElemAt", Value: bson.A{"$owner.username", 0}}},
					"",
				}}}},
			}}},
			bson.D{{Key: "$project", Value: bson.D{{Key: "owner", Value: 0}}}},
		}},
		{Key: "total", Value: bson.A{
			bson.D{{Key: "$count", Value: "n"}},
		}},
	}}}
}

func (m *Mongo) aggregatePage(ctx context.Context, op string, pipeline mongodriver.Pipeline, page, pageSize int) (*models.Page, error) {
	cur, err := m.items.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: aggregate: %w", op, err)
	}
	defer cur.Close(ctx)

	var res []facetResult
	if err := cur.All(ctx, &res); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	out := &models.Page{Items: []models.ItemView{}}
	total := 0
	if len(res) > 0 {
		if len(res[0].Total) > 0 {
			total = res[0].Total[0].N
		}

		for _, row := range res[0].Items {
			v, err := row.toView()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			out.Items = append(out.Items, v)
		}
	}
	out.Pagination = models.NewPagination(page, pageSize, total)

	return out, nil
}
