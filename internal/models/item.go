// Package models содержит доменные сущности placenotes-сервиса.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind: тип размещённой записи.
type Kind string

const (
	KindNote    Kind = "note"
	KindMessage Kind = "message"
)

// DefaultItemRadius: радиус видимости записи по умолчанию, в метрах.
const DefaultItemRadius = 1000.0

// PointType: значение поля type у GeoJSON-точки.
const PointType = "Point"

// ErrInvalidPoint: координаты не образуют корректную точку.
var ErrInvalidPoint = errors.New("invalid point")

// Point: GeoJSON-точка. Coordinates хранятся в порядке (долгота, широта).
type Point struct {
	Type        string
	Coordinates [2]float64
}

// NewPoint собирает точку из долготы и широты и проверяет диапазоны.
func NewPoint(lon, lat float64) (Point, error) {
	p := Point{Type: PointType, Coordinates: [2]float64{lon, lat}}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}

	return p, nil
}

// Lon: долгота в градусах.
func (p Point) Lon() float64 { return p.Coordinates[0] }

// Lat: широта в градусах.
func (p Point) Lat() float64 { return p.Coordinates[1] }

// Validate отклоняет точку с неверным типом, нечисловыми или выходящими за диапазон координатами.
// Нулевое значение Point{} невалидно: точка никогда не дополняется нулями молча.
func (p Point) Validate() error {
	if p.Type != PointType {
		return fmt.Errorf("%w: type %q", ErrInvalidPoint, p.Type)
	}

	lon, lat := p.Coordinates[0], p.Coordinates[1]
	if !finite(lon) || !finite(lat) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidPoint)
	}

	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v out of [-180, 180]", ErrInvalidPoint, lon)
	}

	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of [-90, 90]", ErrInvalidPoint, lat)
	}

	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Item: заметка или сообщение, привязанное к точке на карте.
// Важно:
//   - ID: ObjectID MongoDB в hex-виде;
//   - OwnerID: автор (отправитель), RecipientID: получатель, пуст у заметок;
//   - Radius: радиус видимости в метрах (>= 0);
//   - Read/Hidden меняет только получатель, Body: только автор.
type Item struct {
	ID          string
	Kind        Kind
	OwnerID     string
	RecipientID string
	Body        string
	Location    Point
	Radius      float64
	Read        bool
	Hidden      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemView: запись в выдаче с расстоянием до центра поиска и именем автора.
// Distance заполняется только для поиска по области.
type ItemView struct {
	Item
	Distance  float64
	OwnerName string
}

// User: минимальные поля пользователя для отображения автора.
type User struct {
	ID       string
	Username string
}
