// geo: сферические расчёты расстояний между точками.
package geo

import (
	"math"

	"github.com/pribylovaa/placenotes/internal/models"
)

// EarthRadius: средний радиус Земли в метрах.
//
// $geoNear в MongoDB считает по сфере радиуса 6378100 м, поэтому Distance
// никогда не больше расстояния, которое видит хранилище: точка, попавшая в
// выдачу с радиусом r, всегда попадает и в Distance <= r.
const EarthRadius = 6371000.0

// Distance: расстояние по большому кругу между a и b в метрах (формула гаверсинусов).
func Distance(a, b models.Point) float64 {
	phi1 := radians(a.Lat())
	phi2 := radians(b.Lat())
	dPhi := radians(b.Lat() - a.Lat())
	dLambda := radians(b.Lon() - a.Lon())

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	// Погрешность округления может вывести h за [0, 1].
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
