package cache

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/placenotes/internal/models"
)

func point(t *testing.T, lon, lat float64) models.Point {
	t.Helper()
	p, err := models.NewPoint(lon, lat)
	require.NoError(t, err)
	return p
}

func TestKeyFor_Format(t *testing.T) {
	t.Parallel()

	require.Equal(t, "-118.243683,34.052235,1000,1", KeyFor(AreaQuery(point(t, -118.243683, 34.052235), 1000, 1)))
	require.Equal(t, "0,0,0.5,3", KeyFor(AreaQuery(point(t, 0, 0), 0.5, 3)))
	require.Equal(t, "list-64f0c0ffee-2", KeyFor(InboxQuery("64f0c0ffee", 2)))
}

func TestKeyFor_NegativeZeroIsZero(t *testing.T) {
	t.Parallel()

	negZero := point(t, math.Copysign(0, -1), math.Copysign(0, -1))

	require.Equal(t, KeyFor(AreaQuery(point(t, 0, 0), 10, 1)), KeyFor(AreaQuery(negZero, 10, 1)))
}

// Структурно равные, но разные экземпляры запросов дают один ключ.
func TestKeyFor_Deterministic(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		lon := rnd.Float64()*360 - 180
		lat := rnd.Float64()*180 - 90
		radius := rnd.Float64()*50000 + 1
		page := rnd.Intn(50) + 1

		a := AreaQuery(point(t, lon, lat), radius, page)
		b := AreaQuery(point(t, lon, lat), radius, page)
		require.Equal(t, KeyFor(a), KeyFor(b))

		back, err := ParseKey(KeyFor(a))
		require.NoError(t, err)
		require.Equal(t, a, back)
	}
}

func TestKeyFor_DistinctQueriesDistinctKeys(t *testing.T) {
	t.Parallel()

	c := point(t, -118.24, 34.05)
	keys := map[string]struct{}{}
	for _, q := range []Query{
		AreaQuery(c, 1000, 1),
		AreaQuery(c, 1000, 2),
		AreaQuery(c, 1001, 1),
		AreaQuery(point(t, -118.24, 34.051), 1000, 1),
		InboxQuery("u1", 1),
		InboxQuery("u1", 2),
		InboxQuery("u1-1", 1),
		InboxQuery("u11", 1),
	} {
		keys[KeyFor(q)] = struct{}{}
	}

	require.Len(t, keys, 8)
}

func TestParseKey_Inbox(t *testing.T) {
	t.Parallel()

	q, err := ParseKey("list-user-with-dashes-12")
	require.NoError(t, err)
	require.Equal(t, InboxQuery("user-with-dashes", 12), q)
}

func TestParseKey_Errors(t *testing.T) {
	t.Parallel()

	for _, key := range []string{
		"",
		"garbage",
		"1,2,3",
		"1,2,3,4,5",
		"a,2,3,1",
		"200,0,10,1",
		"0,95,10,1",
		"0,0,0,1",
		"0,0,-5,1",
		"0,0,10,0",
		"0,0,10,x",
		"list-",
		"list--1",
		"list-u1-0",
		"list-u1-abc",
	} {
		_, err := ParseKey(key)
		require.Error(t, err, "key %q", key)

		var kpe *KeyParseError
		require.ErrorAs(t, err, &kpe)
		require.Equal(t, key, kpe.Key)
		require.True(t, IsKeyParseError(err))
	}
}
