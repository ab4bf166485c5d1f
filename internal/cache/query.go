package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pribylovaa/placenotes/internal/models"
)

// Kind: вид закэшированного запроса.
type Kind string

const (
	KindArea  Kind = "area"
	KindInbox Kind = "inbox"
)

const (
	keySep      = ","
	inboxPrefix = "list-"
)

// Query: структурированный запрос, который хранится рядом с ответом.
// Для KindArea заполнены Center и Radius, для KindInbox: RecipientID.
type Query struct {
	Kind        Kind
	Center      models.Point
	Radius      float64
	RecipientID string
	Page        int
}

// AreaQuery: поиск по области.
func AreaQuery(center models.Point, radius float64, page int) Query {
	return Query{Kind: KindArea, Center: center, Radius: radius, Page: page}
}

// InboxQuery: «входящие» пользователя.
func InboxQuery(recipientID string, page int) Query {
	return Query{Kind: KindInbox, RecipientID: recipientID, Page: page}
}

// KeyFor строит детерминированный ключ:
//   - area: "lon,lat,radius,page";
//   - inbox: "list-{recipientID}-{page}".
//
// Числа форматируются кратчайшей десятичной записью, -0 приводится к 0,
// поэтому структурно равные запросы всегда дают один ключ.
// Ключи области начинаются с цифры или минуса, ключи inbox: с "list-", и не пересекаются.
func KeyFor(q Query) string {
	if q.Kind == KindInbox {
		return inboxPrefix + q.RecipientID + "-" + strconv.Itoa(q.Page)
	}

	return strings.Join([]string{
		formatFloat(q.Center.Lon()),
		formatFloat(q.Center.Lat()),
		formatFloat(q.Radius),
		strconv.Itoa(q.Page),
	}, keySep)
}

func formatFloat(f float64) string {
	if f == 0 {
		f = 0
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// KeyParseError: ключ не удалось разобрать обратно в запрос.
type KeyParseError struct {
	Key    string
	Reason string
}

func (e *KeyParseError) Error() string {
	return fmt.Sprintf("cache: cannot parse key %q: %s", e.Key, e.Reason)
}

// ParseKey разбирает ключ, построенный KeyFor.
// При неудаче возвращает *KeyParseError.
func ParseKey(key string) (Query, error) {
	fail := func(reason string) (Query, error) {
		return Query{}, &KeyParseError{Key: key, Reason: reason}
	}

	if rest, ok := strings.CutPrefix(key, inboxPrefix); ok {
		i := strings.LastIndex(rest, "-")
		if i <= 0 {
			return fail("inbox key without recipient or page")
		}

		page, err := strconv.Atoi(rest[i+1:])
		if err != nil || page < 1 {
			return fail("bad page")
		}

		return InboxQuery(rest[:i], page), nil
	}

	parts := strings.Split(key, keySep)
	if len(parts) != 4 {
		return fail(fmt.Sprintf("want 4 fields, got %d", len(parts)))
	}

	var nums [3]float64
	for i := range nums {
		f, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return fail(fmt.Sprintf("field %d is not a number", i+1))
		}
		nums[i] = f
	}

	center, err := models.NewPoint(nums[0], nums[1])
	if err != nil {
		return fail(err.Error())
	}

	if !(nums[2] > 0) {
		return fail("radius must be positive")
	}

	page, err := strconv.Atoi(parts[3])
	if err != nil || page < 1 {
		return fail("bad page")
	}

	return AreaQuery(center, nums[2], page), nil
}
