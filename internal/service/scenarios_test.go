package service

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/placenotes/internal/geo"
	"github.com/pribylovaa/placenotes/internal/models"
)

// Сквозные сценарии: сервис + кэш + инвалидатор над хранилищем в памяти.

const metersPerDegree = 111194.93

var downtownLA = NearInput{Longitude: -118.243683, Latitude: 34.052235, Radius: 1000, Page: 1}

// offset сдвигает точку на north/east метров (приближение для малых расстояний).
func offset(lon, lat, north, east float64) (float64, float64) {
	return lon + east/(metersPerDegree*math.Cos(lat*math.Pi/180)), lat + north/metersPerDegree
}

func createNote(t *testing.T, s *Service, owner string, lon, lat float64) *models.Item {
	t.Helper()

	it, err := s.CreateItem(context.Background(), CreateItemInput{
		OwnerID: owner, Kind: models.KindNote, Body: "note", Longitude: lon, Latitude: lat,
	})
	require.NoError(t, err)

	return it
}

func createMessage(t *testing.T, s *Service, owner, recipient string) *models.Item {
	t.Helper()

	it, err := s.CreateItem(context.Background(), CreateItemInput{
		OwnerID: owner, RecipientID: recipient, Kind: models.KindMessage, Body: "hello",
		Longitude: downtownLA.Longitude, Latitude: downtownLA.Latitude,
	})
	require.NoError(t, err)

	return it
}

// a. Запись ровно в центре находится с расстоянием 0 и именем автора.
func TestScenario_ItemAtCenter(t *testing.T) {
	st := newMemStore()
	st.users["alice"] = "Alice"
	s, _, _ := newTestService(t, st)

	it := createNote(t, s, "alice", downtownLA.Longitude, downtownLA.Latitude)

	got, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, it.ID, got.Items[0].ID)
	require.Zero(t, got.Items[0].Distance)
	require.Equal(t, "Alice", got.Items[0].OwnerName)
	require.Equal(t, models.Pagination{CurrentPage: 1, TotalPages: 1, TotalMessages: 1}, got.Pagination)
}

// b. Запись в 1500 м за пределами радиуса 1000 м: пустая выдача без ошибки.
func TestScenario_ItemOutsideRadius(t *testing.T) {
	st := newMemStore()
	s, _, _ := newTestService(t, st)

	lon, lat := offset(downtownLA.Longitude, downtownLA.Latitude, 1500, 0)
	createNote(t, s, "alice", lon, lat)

	got, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.NotNil(t, got.Items)
	require.Empty(t, got.Items)
	require.Equal(t, models.Pagination{CurrentPage: 1}, got.Pagination)
}

// c. Новая запись внутри закэшированной области вытесняет ответ.
func TestScenario_WriteEvictsArea(t *testing.T) {
	st := newMemStore()
	s, c, _ := newTestService(t, st)

	createNote(t, s, "alice", -118.24, 34.05)

	first, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	_, err = s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	near, _ := st.calls()
	require.Equal(t, 1, near)
	require.Equal(t, 1, c.Len())

	createNote(t, s, "bob", -118.24, 34.05)
	require.Zero(t, c.Len())

	second, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	near, _ = st.calls()
	require.Equal(t, 2, near)
	require.Len(t, second.Items, 2)
	require.Equal(t, 2, second.Pagination.TotalMessages)
}

// Запись вне области ответ не вытесняет.
func TestScenario_WriteOutsideAreaKeepsEntry(t *testing.T) {
	st := newMemStore()
	s, c, _ := newTestService(t, st)

	_, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)

	lon, lat := offset(downtownLA.Longitude, downtownLA.Latitude, 0, 1200)
	createNote(t, s, "alice", lon, lat)
	require.Equal(t, 1, c.Len())

	_, err = s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	near, _ := st.calls()
	require.Equal(t, 1, near)
}

// d. 25 записей в радиусе 5000 м: 20 на первой странице и 5 на второй.
func TestScenario_Pagination(t *testing.T) {
	st := newMemStore()
	s, _, _ := newTestService(t, st)

	rnd := rand.New(rand.NewSource(42))
	for range 25 {
		r := 4900 * math.Sqrt(rnd.Float64())
		a := rnd.Float64() * 2 * math.Pi
		lon, lat := offset(downtownLA.Longitude, downtownLA.Latitude, r*math.Cos(a), r*math.Sin(a))
		createNote(t, s, "alice", lon, lat)
	}

	in := downtownLA
	in.Radius = 5000

	p1, err := s.FindNear(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, p1.Items, 20)
	require.Equal(t, models.Pagination{CurrentPage: 1, TotalPages: 2, TotalMessages: 25}, p1.Pagination)

	in.Page = 2
	p2, err := s.FindNear(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, p2.Items, 5)
	require.Equal(t, 2, p2.Pagination.CurrentPage)

	seen := map[string]bool{}
	for _, v := range append(p1.Items, p2.Items...) {
		require.False(t, seen[v.ID], "duplicate %s", v.ID)
		seen[v.ID] = true
	}
	require.Len(t, seen, 25)

	for i := 1; i < len(p1.Items); i++ {
		require.LessOrEqual(t, p1.Items[i-1].Distance, p1.Items[i].Distance)
	}
	require.LessOrEqual(t, p1.Items[len(p1.Items)-1].Distance, p2.Items[0].Distance)

	in.Page = 3
	p3, err := s.FindNear(context.Background(), in)
	require.NoError(t, err)
	require.Empty(t, p3.Items)
	require.Equal(t, models.Pagination{CurrentPage: 3, TotalPages: 2, TotalMessages: 25}, p3.Pagination)
}

// e. Получатель отмечает сообщение прочитанным: «входящие» обеих сторон перечитываются.
func TestScenario_ReadStateEvictsInbox(t *testing.T) {
	st := newMemStore()
	s, c, _ := newTestService(t, st)

	msg := createMessage(t, s, "sender", "recipient")

	inbox := InboxInput{UserID: "recipient", Page: 1}
	first, err := s.FindInbox(context.Background(), inbox)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.False(t, first.Items[0].Read)

	_, err = s.FindInbox(context.Background(), InboxInput{UserID: "sender", Page: 1})
	require.NoError(t, err)

	_, err = s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	_, err = s.MarkRead(context.Background(), MarkReadInput{ItemID: msg.ID, CallerID: "recipient", Read: true})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	second, err := s.FindInbox(context.Background(), inbox)
	require.NoError(t, err)
	_, inboxCalls := st.calls()
	require.Equal(t, 3, inboxCalls)
	require.True(t, second.Items[0].Read)
}

// Скрытое сообщение пропадает из «входящих» получателя, но остаётся у отправителя.
func TestScenario_HideEvictsInbox(t *testing.T) {
	st := newMemStore()
	s, _, _ := newTestService(t, st)

	msg := createMessage(t, s, "sender", "recipient")

	got, err := s.FindInbox(context.Background(), InboxInput{UserID: "recipient", Page: 1})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)

	_, err = s.SetHidden(context.Background(), SetHiddenInput{ItemID: msg.ID, CallerID: "recipient", Hidden: true})
	require.NoError(t, err)

	got, err = s.FindInbox(context.Background(), InboxInput{UserID: "recipient", Page: 1})
	require.NoError(t, err)
	require.Empty(t, got.Items)

	got, err = s.FindInbox(context.Background(), InboxInput{UserID: "sender", Page: 1})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
}

// Ответ живёт в кэше не дольше TTL.
func TestScenario_TTLExpiry(t *testing.T) {
	st := newMemStore()
	s, c, sched := newTestService(t, st)

	_, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)

	sched.Advance(5*time.Minute - time.Nanosecond)
	require.Equal(t, 1, c.Len())

	sched.Advance(time.Nanosecond)
	require.Zero(t, c.Len())

	_, err = s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	near, _ := st.calls()
	require.Equal(t, 2, near)
}

// Удаление записи вытесняет область и «входящие».
func TestScenario_DeleteEvicts(t *testing.T) {
	st := newMemStore()
	s, c, _ := newTestService(t, st)

	msg := createMessage(t, s, "sender", "recipient")

	_, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	_, err = s.FindInbox(context.Background(), InboxInput{UserID: "recipient", Page: 1})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	require.NoError(t, s.DeleteItem(context.Background(), msg.ID, "sender"))
	require.Zero(t, c.Len())

	got, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Empty(t, got.Items)
}

// Для любой страницы: len(Items) <= PageSize и TotalPages = ceil(TotalMessages/PageSize).
func TestProperty_PaginationConsistency(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	for _, n := range []int{0, 1, 19, 20, 21, 40, 47} {
		st := newMemStore()
		s, _, _ := newTestService(t, st)

		for range n {
			r := 2900 * math.Sqrt(rnd.Float64())
			a := rnd.Float64() * 2 * math.Pi
			lon, lat := offset(downtownLA.Longitude, downtownLA.Latitude, r*math.Cos(a), r*math.Sin(a))
			createNote(t, s, "alice", lon, lat)
		}

		for page := 1; page <= 4; page++ {
			got, err := s.FindNear(context.Background(), NearInput{
				Longitude: downtownLA.Longitude, Latitude: downtownLA.Latitude, Radius: 3000, Page: page,
			})
			require.NoError(t, err)
			require.LessOrEqual(t, len(got.Items), testQueryConfig.PageSize)
			require.Equal(t, n, got.Pagination.TotalMessages)
			require.Equal(t, int(math.Ceil(float64(n)/float64(testQueryConfig.PageSize))), got.Pagination.TotalPages)
			require.Equal(t, page, got.Pagination.CurrentPage)
		}
	}
}

// Пустая область на любой странице даёт пустую выдачу, а не ошибку.
func TestProperty_EmptyResult(t *testing.T) {
	st := newMemStore()
	s, _, _ := newTestService(t, st)

	createNote(t, s, "alice", 0, 0)

	for _, page := range []int{1, 2, 9} {
		got, err := s.FindNear(context.Background(), NearInput{Longitude: 10, Latitude: 10, Radius: 1000, Page: page})
		require.NoError(t, err)
		require.NotNil(t, got.Items)
		require.Empty(t, got.Items)
		require.Equal(t, models.Pagination{CurrentPage: page}, got.Pagination)
	}

	got, err := s.FindInbox(context.Background(), InboxInput{UserID: "nobody", Page: 1})
	require.NoError(t, err)
	require.Empty(t, got.Items)
	require.Equal(t, models.Pagination{CurrentPage: 1}, got.Pagination)
}

// gatedStore задерживает FindNear, пока тест не разрешит продолжить.
type gatedStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) FindNear(ctx context.Context, center models.Point, radius float64, page, pageSize int) (*models.Page, error) {
	g.entered <- struct{}{}
	<-g.release

	return g.memStore.FindNear(ctx, center, radius, page, pageSize)
}

// Ответ, загруженный до инвалидации, не попадает в кэш после неё.
func TestScenario_StaleLoadNotCached(t *testing.T) {
	st := &gatedStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
	s, c, _ := newTestService(t, st)

	done := make(chan error, 1)
	go func() {
		_, err := s.FindNear(context.Background(), downtownLA)
		done <- err
	}()

	<-st.entered
	createNote(t, s, "alice", downtownLA.Longitude, downtownLA.Latitude)
	close(st.release)
	require.NoError(t, <-done)

	require.Zero(t, c.Len())

	go func() { <-st.entered }()
	got, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, 1, c.Len())
}

// slowFirstStore: первый FindNear снимает выдачу и ждёт release, прежде чем её вернуть.
// Остальные вызовы идут напрямую.
type slowFirstStore struct {
	*memStore
	first   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newSlowFirstStore() *slowFirstStore {
	return &slowFirstStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *slowFirstStore) FindNear(ctx context.Context, center models.Point, radius float64, page, pageSize int) (*models.Page, error) {
	if !g.first.CompareAndSwap(false, true) {
		return g.memStore.FindNear(ctx, center, radius, page, pageSize)
	}

	snap, err := g.memStore.FindNear(ctx, center, radius, page, pageSize)
	close(g.entered)
	<-g.release

	return snap, err
}

// Запрос, начатый после ответа на запись, видит запись, даже если
// загрузка того же ключа, начатая до записи, ещё не завершилась.
func TestScenario_ReadAfterWriteSkipsOlderLoad(t *testing.T) {
	st := newSlowFirstStore()
	s, c, _ := newTestService(t, st)

	type result struct {
		page *models.Page
		err  error
	}
	before := make(chan result, 1)
	go func() {
		p, err := s.FindNear(context.Background(), downtownLA)
		before <- result{p, err}
	}()

	<-st.entered
	createNote(t, s, "alice", downtownLA.Longitude, downtownLA.Latitude)

	after, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)

	near, _ := st.calls()
	require.Equal(t, 2, near)

	close(st.release)
	old := <-before
	require.NoError(t, old.err)
	require.Empty(t, old.page.Items)

	cached, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Len(t, cached.Items, 1)
	require.Equal(t, 1, c.Len())

	near, _ = st.calls()
	require.Equal(t, 2, near)
}

// Отмена контекста первого вызывающего не роняет остальных, ждущих ту же загрузку.
func TestScenario_LeaderCancelDoesNotFailFollowers(t *testing.T) {
	st := newSlowFirstStore()
	s, _, _ := newTestService(t, st)
	createNote(t, s, "alice", downtownLA.Longitude, downtownLA.Latitude)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		_, err := s.FindNear(leaderCtx, downtownLA)
		leader <- err
	}()

	<-st.entered

	type result struct {
		page *models.Page
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		p, err := s.FindNear(context.Background(), downtownLA)
		follower <- result{p, err}
	}()

	cancel()
	err := <-leader
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrStoreUnavailable)

	close(st.release)
	got := <-follower
	require.NoError(t, got.err)
	require.Len(t, got.page.Items, 1)
}

// Расстояние в выдаче совпадает с geo.Distance.
func TestScenario_DistanceMatchesHaversine(t *testing.T) {
	st := newMemStore()
	s, _, _ := newTestService(t, st)

	lon, lat := offset(downtownLA.Longitude, downtownLA.Latitude, 300, 400)
	it := createNote(t, s, "alice", lon, lat)

	got, err := s.FindNear(context.Background(), downtownLA)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)

	center, err := models.NewPoint(downtownLA.Longitude, downtownLA.Latitude)
	require.NoError(t, err)
	require.InDelta(t, geo.Distance(center, it.Location), got.Items[0].Distance, 1e-9)
	require.InDelta(t, 500, got.Items[0].Distance, 2)
}
