package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pribylovaa/placenotes/internal/geo"
	"github.com/pribylovaa/placenotes/internal/models"
	"github.com/pribylovaa/placenotes/internal/storage"
)

// memStore: хранилище в памяти с той же семантикой выдачи, что у MongoDB:
// область по возрастанию расстояния, «входящие» сначала новые,
// скрытое получателем в его «входящие» не попадает.
type memStore struct {
	mu    sync.Mutex
	seq   int
	now   time.Time
	items map[string]models.Item
	users map[string]string

	nearCalls  int
	inboxCalls int
}

var _ storage.Storage = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		items: map[string]models.Item{},
		users: map[string]string{},
	}
}

func (m *memStore) calls() (near, inbox int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nearCalls, m.inboxCalls
}

func (m *memStore) CreateItem(_ context.Context, it models.Item) (*models.Item, error) {
	if err := it.Location.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.now = m.now.Add(time.Second)
	it.ID = strconv.Itoa(m.seq)
	it.CreatedAt, it.UpdatedAt = m.now, m.now
	it.Read, it.Hidden = false, false
	m.items[it.ID] = it

	return &it, nil
}

func (m *memStore) ItemByID(_ context.Context, id string) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &it, nil
}

func (m *memStore) update(id string, f func(it *models.Item)) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	f(&it)
	m.now = m.now.Add(time.Second)
	it.UpdatedAt = m.now
	m.items[id] = it

	return &it, nil
}

func (m *memStore) UpdateBody(_ context.Context, id, body string) (*models.Item, error) {
	return m.update(id, func(it *models.Item) { it.Body = body })
}

func (m *memStore) SetRead(_ context.Context, id string, read bool) (*models.Item, error) {
	return m.update(id, func(it *models.Item) { it.Read = read })
}

func (m *memStore) SetHidden(_ context.Context, id string, hidden bool) (*models.Item, error) {
	return m.update(id, func(it *models.Item) { it.Hidden = hidden })
}

func (m *memStore) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.items, id)

	return nil
}

func (m *memStore) FindNear(_ context.Context, center models.Point, radius float64, page, pageSize int) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nearCalls++

	var views []models.ItemView
	for _, it := range m.items {
		d := geo.Distance(center, it.Location)
		if d <= radius {
			views = append(views, models.ItemView{Item: it, Distance: d, OwnerName: m.users[it.OwnerID]})
		}
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].Distance != views[j].Distance {
			return views[i].Distance < views[j].Distance
		}
		return views[i].ID < views[j].ID
	})

	return paginate(views, page, pageSize), nil
}

func (m *memStore) FindInbox(_ context.Context, userID string, page, pageSize int) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inboxCalls++

	var views []models.ItemView
	for _, it := range m.items {
		owner := it.OwnerID == userID
		recipient := it.RecipientID == userID && !it.Hidden
		if owner || recipient {
			views = append(views, models.ItemView{Item: it, OwnerName: m.users[it.OwnerID]})
		}
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	return paginate(views, page, pageSize), nil
}

func (m *memStore) Close(context.Context) error { return nil }

func paginate(views []models.ItemView, page, pageSize int) *models.Page {
	total := len(views)
	items := []models.ItemView{}

	from := (page - 1) * pageSize
	if from < total {
		to := min(from+pageSize, total)
		items = append(items, views[from:to]...)
	}

	return &models.Page{Items: items, Pagination: models.NewPagination(page, pageSize, total)}
}
