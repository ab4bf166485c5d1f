// cache: кэш ответов на запросы поиска по области и «входящих».
//
// Кэш создаётся явно и передаётся в сервис; глобального состояния нет.
// Каждая запись хранит ответ вместе со структурированным запросом (Query),
// по которому инвалидатор решает, затронула ли её запись в хранилище.
// Срок жизни обеспечивается таймером Scheduler: Get свежесть не проверяет.
package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pribylovaa/placenotes/internal/models"
)

// Recorder принимает метрики кэша. metrics.Collector реализует его.
type Recorder interface {
	CacheHit(kind string)
	CacheMiss(kind string)
	CacheEvicted(reason string, n int)
	CacheSize(n int)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string) {}
func (nopRecorder) CacheMiss(string) {}
func (nopRecorder) CacheEvicted(string, int) {}
func (nopRecorder) CacheSize(int) {}

// Причины вытеснения для метрик.
const (
	ReasonTTL       = "ttl"
	ReasonCapacity  = "capacity"
	ReasonWrite     = "write"
	ReasonReadState = "read_state"
	ReasonHide      = "hide"
	ReasonDelete    = "delete"
	ReasonManual    = "manual"
)

// Entry: снимок записи кэша.
// Query == nil, если запись положена по голому ключу (см. Set).
type Entry struct {
	Key      string
	Query    *Query
	Page     *models.Page
	StoredAt time.Time
}

type entry struct {
	Entry
	timer Timer
}

// Options: параметры кэша.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Scheduler  Scheduler
	Metrics    Recorder
	Logger     *slog.Logger
	// Now: источник времени для StoredAt; по умолчанию time.Now.
	Now func() time.Time
}

// Cache: потокобезопасный TTL-кэш с вытеснением давно неиспользуемых записей.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *entry]
	ttl     time.Duration
	sched   Scheduler
	metrics Recorder
	log     *slog.Logger
	now     func() time.Time
	gen     uint64
}

// New создаёт кэш. TTL и MaxEntries должны быть положительными.
func New(opts Options) (*Cache, error) {
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("cache: ttl must be > 0")
	}

	if opts.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache: max entries must be > 0")
	}

	c := &Cache{
		ttl:     opts.TTL,
		sched:   opts.Scheduler,
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if c.sched == nil {
		c.sched = SystemScheduler{}
	}
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}

	l, err := lru.NewWithEvict[string, *entry](opts.MaxEntries, func(_ string, e *entry) {
		if e.timer != nil {
			e.timer.Stop()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.lru = l

	return c, nil
}

// Get возвращает закэшированную страницу. Срок жизни не проверяется:
// просроченную запись к этому моменту уже удалил таймер.
func (c *Cache) Get(key string) (*models.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}

	return e.Page, true
}

// Lookup: Get по KeyFor(q) с учётом попаданий и промахов в метриках.
func (c *Cache) Lookup(q Query) (*models.Page, bool) {
	p, ok := c.Get(KeyFor(q))
	if ok {
		c.metrics.CacheHit(string(q.Kind))
	} else {
		c.metrics.CacheMiss(string(q.Kind))
	}

	return p, ok
}

// Put сохраняет ответ на запрос q под ключом KeyFor(q) и планирует его удаление через TTL.
func (c *Cache) Put(q Query, page *models.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(KeyFor(q), &q, page)
}

// PutIfFresh сохраняет ответ, только если с момента Generation() == gen
// не было ни одной инвалидации. Возвращает true, если запись сохранена.
func (c *Cache) PutIfFresh(gen uint64, q Query, page *models.Page) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return false
	}
	c.store(KeyFor(q), &q, page)

	return true
}

// Set сохраняет ответ по голому ключу, без структурированного запроса.
// Инвалидатор восстановит запрос через ParseKey, а если ключ не разбирается,
// удалит запись при первой же записи в хранилище.
func (c *Cache) Set(key string, page *models.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(key, nil, page)
}

// store выполняется под c.mu.
func (c *Cache) store(key string, q *Query, page *models.Page) {
	if old, ok := c.lru.Peek(key); ok && old.timer != nil {
		old.timer.Stop()
	}

	e := &entry{Entry: Entry{Key: key, Query: q, Page: page, StoredAt: c.now()}}

	if c.lru.Add(key, e) {
		c.metrics.CacheEvicted(ReasonCapacity, 1)
	}

	// Таймер ставится после Add: колбэк возьмёт c.mu и увидит уже вставленную запись.
	e.timer = c.sched.AfterFunc(c.ttl, func() { c.expire(key, e) })
	if e.timer == nil {
		c.log.Debug("cache_schedule_failed", slog.String("key", key))
	}

	c.metrics.CacheSize(c.lru.Len())
}

// expire удаляет запись по TTL, только если ключ всё ещё указывает на ту же запись.
func (c *Cache) expire(key string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.lru.Peek(key)
	if !ok || cur != e {
		return
	}

	c.lru.Remove(key)
	c.metrics.CacheEvicted(ReasonTTL, 1)
	c.metrics.CacheSize(c.lru.Len())
}

// Delete удаляет запись по ключу. Возвращает true, если запись была.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := c.lru.Remove(key)
	if ok {
		c.metrics.CacheEvicted(ReasonManual, 1)
		c.metrics.CacheSize(c.lru.Len())
	}

	return ok
}

// Entries возвращает снимок всех записей, от давно использованных к недавним.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshot()
}

func (c *Cache) snapshot() []Entry {
	keys := c.lru.Keys()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := c.lru.Peek(k); ok {
			out = append(out, e.Entry)
		}
	}

	return out
}

// Len: текущее число записей.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// Generation: номер поколения; растёт при каждом проходе инвалидации.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gen
}

// evictWhere делает один проход инвалидации под c.mu: поднимает поколение
// и удаляет записи, для которых match вернул true.
func (c *Cache) evictWhere(reason string, match func(e Entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	n := 0
	for _, e := range c.snapshot() {
		if match(e) && c.lru.Remove(e.Key) {
			n++
		}
	}

	c.metrics.CacheEvicted(reason, n)
	c.metrics.CacheSize(c.lru.Len())

	return n
}
