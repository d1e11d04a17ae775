// Package cache is the in-memory table of query results. Entries carry tags
// so that mutations can mark every dependent result stale.
package cache

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"moneyguard/internal/apierr"
	"moneyguard/internal/log"
	"moneyguard/internal/metrics"
)

// QueryKey identifies one query result: the query name plus its parameters.
type QueryKey string

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is the cached state of one query. On error Data keeps the last
// successful payload; use Result for data that is valid now.
type Entry struct {
	Key           QueryKey
	Name          string
	Params        any
	Status        Status
	Data          any
	Err           *apierr.Error
	Tags          []Tag
	LastFetchedAt time.Time
	Stale         bool
}

// Result returns the data of a successful entry.
func (e Entry) Result() (any, bool) {
	if e.Status != StatusSuccess {
		return nil, false
	}
	return e.Data, true
}

// Fresh reports whether the entry can be served without a fetch.
func (e Entry) Fresh() bool {
	return e.Status == StatusSuccess && !e.Stale
}

// Listener receives the new state of an entry after every change.
type Listener func(Entry)

type Options struct {
	// MaxEntries bounds the table; 0 means unbounded.
	MaxEntries int
	// IdleTTL is how long an unsubscribed entry may go unused before
	// CleanExpired removes it; 0 disables the sweep.
	IdleTTL time.Duration
	Logger  *log.Logger
	Now     func() time.Time
}

type Store struct {
	mu         sync.Mutex
	maxEntries int
	idleTTL    time.Duration
	now        func() time.Time
	logger     *log.Logger

	items   map[QueryKey]*list.Element
	lru     *list.List
	subs    map[QueryKey]map[uint64]Listener
	nextSub uint64
	clock   uint64
	outbox  map[QueryKey]*outbox
}

type item struct {
	entry      Entry
	generation uint64
	lastAccess time.Time
}

type notification struct {
	listeners []Listener
	entry     Entry
}

// outbox holds the undelivered notifications of one key in write order.
// Only the goroutine that set draining delivers from it.
type outbox struct {
	queue    []notification
	draining bool
}

func NewStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Store{
		maxEntries: opts.MaxEntries,
		idleTTL:    opts.IdleTTL,
		now:        opts.Now,
		logger:     opts.Logger.WithComponent(log.ComponentCache),
		items:      make(map[QueryKey]*list.Element),
		lru:        list.New(),
		subs:       make(map[QueryKey]map[uint64]Listener),
		outbox:     make(map[QueryKey]*outbox),
	}
}

// Read returns the entry stored under key.
func (s *Store) Read(key QueryKey) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return Entry{}, false
	}
	s.touch(elem)
	return elem.Value.(*item).entry, true
}

// Write replaces or creates the entry and notifies the key's subscribers.
func (s *Store) Write(key QueryKey, e Entry) {
	s.Update(key, func(Entry, bool, uint64) (Entry, bool) { return e, true })
}

// Update applies fn atomically to the entry under key. fn receives the
// current entry, whether it exists and its generation; returning false
// leaves the store unchanged. Update returns the stored entry, the
// generation it belongs to and whether fn wrote it.
func (s *Store) Update(key QueryKey, fn func(cur Entry, exists bool, generation uint64) (Entry, bool)) (Entry, uint64, bool) {
	s.mu.Lock()
	elem, exists := s.items[key]
	var cur Entry
	var gen uint64
	if exists {
		it := elem.Value.(*item)
		cur, gen = it.entry, it.generation
	}

	next, write := fn(cur, exists, gen)
	if !write {
		s.mu.Unlock()
		return cur, gen, false
	}
	next.Key = key

	if exists {
		elem.Value.(*item).entry = next
		s.touch(elem)
	} else {
		s.clock++
		gen = s.clock
		elem = s.lru.PushFront(&item{entry: next, generation: gen, lastAccess: s.now()})
		s.items[key] = elem
		s.evictOverflow()
	}
	drain := s.enqueueLocked(key, next)
	s.mu.Unlock()

	if drain {
		s.drain(key)
	}
	return next, gen, true
}

// Generation returns a counter that changes whenever the key is invalidated
// or recreated. It is 0 for absent keys.
func (s *Store) Generation(key QueryKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.items[key]; ok {
		return elem.Value.(*item).generation
	}
	return 0
}

// Subscribe registers fn for changes of key. The returned function removes
// the subscription and may be called more than once.
//
// Listeners of one key are called one at a time, in the order the changes
// were made. A write made from inside a listener is delivered after the
// listener returns.
func (s *Store) Subscribe(key QueryKey, fn Listener) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]Listener)
	}
	s.subs[key][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[key], id)
			if len(s.subs[key]) == 0 {
				delete(s.subs, key)
			}
		})
	}
}

// Subscribed returns the keys that have at least one subscriber.
func (s *Store) Subscribed() []QueryKey {
	s.mu.Lock()
	keys := make([]QueryKey, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Invalidate marks every entry whose tags match one of tags as stale. Data is
// kept. It returns the affected keys.
func (s *Store) Invalidate(tags ...Tag) []QueryKey {
	if len(tags) == 0 {
		return nil
	}

	s.mu.Lock()
	var affected, pending []QueryKey
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		it := elem.Value.(*item)
		if !matchesAny(tags, it.entry.Tags) {
			continue
		}
		s.clock++
		it.generation = s.clock
		it.entry.Stale = true
		affected = append(affected, it.entry.Key)
		if s.enqueueLocked(it.entry.Key, it.entry) {
			pending = append(pending, it.entry.Key)
		}
	}
	s.mu.Unlock()

	for _, key := range pending {
		s.drain(key)
	}
	if len(affected) > 0 {
		s.logger.Debug("Entries invalidated", log.FieldTags, TagStrings(tags), log.FieldCount, len(affected))
	}
	return affected
}

// Clear removes every entry. Subscribers of removed keys receive an idle
// entry; subscriptions stay registered.
func (s *Store) Clear() {
	s.mu.Lock()
	var pending []QueryKey
	for key := range s.items {
		if s.enqueueLocked(key, Entry{Key: key, Status: StatusIdle}) {
			pending = append(pending, key)
		}
	}
	s.items = make(map[QueryKey]*list.Element)
	s.lru.Init()
	metrics.CacheEntries.Set(0)
	s.mu.Unlock()

	for _, key := range pending {
		s.drain(key)
	}
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// enqueueLocked queues e for the current subscribers of key. It reports
// whether the caller has become the key's drainer and must call drain after
// releasing s.mu.
func (s *Store) enqueueLocked(key QueryKey, e Entry) bool {
	subs := s.subs[key]
	if len(subs) == 0 {
		return false
	}
	n := notification{entry: e, listeners: make([]Listener, 0, len(subs))}
	for _, fn := range subs {
		n.listeners = append(n.listeners, fn)
	}

	box := s.outbox[key]
	if box == nil {
		box = &outbox{}
		s.outbox[key] = box
	}
	box.queue = append(box.queue, n)
	if box.draining {
		return false
	}
	box.draining = true
	return true
}

// drain delivers the queued notifications of key until none are left.
func (s *Store) drain(key QueryKey) {
	for {
		s.mu.Lock()
		box := s.outbox[key]
		if len(box.queue) == 0 {
			delete(s.outbox, key)
			s.mu.Unlock()
			return
		}
		n := box.queue[0]
		box.queue = box.queue[1:]
		s.mu.Unlock()

		n.deliver()
	}
}

func (n notification) deliver() {
	for _, fn := range n.listeners {
		fn(n.entry)
	}
}
