package cache

import (
	"container/list"

	"moneyguard/internal/metrics"
)

func (s *Store) touch(elem *list.Element) {
	elem.Value.(*item).lastAccess = s.now()
	s.lru.MoveToFront(elem)
}

// evictable entries have no subscribers and no fetch in progress.
func (s *Store) evictable(it *item) bool {
	return len(s.subs[it.entry.Key]) == 0 && it.entry.Status != StatusLoading
}

// evictOverflow removes least recently used entries until the store fits
// its bound. Entries that are not evictable are skipped, as is the entry
// just inserted at the front.
func (s *Store) evictOverflow() {
	defer metrics.CacheEntries.Set(float64(len(s.items)))
	if s.maxEntries <= 0 {
		return
	}

	front := s.lru.Front()
	elem := s.lru.Back()
	for len(s.items) > s.maxEntries && elem != nil && elem != front {
		prev := elem.Prev()
		if it := elem.Value.(*item); s.evictable(it) {
			s.removeElement(elem)
			metrics.CacheEvictionsTotal.WithLabelValues("lru").Inc()
		}
		elem = prev
	}
}

func (s *Store) removeElement(elem *list.Element) {
	it := elem.Value.(*item)
	delete(s.items, it.entry.Key)
	s.lru.Remove(elem)
}

// CleanExpired removes evictable entries unused for longer than the idle TTL
// and returns how many were removed.
func (s *Store) CleanExpired() int {
	if s.idleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var toRemove []*list.Element
	for elem := s.lru.Back(); elem != nil; elem = elem.Prev() {
		it := elem.Value.(*item)
		if now.Sub(it.lastAccess) > s.idleTTL && s.evictable(it) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		s.removeElement(elem)
	}
	metrics.CacheEvictionsTotal.WithLabelValues("idle").Add(float64(len(toRemove)))
	metrics.CacheEntries.Set(float64(len(s.items)))

	return len(toRemove)
}
