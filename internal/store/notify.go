package store

import (
	"log/slog"
	"sort"
	"sync"
)

// notifier tracks tables modified by the open transaction and fans commits
// out to subscribers.
type notifier struct {
	logger *slog.Logger

	mu     sync.Mutex
	dirty  map[string]struct{}
	subs   map[string]map[uint64]func()
	nextID uint64
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{
		logger: logger,
		dirty:  make(map[string]struct{}),
		subs:   make(map[string]map[uint64]func()),
	}
}

func (n *notifier) subscribe(table string, fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	if n.subs[table] == nil {
		n.subs[table] = make(map[uint64]func())
	}
	n.subs[table][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[table], id)
			if len(n.subs[table]) == 0 {
				delete(n.subs, table)
			}
		})
	}
}

func (n *notifier) markDirty(table string) {
	n.mu.Lock()
	n.dirty[table] = struct{}{}
	n.mu.Unlock()
}

// commit publishes the dirty set. Tables are visited in name order and
// subscribers in registration order so delivery is deterministic.
func (n *notifier) commit() {
	n.mu.Lock()
	if len(n.dirty) == 0 {
		n.mu.Unlock()
		return
	}
	tables := make([]string, 0, len(n.dirty))
	for t := range n.dirty {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	n.dirty = make(map[string]struct{})

	var fns []func()
	for _, t := range tables {
		ids := make([]uint64, 0, len(n.subs[t]))
		for id := range n.subs[t] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fns = append(fns, n.subs[t][id])
		}
	}
	n.mu.Unlock()

	n.logger.Debug("commit", "tables", tables, "subscribers", len(fns))
	for _, fn := range fns {
		fn()
	}
}

func (n *notifier) rollback() {
	n.mu.Lock()
	n.dirty = make(map[string]struct{})
	n.mu.Unlock()
}

func (n *notifier) clear() {
	n.mu.Lock()
	n.subs = make(map[string]map[uint64]func())
	n.dirty = make(map[string]struct{})
	n.mu.Unlock()
}
