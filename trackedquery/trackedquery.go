// Package trackedquery implements TrackedQuery and TrackedQueryManager
// (spec §4.6): the in-memory index, loaded from storage at construction, of
// every query the local cache has ever tracked completeness and active-use
// for.
package trackedquery

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsayol/firebase-js-sdk/future"
	"github.com/jsayol/firebase-js-sdk/prune"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// TrackedQuery is (id, query (normalized), lastUse, active, complete) per
// spec §3. A non-default tracked query never has LoadsAllData, since any
// such query is normalized to the default query at its path on creation.
type TrackedQuery struct {
	ID       uint64
	Query    query.Query
	LastUse  time.Time
	Active   bool
	Complete bool
}

// Store is the persistence seam a Manager loads from and saves to. It is a
// narrow interface, not a direct import of package persistence, so that
// persistence (which embeds a *Manager) and trackedquery do not cycle.
type Store interface {
	LoadAll() ([]TrackedQuery, error)
	Save(tq TrackedQuery) error
	Remove(id uint64) error
	LoadTrackedKeys(id uint64) ([]string, error)
	SaveTrackedKeys(id uint64, keys []string) error
}

type pathNode struct {
	byIdentifier map[string]*TrackedQuery
	children     map[string]*pathNode
}

func newPathNode() *pathNode {
	return &pathNode{byIdentifier: map[string]*TrackedQuery{}, children: map[string]*pathNode{}}
}

// Manager is the TrackedQueryManager of spec §4.6.
type Manager struct {
	root        *pathNode
	nextID      uint64
	store       Store
	initialized *future.Future[struct{}]

	now func() time.Time
}

// New constructs a Manager and kicks off an asynchronous load from store.
// Mutating methods are chained behind the returned Manager's internal
// "initialized" future so calls issued before load completes still observe
// correct state, per spec §4.6/§5.
func New(store Store) *Manager {
	var m = &Manager{
		root:        newPathNode(),
		store:       store,
		initialized: future.New[struct{}](),
		now:         time.Now,
	}
	go m.load()
	return m
}

func (m *Manager) load() {
	var all, err = m.store.LoadAll()
	if err != nil {
		logrus.WithError(err).Warn("tracked query manager: failed to load persisted queries")
		m.initialized.Resolve(struct{}{}, nil)
		return
	}
	for _, tq := range all {
		var copyTQ = tq
		// Startup recovery (spec §4.6): a previously active query was not
		// cleanly deactivated by the prior session.
		if copyTQ.Active {
			copyTQ.Active = false
			copyTQ.LastUse = m.now()
			if err := m.store.Save(copyTQ); err != nil {
				logrus.WithError(err).Warn("tracked query manager: failed to persist startup recovery")
			}
		}
		m.insert(&copyTQ)
		if copyTQ.ID >= m.nextID {
			m.nextID = copyTQ.ID + 1
		}
	}
	m.initialized.Resolve(struct{}{}, nil)
}

func (m *Manager) nodeAt(path treepath.Path, create bool) *pathNode {
	var cur = m.root
	for _, part := range path.Parts() {
		var next, ok = cur.children[part]
		if !ok {
			if !create {
				return nil
			}
			next = newPathNode()
			cur.children[part] = next
		}
		cur = next
	}
	return cur
}

func (m *Manager) insert(tq *TrackedQuery) {
	var n = m.nodeAt(tq.Query.Path(), true)
	n.byIdentifier[tq.Query.Identifier()] = tq
}

// do runs fn once the manager has finished loading, inline if already
// loaded, realizing the "chained behind initialized" requirement of §5
// without spawning a goroutine per call.
func (m *Manager) do(fn func()) {
	m.initialized.Then(func(struct{}, error) { fn() })
}

// Find returns the tracked entry for q's normalized identity, if any.
func (m *Manager) Find(q query.Query) (TrackedQuery, bool) {
	var q2 = q.Normalize()
	var n = m.nodeAt(q2.Path(), false)
	if n == nil {
		return TrackedQuery{}, false
	}
	tq, ok := n.byIdentifier[q2.Identifier()]
	if !ok {
		return TrackedQuery{}, false
	}
	return *tq, true
}

// Remove drops the tracked entry for q, if any.
func (m *Manager) Remove(q query.Query) {
	m.do(func() {
		var q2 = q.Normalize()
		var n = m.nodeAt(q2.Path(), false)
		if n == nil {
			return
		}
		if tq, ok := n.byIdentifier[q2.Identifier()]; ok {
			delete(n.byIdentifier, q2.Identifier())
			if err := m.store.Remove(tq.ID); err != nil {
				logrus.WithError(err).Warn("tracked query manager: failed to remove persisted query")
			}
		}
	})
}

func (m *Manager) upsert(q query.Query, mutate func(tq *TrackedQuery)) {
	var q2 = q.Normalize()
	var n = m.nodeAt(q2.Path(), true)
	var tq, ok = n.byIdentifier[q2.Identifier()]
	if !ok {
		m.nextID++
		tq = &TrackedQuery{ID: m.nextID, Query: q2, LastUse: m.now()}
		n.byIdentifier[q2.Identifier()] = tq
	}
	mutate(tq)
	if err := m.store.Save(*tq); err != nil {
		logrus.WithError(err).Warn("tracked query manager: failed to persist query")
	}
}

// SetActive marks q active (currently listened).
func (m *Manager) SetActive(q query.Query) {
	m.do(func() {
		m.upsert(q, func(tq *TrackedQuery) { tq.Active = true; tq.LastUse = m.now() })
	})
}

// SetInactive marks q inactive.
func (m *Manager) SetInactive(q query.Query) {
	m.do(func() {
		m.upsert(q, func(tq *TrackedQuery) { tq.Active = false; tq.LastUse = m.now() })
	})
}

// SetComplete marks q's tracked entry complete.
func (m *Manager) SetComplete(q query.Query) {
	m.do(func() {
		m.upsert(q, func(tq *TrackedQuery) { tq.Complete = true })
	})
}

// SetCompletePath marks every tracked query in the subtree at path complete,
// matching a server's full-subtree snapshot delivery.
func (m *Manager) SetCompletePath(path treepath.Path) {
	m.do(func() {
		var n = m.nodeAt(path, false)
		if n == nil {
			return
		}
		m.walkComplete(n)
	})
}

func (m *Manager) walkComplete(n *pathNode) {
	for _, tq := range n.byIdentifier {
		tq.Complete = true
		if err := m.store.Save(*tq); err != nil {
			logrus.WithError(err).Warn("tracked query manager: failed to persist completeness")
		}
	}
	for _, c := range n.children {
		m.walkComplete(c)
	}
}

// EnsureComplete creates or updates the default tracked query at path,
// marking it complete.
func (m *Manager) EnsureComplete(path treepath.Path) {
	m.do(func() {
		m.upsert(query.DefaultAtPath(path), func(tq *TrackedQuery) { tq.Complete = true })
	})
}

// IsComplete reports whether path is covered by a complete default tracked
// query at path or any ancestor, else the specific entry's own Complete
// flag.
func (m *Manager) IsComplete(q query.Query) bool {
	var cur = m.root
	for _, part := range q.Path().Parts() {
		if tq, ok := cur.byIdentifier[query.DefaultIdentifier]; ok && tq.Complete {
			return true
		}
		var next, ok = cur.children[part]
		if !ok {
			cur = nil
			break
		}
		cur = next
	}
	if cur != nil {
		if tq, ok := cur.byIdentifier[query.DefaultIdentifier]; ok && tq.Complete {
			return true
		}
		if tq, ok := cur.byIdentifier[q.Normalize().Identifier()]; ok {
			return tq.Complete
		}
	}
	return false
}

// HasActiveDefault reports whether path or any ancestor has an active
// default tracked query.
func (m *Manager) HasActiveDefault(path treepath.Path) bool {
	var cur = m.root
	if tq, ok := cur.byIdentifier[query.DefaultIdentifier]; ok && tq.Active {
		return true
	}
	for _, part := range path.Parts() {
		var next, ok = cur.children[part]
		if !ok {
			return false
		}
		cur = next
		if tq, ok := cur.byIdentifier[query.DefaultIdentifier]; ok && tq.Active {
			return true
		}
	}
	return false
}

// KnownCompleteChildren returns the union of persisted tracked keys for
// filtered complete tracked queries at path, and the names of immediate
// children that themselves have complete default tracked queries.
func (m *Manager) KnownCompleteChildren(path treepath.Path) []string {
	var n = m.nodeAt(path, false)
	if n == nil {
		return nil
	}
	var set = map[string]bool{}
	for id, tq := range n.byIdentifier {
		if id == query.DefaultIdentifier || !tq.Complete {
			continue
		}
		keys, err := m.store.LoadTrackedKeys(tq.ID)
		if err != nil {
			logrus.WithError(err).Warn("tracked query manager: failed to load tracked keys")
			continue
		}
		for _, k := range keys {
			set[k] = true
		}
	}
	for name, child := range n.children {
		if tq, ok := child.byIdentifier[query.DefaultIdentifier]; ok && tq.Complete {
			set[name] = true
		}
	}
	var out = make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NumPrunableQueries returns the count of inactive tracked queries, the
// only queries ever eligible for pruning.
func (m *Manager) NumPrunableQueries() int {
	var n int
	m.walkAll(m.root, func(tq *TrackedQuery) {
		if !tq.Active {
			n++
		}
	})
	return n
}

func (m *Manager) walkAll(n *pathNode, fn func(*TrackedQuery)) {
	for _, tq := range n.byIdentifier {
		fn(tq)
	}
	for _, c := range n.children {
		m.walkAll(c, fn)
	}
}

// PruneOld partitions tracked queries into prunable (inactive) and
// unprunable (active), selects the oldest-by-LastUse prunable entries to
// evict per policy, removes them from the manager, and returns a
// PruneForest marking their paths Prune and every remaining tracked path
// Keep, per spec §4.5.
func (m *Manager) PruneOld(policy interface {
	PercentQueriesPruneAtOnce() float64
	MaxPrunableQueriesToKeep() int
}) *prune.Forest {
	type entry struct {
		tq   *TrackedQuery
		node *pathNode
	}
	var prunable []entry
	var unprunable []entry
	m.walkAllWithNode(m.root, func(n *pathNode, tq *TrackedQuery) {
		if tq.Active {
			unprunable = append(unprunable, entry{tq, n})
		} else {
			prunable = append(prunable, entry{tq, n})
		}
	})

	sort.Slice(prunable, func(i, j int) bool {
		return prunable[i].tq.LastUse.Before(prunable[j].tq.LastUse)
	})

	var numPrunable = len(prunable)
	var byPercent = int(float64(numPrunable) * policy.PercentQueriesPruneAtOnce())
	if float64(numPrunable)*policy.PercentQueriesPruneAtOnce() > float64(byPercent) {
		byPercent++
	}
	var numToPrune = numPrunable - policy.MaxPrunableQueriesToKeep()
	if byPercent > numToPrune {
		numToPrune = byPercent
	}
	if numToPrune < 0 {
		numToPrune = 0
	}
	if numToPrune > numPrunable {
		numToPrune = numPrunable
	}

	var forest = prune.New()
	for i, e := range prunable {
		if i < numToPrune {
			forest.Prune(e.tq.Query.Path())
			delete(e.node.byIdentifier, e.tq.Query.Identifier())
			if err := m.store.Remove(e.tq.ID); err != nil {
				logrus.WithError(err).Warn("tracked query manager: failed to remove pruned query")
			}
			continue
		}
		forest.Keep(e.tq.Query.Path())
	}
	for _, e := range unprunable {
		forest.Keep(e.tq.Query.Path())
	}
	return forest
}

func (m *Manager) walkAllWithNode(n *pathNode, fn func(*pathNode, *TrackedQuery)) {
	for _, tq := range n.byIdentifier {
		fn(n, tq)
	}
	for _, c := range n.children {
		m.walkAllWithNode(c, fn)
	}
}
