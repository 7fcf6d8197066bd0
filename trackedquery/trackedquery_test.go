package trackedquery

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

type memStore struct {
	mu      sync.Mutex
	byID    map[uint64]TrackedQuery
	keys    map[uint64][]string
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{byID: map[uint64]TrackedQuery{}, keys: map[uint64][]string{}}
}

func (s *memStore) LoadAll() ([]TrackedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var out []TrackedQuery
	for _, tq := range s.byID {
		out = append(out, tq)
	}
	return out, nil
}

func (s *memStore) Save(tq TrackedQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[tq.ID] = tq
	return nil
}

func (s *memStore) Remove(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *memStore) LoadTrackedKeys(id uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[id], nil
}

func (s *memStore) SaveTrackedKeys(id uint64, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = keys
	return nil
}

func waitInit(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.initialized.Done():
	case <-time.After(time.Second):
		t.Fatal("manager did not initialize in time")
	}
}

func TestSetActiveThenFindRoundTrips(t *testing.T) {
	var store = newMemStore()
	var m = New(store)
	waitInit(t, m)

	var q = query.DefaultAtPath(treepath.Parse("a"))
	m.SetActive(q)

	var tq, ok = m.Find(q)
	require.True(t, ok)
	assert.True(t, tq.Active)
}

func TestHasActiveDefaultChecksAncestors(t *testing.T) {
	var store = newMemStore()
	var m = New(store)
	waitInit(t, m)

	m.SetActive(query.DefaultAtPath(treepath.Parse("a")))
	assert.True(t, m.HasActiveDefault(treepath.Parse("a/b/c")))
	assert.False(t, m.HasActiveDefault(treepath.Parse("x")))
}

func TestStartupRecoveryDeactivatesPersistedActiveQueries(t *testing.T) {
	var store = newMemStore()
	store.byID[1] = TrackedQuery{ID: 1, Query: query.DefaultAtPath(treepath.Parse("a")), Active: true}

	var m = New(store)
	waitInit(t, m)

	var tq, ok = m.Find(query.DefaultAtPath(treepath.Parse("a")))
	require.True(t, ok)
	assert.False(t, tq.Active)
}

func TestPruneOldKeepsActiveAndRecentlyUsed(t *testing.T) {
	var store = newMemStore()
	var m = New(store)
	waitInit(t, m)

	for i := 0; i < 10; i++ {
		m.SetInactive(query.DefaultAtPath(treepath.New("q", string(rune('a'+i)))))
	}
	m.SetActive(query.DefaultAtPath(treepath.New("active")))

	var forest = m.PruneOld(&fakePolicy{percent: 0.5, keep: 2})
	assert.True(t, forest.ShouldPruneUnkeptDescendants(treepath.New("q", "a")))
	assert.False(t, forest.ShouldPruneUnkeptDescendants(treepath.New("active")))
}

type fakePolicy struct {
	percent float64
	keep    int
}

func (p *fakePolicy) PercentQueriesPruneAtOnce() float64 { return p.percent }
func (p *fakePolicy) MaxPrunableQueriesToKeep() int      { return p.keep }
