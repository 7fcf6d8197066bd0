package persistence

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jsayol/firebase-js-sdk/cachepolicy"
	"github.com/jsayol/firebase-js-sdk/future"
	"github.com/jsayol/firebase-js-sdk/metrics"
	"github.com/jsayol/firebase-js-sdk/prune"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/trackedquery"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// Manager is the PersistenceManager of spec §4.5: it owns the three durable
// stores and the in-memory TrackedQueryManager, sequences durable
// operations, and drives LRU pruning of the server cache.
type Manager struct {
	server  *ServerCacheStore
	users   *UserWriteStore
	queries *TrackedQueryStore
	tracked *trackedquery.Manager
	policy  cachepolicy.Policy

	group singleflight.Group

	mu                           sync.Mutex
	serverUpdatesSincePruneCheck int
}

// NewManager wires the three stores and a TrackedQueryManager into a
// Manager, using policy to drive pruning (or cachepolicy.NewLRU() if nil).
func NewManager(server *ServerCacheStore, users *UserWriteStore, queries *TrackedQueryStore, policy cachepolicy.Policy) *Manager {
	if policy == nil {
		policy = cachepolicy.NewLRU()
	}
	return &Manager{
		server:  server,
		users:   users,
		queries: queries,
		tracked: trackedquery.New(queries),
		policy:  policy,
	}
}

// SaveUserOverwrite durably records a pending user overwrite.
func (m *Manager) SaveUserOverwrite(ctx context.Context, path treepath.Path, node treenode.Node, writeID int64) error {
	return m.users.SaveOverwrite(ctx, path, node, writeID)
}

// SaveUserMerge durably records a pending user merge.
func (m *Manager) SaveUserMerge(ctx context.Context, path treepath.Path, children map[string]treenode.Node, writeID int64) error {
	return m.users.SaveMerge(ctx, path, children, writeID)
}

// RemoveUserWrite drops the persisted record for an acknowledged or
// reverted write.
func (m *Manager) RemoveUserWrite(ctx context.Context, writeID int64) error {
	return m.users.Remove(ctx, writeID)
}

// GetUserWrites returns every persisted pending write, sorted by id, for
// crash recovery replay.
func (m *Manager) GetUserWrites(ctx context.Context) ([]UserWrite, error) {
	return m.users.GetAll(ctx)
}

// ApplyUserWrite folds a confirmed user overwrite into the server cache
// when path already has an active default listener, per spec §4.5: a
// confirmed write is now canonical, so it should be visible to future
// getServerCache calls without waiting on the next server frame.
func (m *Manager) ApplyUserWrite(ctx context.Context, node treenode.Node, path treepath.Path) error {
	metrics.UserWritesAppliedTotal.Inc()
	if !m.tracked.HasActiveDefault(path) {
		return nil
	}
	if err := m.server.Overwrite(ctx, node, path, false); err != nil {
		metrics.StorageErrorsTotal.Inc()
		return err
	}
	m.tracked.EnsureComplete(path)
	return nil
}

// ApplyUserMerge is ApplyUserWrite's merge counterpart.
func (m *Manager) ApplyUserMerge(ctx context.Context, merge map[string]treenode.Node, path treepath.Path) error {
	metrics.UserWritesAppliedTotal.Inc()
	if !m.tracked.HasActiveDefault(path) {
		return nil
	}
	if err := m.server.Merge(ctx, merge, path); err != nil {
		metrics.StorageErrorsTotal.Inc()
		return err
	}
	m.tracked.EnsureComplete(path)
	return nil
}

// GetServerCache resolves the best locally-known CacheNode for q, per
// spec §4.5. Concurrent identical calls (same path + query identifier) are
// coalesced via singleflight, mirroring the general duplicate-in-flight-work
// suppression pattern.
func (m *Manager) GetServerCache(ctx context.Context, q query.Query) *future.Future[treenode.CacheNode] {
	var result = future.New[treenode.CacheNode]()
	var key = q.Path().String() + "$" + q.Identifier()

	go func() {
		var v, err, _ = m.group.Do(key, func() (interface{}, error) {
			return m.readServerCache(ctx, q)
		})
		if err != nil {
			metrics.StorageErrorsTotal.Inc()
			logrus.WithError(err).WithField("query", key).Warn("persistence manager: getServerCache failed")
			result.Resolve(treenode.EmptyCacheNode, nil)
			return
		}
		result.Resolve(v.(treenode.CacheNode), nil)
	}()
	return result
}

func (m *Manager) readServerCache(ctx context.Context, q query.Query) (treenode.CacheNode, error) {
	if m.tracked.IsComplete(q) {
		if q.IsFiltered() {
			tq, ok := m.tracked.Find(q)
			if !ok {
				return treenode.EmptyCacheNode, nil
			}
			var keys, err = m.queries.LoadTrackedKeys(tq.ID)
			if err != nil {
				return treenode.CacheNode{}, err
			}
			var node, getErr = m.server.GetForKeys(ctx, keys, q.Path())
			if getErr != nil {
				return treenode.CacheNode{}, getErr
			}
			return treenode.CacheNode{Node: node, FullyInitialized: true, Filtered: true}, nil
		}
		var node, err = m.server.GetAtPath(ctx, q.Path())
		if err != nil {
			return treenode.CacheNode{}, err
		}
		return treenode.CacheNode{Node: node, FullyInitialized: true}, nil
	}

	var known = m.tracked.KnownCompleteChildren(q.Path())
	var node, err = m.server.GetForKeys(ctx, known, q.Path())
	if err != nil {
		return treenode.CacheNode{}, err
	}
	return treenode.CacheNode{Node: node, Filtered: q.IsFiltered()}, nil
}

// ApplyServerOverwrite durably applies a server-delivered overwrite for q,
// marks q's tracked query complete, and checks whether the update should
// trigger a prune pass.
func (m *Manager) ApplyServerOverwrite(ctx context.Context, node treenode.Node, q query.Query) error {
	if err := m.server.Overwrite(ctx, node, q.Path(), !q.LoadsAllData()); err != nil {
		return err
	}
	m.SetQueryComplete(q)
	m.pruneCheck(ctx)
	return nil
}

// ApplyServerMerge durably applies a server-delivered merge at path.
func (m *Manager) ApplyServerMerge(ctx context.Context, merge map[string]treenode.Node, path treepath.Path) error {
	if err := m.server.Merge(ctx, merge, path); err != nil {
		return err
	}
	m.pruneCheck(ctx)
	return nil
}

// SetQueryComplete marks q's tracked entry complete.
func (m *Manager) SetQueryComplete(q query.Query) { m.tracked.SetComplete(q) }

// SetQueryActive marks q active.
func (m *Manager) SetQueryActive(q query.Query) { m.tracked.SetActive(q) }

// SetQueryInactive marks q inactive.
func (m *Manager) SetQueryInactive(q query.Query) { m.tracked.SetInactive(q) }

// SetTrackedQueryKeys implements syncpoint.TrackedKeyRecorder, replacing the
// persisted tracked-key set for q's tracked entry wholesale.
func (m *Manager) SetTrackedQueryKeys(q query.Query, keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tq, ok := m.tracked.Find(q)
	if !ok {
		return
	}
	if err := m.queries.SaveTrackedKeys(tq.ID, keys); err != nil {
		logrus.WithError(err).Warn("persistence manager: failed to save tracked keys")
	}
}

// UpdateTrackedQueryKeys implements syncpoint.TrackedKeyRecorder,
// incrementally applying added/removed children to q's persisted
// tracked-key set. Both key-set methods hold m.mu across their whole
// load-modify-save, so updates of one key set never interleave.
func (m *Manager) UpdateTrackedQueryKeys(q query.Query, added, removed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tq, ok := m.tracked.Find(q)
	if !ok {
		return
	}
	var existing, err = m.queries.LoadTrackedKeys(tq.ID)
	if err != nil {
		logrus.WithError(err).Warn("persistence manager: failed to load tracked keys for update")
		return
	}
	var set = make(map[string]bool, len(existing))
	for _, k := range existing {
		set[k] = true
	}
	for _, k := range removed {
		delete(set, k)
	}
	for _, k := range added {
		set[k] = true
	}
	var out = make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	if err := m.queries.SaveTrackedKeys(tq.ID, out); err != nil {
		logrus.WithError(err).Warn("persistence manager: failed to save updated tracked keys")
	}
}

// pruneCheck implements the counter half of spec §4.5's pruning protocol:
// after every server overwrite/merge, once cachePolicy.ShouldCheckSize
// trips, the counter resets and a recursive prune pass runs.
func (m *Manager) pruneCheck(ctx context.Context) {
	m.mu.Lock()
	m.serverUpdatesSincePruneCheck++
	var due = m.policy.ShouldCheckSize(m.serverUpdatesSincePruneCheck)
	if due {
		m.serverUpdatesSincePruneCheck = 0
	}
	m.mu.Unlock()

	if due {
		go m.recursivePruneCheck(ctx)
	}
}

func (m *Manager) recursivePruneCheck(ctx context.Context) {
	var size, err = m.server.EstimatedSize(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.Inc()
		logrus.WithError(err).Warn("persistence manager: failed to estimate server cache size")
		return
	}
	metrics.ServerCacheBytes.Set(float64(size))
	if !m.policy.ShouldPrune(size, m.tracked.NumPrunableQueries()) {
		return
	}

	var forest = m.tracked.PruneOld(m.policy)
	if !forest.PrunesAnything() {
		return
	}

	if err := m.server.PruneCache(ctx, forest, treepath.Empty); err != nil {
		metrics.StorageErrorsTotal.Inc()
		logrus.WithError(err).Warn("persistence manager: failed to prune server cache")
		return
	}
	metrics.PruneRunsTotal.Inc()
	metrics.PrunedQueriesTotal.Add(float64(forest.NumPruned()))

	var after, afterErr = m.server.EstimatedSize(ctx)
	if afterErr != nil {
		return
	}
	metrics.ServerCacheBytes.Set(float64(after))
	logrus.WithFields(logrus.Fields{
		"before": humanize.Bytes(uint64OrZero(size)),
		"after":  humanize.Bytes(uint64OrZero(after)),
	}).Info("persistence manager: pruned server cache")

	m.recursivePruneCheck(ctx)
}

func uint64OrZero(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// PruneForestForTest exposes the pruning decision for a snapshot of current
// tracked-query state, used by tests exercising the pruning protocol
// without going through the counter/threshold plumbing.
func (m *Manager) PruneForestForTest() *prune.Forest {
	return m.tracked.PruneOld(m.policy)
}

// Close releases all three underlying stores.
func (m *Manager) Close() error {
	var errs []error
	if err := m.server.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.users.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.queries.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Errorf("persistence manager: %d error(s) closing stores: %v", len(errs), errs)
}
