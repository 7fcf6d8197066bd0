package persistence

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/jsayol/firebase-js-sdk/prune"
	"github.com/jsayol/firebase-js-sdk/storeadapter"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// ServerCacheStore is a thin wrapper over a storeadapter.Adapter using the
// persisted server-cache layout of spec §3: one key per primitive leaf,
// keyed by its slash-string path. A bounded hashicorp/golang-lru cache of
// recently assembled (path -> Node) reads sits in front of it, purged for
// any path prefix touched by a subsequent write, mirroring the "LRU of hot
// records" convention the teacher documents on its store's read cache.
type ServerCacheStore struct {
	adapter storeadapter.Adapter

	mu    sync.Mutex
	cache *lru.Cache
}

// NewServerCacheStore constructs a ServerCacheStore with a read cache
// holding up to cacheSize assembled subtrees.
func NewServerCacheStore(adapter storeadapter.Adapter, cacheSize int) (*ServerCacheStore, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	var c, err = lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "constructing server cache read cache")
	}
	return &ServerCacheStore{adapter: adapter, cache: c}, nil
}

type leafEntry struct {
	path  treepath.Path
	value interface{}
}

func flattenLeaves(node treenode.Node, base treepath.Path, out *[]leafEntry) {
	if node == nil || node.IsEmpty() {
		return
	}
	if node.IsLeaf() {
		*out = append(*out, leafEntry{path: base, value: node.Value()})
		return
	}
	node.ForEachChild(nil, false, func(k string, child treenode.Node) bool {
		flattenLeaves(child, base.Child(k), out)
		return true
	})
}

func setAtPath(node treenode.Node, path treepath.Path, value treenode.Node) treenode.Node {
	front, ok := path.Front()
	if !ok {
		return value
	}
	var child = node.GetImmediateChild(front)
	return node.UpdateImmediateChild(front, setAtPath(child, path.PopFront(), value))
}

func assembleNode(prefix string, kvs []storeadapter.KV) (treenode.Node, error) {
	var root treenode.Node = treenode.Empty()
	for _, kv := range kvs {
		var parts = pathFromServerKey(prefix, kv.Key)
		var value interface{}
		if err := json.Unmarshal(kv.Value, &value); err != nil {
			return nil, errors.Wrapf(err, "decoding leaf at key %q", kv.Key)
		}
		root = setAtPath(root, treepath.New(parts...), treenode.NodeFrom(value))
	}
	return root, nil
}

func (s *ServerCacheStore) invalidatePrefix(path treepath.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prefix = path.String()
	for _, key := range s.cache.Keys() {
		if k, ok := key.(string); ok && (strings.HasPrefix(k, prefix) || strings.HasPrefix(prefix, k)) {
			s.cache.Remove(key)
		}
	}
}

// Overwrite replaces the subtree at path with node, per spec §4.7. If
// partial, only node's immediate children are (re)written and other
// existing children at path are left untouched; else the whole prefix at
// path is cleared first.
func (s *ServerCacheStore) Overwrite(ctx context.Context, node treenode.Node, path treepath.Path, partial bool) error {
	var batch = s.adapter.WriteBatch()

	for ancestor := path; ; ancestor = ancestor.Parent() {
		batch.Remove(serverKey(ancestor))
		if ancestor.IsEmpty() {
			break
		}
	}

	if partial {
		node.ForEachChild(nil, false, func(k string, child treenode.Node) bool {
			var childPath = path.Child(k)
			batch.RemovePrefixed(serverPrefix(childPath))
			writeLeaves(batch, child, childPath)
			return true
		})
	} else {
		batch.RemovePrefixed(serverPrefix(path))
		writeLeaves(batch, node, path)
	}

	if err := batch.Run(ctx); err != nil {
		return errors.Wrapf(err, "overwriting server cache at %s", path.String())
	}
	s.invalidatePrefix(path)
	return nil
}

// Merge updates only the named children at path, per spec §4.7.
func (s *ServerCacheStore) Merge(ctx context.Context, children map[string]treenode.Node, path treepath.Path) error {
	var batch = s.adapter.WriteBatch()
	for k, child := range children {
		var childPath = path.Child(k)
		batch.Remove(serverKey(childPath))
		batch.RemovePrefixed(serverPrefix(childPath))
		writeLeaves(batch, child, childPath)
	}
	if err := batch.Run(ctx); err != nil {
		return errors.Wrapf(err, "merging server cache at %s", path.String())
	}
	s.invalidatePrefix(path)
	return nil
}

func writeLeaves(batch storeadapter.Batch, node treenode.Node, base treepath.Path) {
	var entries []leafEntry
	flattenLeaves(node, base, &entries)
	for _, e := range entries {
		var b, err = json.Marshal(e.value)
		if err != nil {
			continue
		}
		batch.Set(serverKey(e.path), b)
	}
}

// GetAtPath reassembles the Node rooted at path from persisted leaves.
func (s *ServerCacheStore) GetAtPath(ctx context.Context, path treepath.Path) (treenode.Node, error) {
	s.mu.Lock()
	if v, ok := s.cache.Get(path.String()); ok {
		s.mu.Unlock()
		return v.(treenode.Node), nil
	}
	s.mu.Unlock()

	var prefix = serverPrefix(path)
	var kvs, err = s.adapter.GetAll(ctx, prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "reading server cache at %s", path.String())
	}
	var node, assembleErr = assembleNode(prefix, kvs)
	if assembleErr != nil {
		return nil, assembleErr
	}

	s.mu.Lock()
	s.cache.Add(path.String(), node)
	s.mu.Unlock()
	return node, nil
}

// GetForKeys assembles a children Node from just the named children of
// path, read independently.
func (s *ServerCacheStore) GetForKeys(ctx context.Context, keys []string, path treepath.Path) (treenode.Node, error) {
	var result treenode.Node = treenode.Empty()
	for _, k := range keys {
		var child, err = s.GetAtPath(ctx, path.Child(k))
		if err != nil {
			return nil, err
		}
		result = result.UpdateImmediateChild(k, child)
	}
	return result, nil
}

// PruneCache enumerates every key under path and removes those the forest
// marks for pruning, per spec §4.5/§4.7.
func (s *ServerCacheStore) PruneCache(ctx context.Context, forest *prune.Forest, path treepath.Path) error {
	var prefix = serverPrefix(path)
	var kvs, err = s.adapter.GetAll(ctx, prefix)
	if err != nil {
		return errors.Wrapf(err, "listing server cache under %s", path.String())
	}

	var batch = s.adapter.WriteBatch()
	var anyRemoved bool
	for _, kv := range kvs {
		var parts = pathFromServerKey(prefix, kv.Key)
		var relPath = treepath.New(parts...)
		if forest.ShouldPruneUnkeptDescendants(relPath) {
			batch.Remove(kv.Key)
			anyRemoved = true
		}
	}
	if !anyRemoved {
		return nil
	}
	if err := batch.Run(ctx); err != nil {
		return errors.Wrapf(err, "pruning server cache under %s", path.String())
	}
	s.invalidatePrefix(path)
	return nil
}

// EstimatedSize approximates the store's on-disk footprint per spec §4.7:
// key length / 2 plus an approximate value size (numbers 8 bytes, strings
// their length, booleans 1 byte (the int64 total has no half bytes), arrays
// and objects summed recursively).
func (s *ServerCacheStore) EstimatedSize(ctx context.Context) (int64, error) {
	var kvs, err = s.adapter.GetAll(ctx, "")
	if err != nil {
		return 0, errors.Wrap(err, "estimating server cache size")
	}
	var size int64
	for _, kv := range kvs {
		size += int64(len(kv.Key)) / 2
		var v interface{}
		if json.Unmarshal(kv.Value, &v) == nil {
			size += estimateValueSize(v)
		}
	}
	return size, nil
}

func estimateValueSize(v interface{}) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 8
	case string:
		return int64(len(t))
	case []interface{}:
		var n int64
		for _, e := range t {
			n += estimateValueSize(e)
		}
		return n
	case map[string]interface{}:
		var n int64
		for _, e := range t {
			n += estimateValueSize(e)
		}
		return n
	default:
		return 0
	}
}

// Close releases the underlying adapter.
func (s *ServerCacheStore) Close() error {
	return s.adapter.Close()
}
