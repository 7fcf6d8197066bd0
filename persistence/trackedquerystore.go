package persistence

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/storeadapter"
	"github.com/jsayol/firebase-js-sdk/trackedquery"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

func priorityFromExport(v interface{}) treenode.Priority {
	switch t := v.(type) {
	case float64:
		return treenode.NumPrio(t)
	case string:
		return treenode.StrPrio(t)
	default:
		return treenode.NoPrio
	}
}

type boundWire struct {
	Key       string      `json:"key,omitempty"`
	Priority  interface{} `json:"priority,omitempty"`
	Value     interface{} `json:"value,omitempty"`
	Inclusive bool        `json:"inclusive"`
}

type limitWire struct {
	N       int  `json:"n"`
	Reverse bool `json:"reverse"`
}

type trackedQueryWire struct {
	ID           uint64     `json:"id"`
	Path         string     `json:"path"`
	IndexKind    int        `json:"indexKind"`
	IndexPath    string     `json:"indexPath,omitempty"`
	Start        *boundWire `json:"start,omitempty"`
	End          *boundWire `json:"end,omitempty"`
	Limit        *limitWire `json:"limit,omitempty"`
	LastUseUnix  int64      `json:"lastUse"`
	Active       bool       `json:"active"`
	Complete     bool       `json:"complete"`
}

func encodeTrackedQuery(tq trackedquery.TrackedQuery) trackedQueryWire {
	var params = tq.Query.Params()
	var wire = trackedQueryWire{
		ID:          tq.ID,
		Path:        tq.Query.Path().String(),
		IndexKind:   int(params.Index.Kind),
		IndexPath:   params.Index.Path.String(),
		LastUseUnix: tq.LastUse.Unix(),
		Active:      tq.Active,
		Complete:    tq.Complete,
	}
	if params.Start != nil {
		wire.Start = &boundWire{Key: params.Start.Key, Priority: params.Start.Priority.Export(), Value: params.Start.Value, Inclusive: params.Start.Inclusive}
	}
	if params.End != nil {
		wire.End = &boundWire{Key: params.End.Key, Priority: params.End.Priority.Export(), Value: params.End.Value, Inclusive: params.End.Inclusive}
	}
	if params.Limit != nil {
		wire.Limit = &limitWire{N: params.Limit.N, Reverse: params.Limit.Reverse}
	}
	return wire
}

func decodeTrackedQuery(wire trackedQueryWire) trackedquery.TrackedQuery {
	var params = query.Params{Index: query.Index{Kind: query.IndexKind(wire.IndexKind)}}
	if wire.IndexPath != "" {
		params.Index.Path = treepath.Parse(wire.IndexPath)
	}
	if wire.Start != nil {
		params.Start = &query.Bound{Key: wire.Start.Key, Priority: priorityFromExport(wire.Start.Priority), Value: wire.Start.Value, Inclusive: wire.Start.Inclusive}
	}
	if wire.End != nil {
		params.End = &query.Bound{Key: wire.End.Key, Priority: priorityFromExport(wire.End.Priority), Value: wire.End.Value, Inclusive: wire.End.Inclusive}
	}
	if wire.Limit != nil {
		params.Limit = &query.Limit{N: wire.Limit.N, Reverse: wire.Limit.Reverse}
	}
	return trackedquery.TrackedQuery{
		ID:       wire.ID,
		Query:    query.New(treepath.Parse(wire.Path), params),
		LastUse:  time.Unix(wire.LastUseUnix, 0),
		Active:   wire.Active,
		Complete: wire.Complete,
	}
}

// TrackedQueryStore is a thin wrapper over a storeadapter.Adapter using the
// persisted tracked-query layout of spec §3, and satisfies
// trackedquery.Store.
type TrackedQueryStore struct {
	adapter storeadapter.Adapter
}

// NewTrackedQueryStore constructs a TrackedQueryStore.
func NewTrackedQueryStore(adapter storeadapter.Adapter) *TrackedQueryStore {
	return &TrackedQueryStore{adapter: adapter}
}

// LoadAll implements trackedquery.Store.
func (s *TrackedQueryStore) LoadAll() ([]trackedquery.TrackedQuery, error) {
	var ctx = context.Background()
	var kvs, err = s.adapter.GetAll(ctx, "query/")
	if err != nil {
		return nil, errors.Wrap(err, "loading tracked queries")
	}
	var out []trackedquery.TrackedQuery
	for _, kv := range kvs {
		var wire trackedQueryWire
		if err := json.Unmarshal(kv.Value, &wire); err != nil {
			return nil, errors.Wrapf(err, "decoding tracked query %q", kv.Key)
		}
		out = append(out, decodeTrackedQuery(wire))
	}
	return out, nil
}

// Save implements trackedquery.Store.
func (s *TrackedQueryStore) Save(tq trackedquery.TrackedQuery) error {
	var b, err = json.Marshal(encodeTrackedQuery(tq))
	if err != nil {
		return errors.Wrap(err, "encoding tracked query")
	}
	return s.adapter.Set(context.Background(), trackedQueryKey(tq.ID), b)
}

// Remove implements trackedquery.Store, dropping both the tracked-query
// record and any persisted tracked-key set for it.
func (s *TrackedQueryStore) Remove(id uint64) error {
	var ctx = context.Background()
	if err := s.adapter.Remove(ctx, trackedQueryKey(id)); err != nil {
		return errors.Wrap(err, "removing tracked query")
	}
	return s.adapter.RemovePrefixed(ctx, trackedKeySetPrefix(id))
}

// LoadTrackedKeys implements trackedquery.Store.
func (s *TrackedQueryStore) LoadTrackedKeys(id uint64) ([]string, error) {
	var kvs, err = s.adapter.GetAll(context.Background(), trackedKeySetPrefix(id))
	if err != nil {
		return nil, errors.Wrap(err, "loading tracked keys")
	}
	var out = make([]string, 0, len(kvs))
	var prefix = trackedKeySetPrefix(id)
	for _, kv := range kvs {
		out = append(out, strings.TrimPrefix(kv.Key, prefix))
	}
	return out, nil
}

// SaveTrackedKeys implements trackedquery.Store, replacing the persisted
// tracked-key set for id, keyed as a set per spec §3.
//
// This method does not serialize callers itself; persistence.Manager holds
// its mutex across every load-modify-save of a key set, so concurrent
// updates of the same id do not interleave.
func (s *TrackedQueryStore) SaveTrackedKeys(id uint64, keys []string) error {
	var ctx = context.Background()
	var batch = s.adapter.WriteBatch()
	batch.RemovePrefixed(trackedKeySetPrefix(id))
	for _, k := range keys {
		batch.Set(trackedKeySetKey(id, k), []byte(k))
	}
	return errors.Wrap(batch.Run(ctx), "saving tracked keys")
}

// Close releases the underlying adapter.
func (s *TrackedQueryStore) Close() error {
	return s.adapter.Close()
}
