package persistence

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/jsayol/firebase-js-sdk/storeadapter"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// UserWrite is the persisted record for one pending user write, per spec
// §3's "{ id, path, overwrite? | merge? }" layout.
type UserWrite struct {
	ID        int64
	Path      treepath.Path
	IsMerge   bool
	Overwrite interface{}
	Merge     map[string]interface{}
}

type userWriteWire struct {
	ID        int64                  `json:"id"`
	Path      string                 `json:"path"`
	Overwrite json.RawMessage        `json:"overwrite,omitempty"`
	Merge     map[string]interface{} `json:"merge,omitempty"`
}

// UserWriteStore is a thin wrapper over a storeadapter.Adapter using the
// persisted user-write layout of spec §3.
type UserWriteStore struct {
	adapter storeadapter.Adapter
}

// NewUserWriteStore constructs a UserWriteStore.
func NewUserWriteStore(adapter storeadapter.Adapter) *UserWriteStore {
	return &UserWriteStore{adapter: adapter}
}

// SaveOverwrite persists an overwrite write.
func (s *UserWriteStore) SaveOverwrite(ctx context.Context, path treepath.Path, node treenode.Node, writeID int64) error {
	var raw, err = json.Marshal(node.ExportWithPriority())
	if err != nil {
		return errors.Wrap(err, "encoding user overwrite")
	}
	var wire = userWriteWire{ID: writeID, Path: path.String(), Overwrite: raw}
	return s.put(ctx, writeID, wire)
}

// SaveMerge persists a merge write.
func (s *UserWriteStore) SaveMerge(ctx context.Context, path treepath.Path, children map[string]treenode.Node, writeID int64) error {
	var merge = make(map[string]interface{}, len(children))
	for k, v := range children {
		merge[k] = v.ExportWithPriority()
	}
	var wire = userWriteWire{ID: writeID, Path: path.String(), Merge: merge}
	return s.put(ctx, writeID, wire)
}

func (s *UserWriteStore) put(ctx context.Context, writeID int64, wire userWriteWire) error {
	var b, err = json.Marshal(wire)
	if err != nil {
		return errors.Wrap(err, "encoding user write")
	}
	return s.adapter.Set(ctx, userWriteKey(writeID), b)
}

// Remove deletes the persisted write with the given id.
func (s *UserWriteStore) Remove(ctx context.Context, writeID int64) error {
	return s.adapter.Remove(ctx, userWriteKey(writeID))
}

// GetAll returns every persisted user write, sorted by ascending id.
func (s *UserWriteStore) GetAll(ctx context.Context) ([]UserWrite, error) {
	var kvs, err = s.adapter.GetAll(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "listing user writes")
	}
	var out []UserWrite
	for _, kv := range kvs {
		var wire userWriteWire
		if err := json.Unmarshal(kv.Value, &wire); err != nil {
			return nil, errors.Wrapf(err, "decoding user write %q", kv.Key)
		}
		var uw = UserWrite{ID: wire.ID, Path: treepath.Parse(wire.Path)}
		if wire.Merge != nil {
			uw.IsMerge = true
			uw.Merge = wire.Merge
		} else {
			var v interface{}
			if err := json.Unmarshal(wire.Overwrite, &v); err != nil {
				return nil, errors.Wrapf(err, "decoding user write value %q", kv.Key)
			}
			uw.Overwrite = v
		}
		out = append(out, uw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close releases the underlying adapter.
func (s *UserWriteStore) Close() error {
	return s.adapter.Close()
}
