package kvstore

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/jsayol/firebase-js-sdk/storeadapter"
)

// Afero is a storeadapter.Adapter backed by an afero.Fs, mirroring each key
// to a file path — the persisted server-cache layout already uses slashes
// as key separators (spec §3), so keys and file paths coincide almost by
// construction. Grounded on the teacher's use of afero.Fs for durable
// consumer state (its recorded filesystem wraps every mutation in a
// recovery log; this adapter needs no such log, only the filesystem
// abstraction itself, so it talks to afero.Fs directly).
type Afero struct {
	mu   sync.Mutex
	fs   afero.Fs
	root string
}

// NewAfero returns an Afero adapter rooted at root within fs.
func NewAfero(fs afero.Fs, root string) *Afero {
	return &Afero{fs: fs, root: root}
}

func (a *Afero) path(key string) string {
	return path.Join(a.root, key)
}

func (a *Afero) Get(_ context.Context, key string) ([]byte, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var b, err = afero.ReadFile(a.fs, a.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading key %q", key)
	}
	return b, true, nil
}

func (a *Afero) GetAll(_ context.Context, prefix string) ([]storeadapter.KV, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []storeadapter.KV
	var base = a.path(prefix)
	err := afero.Walk(a.fs, base, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		var rel, relErr = filepathRel(a.root, p)
		if relErr != nil {
			return relErr
		}
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		var b, readErr = afero.ReadFile(a.fs, p)
		if readErr != nil {
			return readErr
		}
		out = append(out, storeadapter.KV{Key: rel, Value: b})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking prefix %q", prefix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func filepathRel(root, p string) (string, error) {
	var rel = strings.TrimPrefix(p, root)
	return strings.TrimPrefix(rel, "/"), nil
}

func (a *Afero) Set(_ context.Context, key string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if value == nil {
		var err = a.fs.Remove(a.path(key))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var p = a.path(key)
	if err := a.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent dirs for %q", key)
	}
	return afero.WriteFile(a.fs, p, value, 0o644)
}

func (a *Afero) Remove(_ context.Context, keys ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range keys {
		var err = a.fs.Remove(a.path(k))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "removing key %q", k)
		}
	}
	return nil
}

func (a *Afero) RemovePrefixed(_ context.Context, prefix string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err = a.fs.RemoveAll(a.path(prefix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (a *Afero) Clear(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fs.RemoveAll(a.root)
}

func (a *Afero) Keys(ctx context.Context, prefix string) ([]string, error) {
	var all, err = a.GetAll(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out = make([]string, len(all))
	for i, kv := range all {
		out[i] = kv.Key
	}
	return out, nil
}

func (a *Afero) Count(ctx context.Context) (int, error) {
	var all, err = a.GetAll(ctx, "")
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (a *Afero) Close() error { return nil }

func (a *Afero) WriteBatch() storeadapter.Batch {
	return &aferoBatch{adapter: a}
}

type aferoOp struct {
	kind  int // 0 = set, 1 = remove, 2 = removePrefixed
	key   string
	value []byte
}

type aferoBatch struct {
	adapter *Afero
	ops     []aferoOp
}

func (b *aferoBatch) Set(key string, value []byte) {
	b.ops = append(b.ops, aferoOp{kind: 0, key: key, value: value})
}

func (b *aferoBatch) Remove(key string) {
	b.ops = append(b.ops, aferoOp{kind: 1, key: key})
}

func (b *aferoBatch) RemovePrefixed(prefix string) {
	b.ops = append(b.ops, aferoOp{kind: 2, key: prefix})
}

func (b *aferoBatch) Run(ctx context.Context) error {
	for _, op := range b.ops {
		var err error
		switch op.kind {
		case 0:
			err = b.adapter.Set(ctx, op.key, op.value)
		case 1:
			err = b.adapter.Remove(ctx, op.key)
		case 2:
			err = b.adapter.RemovePrefixed(ctx, op.key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *aferoBatch) EstimatedSize() int64 {
	var n int64
	for _, op := range b.ops {
		n += int64(len(op.key)) + int64(len(op.value))
	}
	return n
}
