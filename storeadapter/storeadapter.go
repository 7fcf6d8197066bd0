// Package storeadapter defines Adapter, the key-value contract spec §6
// names as StorageAdapter, plus a reflection-based Validate that checks an
// implementation satisfies it structurally before it's wired in.
package storeadapter

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

// KV is one key/value pair, as returned by GetAll and Keys.
type KV struct {
	Key   string
	Value []byte
}

// Batch is a set of mutations that must run atomically and in submission
// order, per spec §5/§6.
type Batch interface {
	Set(key string, value []byte)
	Remove(key string)
	RemovePrefixed(prefix string)
	Run(ctx context.Context) error
	EstimatedSize() int64
}

// Adapter is the key-value contract spec §6 calls StorageAdapter, scoped to
// a single (database, store) pair.
type Adapter interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetAll(ctx context.Context, prefix string) ([]KV, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, keys ...string) error
	RemovePrefixed(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
	WriteBatch() Batch
}

// Validate checks, via reflection, that a is non-nil, does not hold a nil
// pointer (or other nil reference), and that its concrete type implements
// Adapter; the error it returns names the value's type, not the particular
// method that is missing or mistyped. This exists because the source system's
// equivalent validator was flagged (spec §9) as accepting objects missing
// methods due to a copy-paste bug in its own hand-rolled check; expressing
// it via reflect.Type.Implements sidesteps that class of bug entirely.
func Validate(a Adapter) error {
	var adapterType = reflect.TypeOf((*Adapter)(nil)).Elem()
	var v = reflect.ValueOf(a)
	if !v.IsValid() {
		return errors.New("storeadapter: nil adapter")
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if v.IsNil() {
			return errors.Errorf("storeadapter: %s adapter holds a nil %s", v.Type(), v.Kind())
		}
	}
	if !v.Type().Implements(adapterType) {
		return errors.Errorf("storeadapter: %s does not implement Adapter", v.Type())
	}
	return nil
}
