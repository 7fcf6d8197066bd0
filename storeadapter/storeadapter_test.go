package storeadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubAdapter struct{}

func (stubAdapter) Get(context.Context, string) ([]byte, bool, error)   { return nil, false, nil }
func (stubAdapter) GetAll(context.Context, string) ([]KV, error)        { return nil, nil }
func (stubAdapter) Set(context.Context, string, []byte) error           { return nil }
func (stubAdapter) Remove(context.Context, ...string) error             { return nil }
func (stubAdapter) RemovePrefixed(context.Context, string) error        { return nil }
func (stubAdapter) Clear(context.Context) error                         { return nil }
func (stubAdapter) Keys(context.Context, string) ([]string, error)      { return nil, nil }
func (stubAdapter) Count(context.Context) (int, error)                  { return 0, nil }
func (stubAdapter) Close() error                                        { return nil }
func (stubAdapter) WriteBatch() Batch                                   { return nil }

func TestValidateAcceptsConformingAdapter(t *testing.T) {
	assert.NoError(t, Validate(stubAdapter{}))
}

func TestValidateRejectsTypedNilPointer(t *testing.T) {
	var a *stubAdapterPtr
	assert.Error(t, Validate(a))
}

type stubAdapterPtr struct{ stubAdapter }
