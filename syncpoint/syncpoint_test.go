package syncpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/operation"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/jsayol/firebase-js-sdk/writetree"
)

type fakeRecorder struct {
	setCalls    int
	updateCalls int
}

func (f *fakeRecorder) SetTrackedQueryKeys(q query.Query, keys []string)             { f.setCalls++ }
func (f *fakeRecorder) UpdateTrackedQueryKeys(q query.Query, added, removed []string) { f.updateCalls++ }

func TestAddEventRegistrationSeedsViewAndDeliversInitialValue(t *testing.T) {
	var sp = New(treepath.Empty, nil)
	var q = query.DefaultAtPath(treepath.Empty)
	var reg = &event.CallbackRegistration{ID: "r1"}

	var seed treenode.Node = treenode.Empty()
	seed = seed.UpdateImmediateChild("a", treenode.NewLeaf(1.0))

	var events = sp.AddEventRegistration(q, reg, writetree.New().ChildWrites(treepath.Empty), seed, true)
	require.NotEmpty(t, events)
	assert.Equal(t, event.ValueChanged, events[len(events)-1].Type)
	assert.True(t, sp.ViewExistsForQuery(q))
}

func TestApplyOperationTaggedRequiresExistingView(t *testing.T) {
	var sp = New(treepath.Empty, nil)
	var op = operation.NewOverwrite(operation.ServerTagged("missing"), treepath.Empty, treenode.NewLeaf(1.0))

	var _, err = sp.ApplyOperation(op, writetree.New().ChildWrites(treepath.Empty), nil)
	assert.Error(t, err)
}

func TestApplyOperationUpdatesFilteredViewKeysViaRecorder(t *testing.T) {
	var rec = &fakeRecorder{}
	var sp = New(treepath.Empty, rec)
	var q = query.New(treepath.Empty, query.Params{Limit: &query.Limit{N: 10}})
	var reg = &event.CallbackRegistration{ID: "r1"}

	sp.AddEventRegistration(q, reg, writetree.New().ChildWrites(treepath.Empty), treenode.Empty(), true)
	assert.Equal(t, 1, rec.setCalls)

	var op = operation.NewOverwrite(operation.Server, treepath.Parse("a"), treenode.NewLeaf(5.0))
	var _, err = sp.ApplyOperation(op, writetree.New().ChildWrites(treepath.Empty), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.updateCalls)
}

func TestRemoveEventRegistrationDropsEmptyView(t *testing.T) {
	var sp = New(treepath.Empty, nil)
	var q = query.DefaultAtPath(treepath.Empty)
	var reg = &event.CallbackRegistration{ID: "r1"}

	sp.AddEventRegistration(q, reg, writetree.New().ChildWrites(treepath.Empty), treenode.Empty(), true)
	require.True(t, sp.ViewExistsForQuery(q))

	var removed, _ = sp.RemoveEventRegistration(q, reg, nil)
	assert.NotEmpty(t, removed)
	assert.False(t, sp.ViewExistsForQuery(q))
	assert.True(t, sp.IsEmpty())
}
