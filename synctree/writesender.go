package synctree

import (
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// WriteSender is the external collaborator RestoreUserWrites drives to
// re-deliver each restored pending write to the transport with its original
// id, per spec §6's restart-recovery step ("re-sending each to the transport
// with the original id"). A nil WriteSender passed to RestoreUserWrites
// simply skips re-sending, for callers with no transport to re-send to.
type WriteSender interface {
	SendWrite(writeID int64, path treepath.Path, node treenode.Node)
	SendMerge(writeID int64, path treepath.Path, children map[string]treenode.Node)
}
