package treenode

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// hashNode computes a stable content hash by walking the node's children in
// key order and hashing a canonical textual encoding that includes each
// node's priority. This
// backs the ListenProvider hashFn revalidation hook described in spec §6.
func hashNode(n Node) string {
	var h = sha1.New()
	writeHash(h, n)
	return hex.EncodeToString(h.Sum(nil))
}

func writeHash(h interface{ Write([]byte) (int, error) }, n Node) {
	if !n.Priority().IsNone() {
		fmt.Fprintf(h, "priority:%v:", n.Priority().Export())
	}
	if n.IsLeaf() {
		fmt.Fprintf(h, "leaf:%v", n.Value())
		return
	}
	if n.IsEmpty() {
		h.Write([]byte("empty"))
		return
	}
	n.ForEachChild(KeyComparator, false, func(key string, child Node) bool {
		fmt.Fprintf(h, ":%s=", key)
		writeHash(h, child)
		return true
	})
}
