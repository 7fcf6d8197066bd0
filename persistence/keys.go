package persistence

import (
	"encoding/hex"
	"strings"

	"github.com/jgraettinger/cockroach-encoding/encoding"

	"github.com/jsayol/firebase-js-sdk/treepath"
)

// serverKey renders the persisted server-cache key for a leaf at path, per
// spec §3: "path_as_slash_string + '/'". The root renders as "/", so the
// root prefix matches every server-cache key.
func serverKey(path treepath.Path) string {
	if path.IsEmpty() {
		return "/"
	}
	return path.String() + "/"
}

// serverPrefix renders the prefix used to fetch every leaf at or under
// path.
func serverPrefix(path treepath.Path) string {
	return serverKey(path)
}

// pathFromServerKey strips the store's leading path prefix from a server
// cache key and splits the remainder into components, for reassembling a
// Node from a GetAll(prefix) scan.
func pathFromServerKey(prefix, key string) []string {
	var rest = strings.TrimPrefix(key, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// userWriteKey renders the persisted key for a user write id. Decimal write
// ids do not sort correctly as plain strings once ids reach double digits
// ("10" < "9" lexicographically), so the id is run through cockroach's
// order-preserving varint encoding and hex-encoded for a key alphabet safe
// for both the in-memory and filesystem-backed kvstore adapters; hex
// encoding preserves the byte-for-byte ordering EncodeVarintAscending
// guarantees.
func userWriteKey(writeID int64) string {
	return hex.EncodeToString(encoding.EncodeVarintAscending(nil, writeID))
}

func trackedQueryKey(id uint64) string {
	return "query/" + hex.EncodeToString(encoding.EncodeVarintAscending(nil, int64(id)))
}

func trackedKeySetPrefix(id uint64) string {
	return "key/" + hex.EncodeToString(encoding.EncodeVarintAscending(nil, int64(id))) + "/"
}

func trackedKeySetKey(id uint64, childName string) string {
	return trackedKeySetPrefix(id) + childName
}
