package treenode

import "strconv"

// CompareKeys orders child keys the way the source system does: integer-
// looking keys sort numerically and precede all non-integer keys, which in
// turn sort lexicographically. This lets object-shaped nodes stand in for
// arrays ("0", "1", "2", ...) without surprising iteration order.
func CompareKeys(a, b string) int {
	ai, aok := asIndex(a)
	bi, bok := asIndex(b)

	switch {
	case aok && bok:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	case aok:
		return -1
	case bok:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asIndex(key string) (int64, bool) {
	if key == "" || len(key) > 1 && key[0] == '0' {
		return 0, false
	}
	var n, err = strconv.ParseInt(key, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
