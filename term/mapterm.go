package term

import "github.com/ktkr-us/beamcore/heap"

// MakeMap allocates a map from ordered key/value pairs. Keys must
// already be unique under term equality; MapPut is the usual way to
// build one up incrementally while preserving that invariant.
func MakeMap(h *heap.Heap, keys, values []Term) (Term, error) {
	n := len(keys)
	t, base, err := alloc(h, btMap, n, 2*n)
	if err != nil {
		return 0, err
	}
	words := h.Words()
	for i := 0; i < n; i++ {
		words[base+1+2*i] = heap.Word(keys[i])
		words[base+1+2*i+1] = heap.Word(values[i])
	}
	return t, nil
}

// MapSize returns the number of key/value pairs in a map.
func MapSize(h *heap.Heap, t Term) int {
	_, size, _ := boxedHeader(h, t)
	return size
}

// MapPairs returns a map's keys and values in insertion order.
func MapPairs(h *heap.Heap, t Term) (keys, values []Term) {
	_, size, base := boxedHeader(h, t)
	words := h.Words()
	keys = make([]Term, size)
	values = make([]Term, size)
	for i := 0; i < size; i++ {
		keys[i] = Term(words[base+1+2*i])
		values[i] = Term(words[base+1+2*i+1])
	}
	return
}

// MapGet returns the value for key, if present.
func MapGet(h *heap.Heap, t, key Term) (Term, bool) {
	keys, values := MapPairs(h, t)
	for i, k := range keys {
		if ExactEqual(h, k, key) {
			return values[i], true
		}
	}
	return 0, false
}

// MapPut returns a new map with key bound to value, appending key at the
// end if it is new (preserving insertion order) or replacing its value
// in place if it already exists. The size grows by one exactly when key
// was absent (spec.md §8: "size(put(K, V, M)) = size(M) + (if K ∈ M then
// 0 else 1)").
func MapPut(h *heap.Heap, m, key, value Term) (Term, error) {
	keys, values := MapPairs(h, m)
	for i, k := range keys {
		if ExactEqual(h, k, key) {
			values[i] = value
			return MakeMap(h, keys, values)
		}
	}
	return MakeMap(h, append(keys, key), append(values, value))
}
