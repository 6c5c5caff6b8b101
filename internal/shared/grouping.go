package shared

// GroupBy buckets items by the key function, preserving the input order
// inside each bucket. Keys returns the bucket keys in first-encountered
// order so callers can iterate deterministically.
func GroupBy[K comparable, T any](items []T, key func(T) K) (map[K][]T, []K) {
	buckets := make(map[K][]T, len(items))
	keys := make([]K, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], item)
	}
	return buckets, keys
}
