package client

// Reconcile merges authoritative records into current by key. A record in
// current whose key matches is replaced in place; unmatched authoritative
// records are appended in their given order. current is not modified.
func Reconcile[T any, K comparable](current, authoritative []T, key func(T) K) []T {
	out := make([]T, len(current), len(current)+len(authoritative))
	copy(out, current)

	index := make(map[K]int, len(out))
	for i, item := range out {
		index[key(item)] = i
	}
	for _, item := range authoritative {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}

// MessageKey identifies a message by the client id it was sent with, or by
// its server id when it has none.
func MessageKey(m Message) string {
	if m.ClientId != "" {
		return "client:" + m.ClientId
	}
	return "id:" + m.Id
}
