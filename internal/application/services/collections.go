package services

// identifiable is satisfied by anything stored in an id-keyed list.
type identifiable interface {
	GetID() string
}

// appendItem returns a new slice with item at the end.
func appendItem[T identifiable](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

// prependItem returns a new slice with item at the head.
func prependItem[T identifiable](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

// updateItem returns a new slice with the first item sharing item's id
// replaced. found is false, and items is returned untouched, when no id matches.
func updateItem[T identifiable](items []T, item T) (out []T, found bool) {
	idx := indexOf(items, item.GetID())
	if idx < 0 {
		return items, false
	}
	out = make([]T, len(items))
	copy(out, items)
	out[idx] = item
	return out, true
}

// removeItem returns a new slice without any item carrying id.
func removeItem[T identifiable](items []T, id string) (out []T, found bool) {
	out = make([]T, 0, len(items))
	for _, it := range items {
		if it.GetID() == id {
			found = true
			continue
		}
		out = append(out, it)
	}
	if !found {
		return items, false
	}
	return out, true
}

func indexOf[T identifiable](items []T, id string) int {
	for i, it := range items {
		if it.GetID() == id {
			return i
		}
	}
	return -1
}
