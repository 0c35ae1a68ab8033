package services

import (
	"strconv"

	"github.com/whattodo/core/internal/domain/entities"
)

// FlattenRemote converts a record as the remote database hands it back into
// the local field-path shape. The database stores sequences as objects keyed
// "0", "1", ... and omits empty collections; such objects become sequences
// again and missing fields are left for Repair to default.
func FlattenRemote(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out, _ := flattenValue(raw).(map[string]any)
	return out
}

func flattenValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if seq, ok := indexedSequence(val); ok {
			return seq
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = flattenValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = flattenValue(item)
		}
		return out
	default:
		return v
	}
}

// indexedSequence turns {"0": a, "2": c} into [a, nil, c]. Holes stay nil and
// are dropped by Repair as malformed elements.
func indexedSequence(m map[string]any) ([]any, bool) {
	if len(m) == 0 {
		return nil, false
	}
	last := -1
	for k := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || strconv.Itoa(i) != k {
			return nil, false
		}
		if i > last {
			last = i
		}
	}
	// Refuse absurdly sparse keys rather than allocate for them.
	if last >= 2*len(m)+16 {
		return nil, false
	}
	seq := make([]any, last+1)
	for k, item := range m {
		i, _ := strconv.Atoi(k)
		seq[i] = flattenValue(item)
	}
	return seq, true
}

// EncodeRemote renders doc the way the remote database stores it: sequences
// as index-keyed objects, with empty collections and empty strings left out.
func EncodeRemote(doc entities.Document) (map[string]any, error) {
	record, err := EncodeDocument(doc)
	if err != nil {
		return nil, err
	}
	out, _ := encodeRemoteValue(record).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func encodeRemoteValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if enc := encodeRemoteValue(item); enc != nil {
				out[k] = enc
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make(map[string]any, len(val))
		for i, item := range val {
			if enc := encodeRemoteValue(item); enc != nil {
				out[strconv.Itoa(i)] = enc
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return val
	default:
		return v
	}
}

// MergeDocuments deep-merges the flattened remote record into local. Keys
// present in remote win at identical paths, sequences merge index by index,
// and local keys survive wherever remote lacks them. There is no timestamp
// tiebreak: whichever side is merged last wins for overlapping keys.
func MergeDocuments(local entities.Document, remote map[string]any) entities.Document {
	record, err := EncodeDocument(local)
	if err != nil {
		return local
	}
	return Repair(mergeValue(record, remote))
}

func mergeValue(dst, src any) any {
	if src == nil {
		return dst
	}

	switch s := src.(type) {
	case map[string]any:
		d, _ := dst.(map[string]any)
		out := make(map[string]any, len(d)+len(s))
		for k, v := range d {
			out[k] = v
		}
		for k, v := range s {
			out[k] = mergeValue(out[k], v)
		}
		return out
	case []any:
		d, _ := dst.([]any)
		size := len(s)
		if len(d) > size {
			size = len(d)
		}
		out := make([]any, size)
		copy(out, d)
		for i, v := range s {
			out[i] = mergeValue(out[i], v)
		}
		return out
	default:
		return src
	}
}
