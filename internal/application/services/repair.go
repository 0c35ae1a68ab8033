package services

import (
	"encoding/json"
	"fmt"

	"github.com/whattodo/core/internal/domain/entities"
)

// Repair turns whatever was read from a storage area into a usable Document.
// nil, non-object and empty inputs yield the default document. Otherwise each
// field is repaired on its own: a field of the wrong shape takes its default
// value, and malformed elements inside a well-formed field are dropped. Repair
// never fails.
func Repair(raw any) entities.Document {
	record, ok := asRecord(raw)
	if !ok || len(record) == 0 {
		return entities.DefaultDocument()
	}

	def := entities.DefaultDocument()
	doc := entities.Document{
		Filters: repairFilters(record["filters"], def.Filters),
		Tasks:   repairTasks(record["tasks"], def.Tasks),
		Notes:   repairNotes(record["notes"], def.Notes),
		Labels:  repairLabels(record["labels"], def.Labels),
	}
	if migrated, ok := record["migrated"].(bool); ok {
		doc.Migrated = migrated
	}
	if lastMerged, ok := record["lastMerged"].(string); ok {
		doc.LastMerged = lastMerged
	}
	return doc
}

// asRecord accepts the decoded JSON object form as well as typed documents, so
// callers can run an uploaded Document through the same repair pass.
func asRecord(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case entities.Document:
		record, err := EncodeDocument(v)
		return record, err == nil
	case *entities.Document:
		if v == nil {
			return nil, false
		}
		record, err := EncodeDocument(*v)
		return record, err == nil
	default:
		return nil, false
	}
}

func repairFilters(raw any, def []string) []string {
	items, ok := raw.([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := item.(string); ok {
			out = append(out, id)
		}
	}
	return out
}

func repairLabels(raw any, def []entities.Label) []entities.Label {
	items, ok := raw.([]any)
	if !ok {
		return def
	}
	out := make([]entities.Label, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, entities.Label{
			ID:    stringField(fields, "id"),
			Title: stringField(fields, "title"),
			Color: stringField(fields, "color"),
		})
	}
	return out
}

func repairNotes(raw any, def map[string]string) map[string]string {
	items, ok := raw.(map[string]any)
	if !ok {
		return def
	}
	out := make(map[string]string, len(items))
	for day, item := range items {
		if note, ok := item.(string); ok {
			out[day] = note
		}
	}
	return out
}

func repairTasks(raw any, def map[string][]entities.Task) map[string][]entities.Task {
	buckets, ok := raw.(map[string]any)
	if !ok {
		return def
	}
	out := make(map[string][]entities.Task, len(buckets))
	for day, rawBucket := range buckets {
		items, ok := rawBucket.([]any)
		if !ok {
			continue
		}
		bucket := make([]entities.Task, 0, len(items))
		for _, item := range items {
			fields, ok := item.(map[string]any)
			if !ok {
				continue
			}
			bucket = append(bucket, repairTask(fields))
		}
		out[day] = bucket
	}
	return out
}

func repairTask(fields map[string]any) entities.Task {
	task := entities.Task{
		ID:          stringField(fields, "id"),
		Title:       stringField(fields, "title"),
		Description: stringField(fields, "description"),
		URL:         stringField(fields, "url"),
		CreatedAt:   stringField(fields, "created_at"),
		CompletedAt: stringField(fields, "completed_at"),
	}
	task.Completed, _ = fields["completed"].(bool)
	task.Pinned, _ = fields["pinned"].(bool)
	if labels, ok := fields["labels"].([]any); ok {
		for _, l := range labels {
			if id, ok := l.(string); ok {
				task.Labels = append(task.Labels, id)
			}
		}
	}
	return task
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// EncodeDocument renders doc as the record stored in a storage area.
func EncodeDocument(doc entities.Document) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode document record: %w", err)
	}
	return record, nil
}

// encodedSize is the serialized size used for the usage ratio.
func encodedSize(doc entities.Document) int {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0
	}
	return len(data)
}
