package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Item is a flat export record for one entity.
type Item struct {
	// Fields stores the entity's exported key-value data.
	Fields map[string]any

	// Kind is the entity variant ("profile", "writing", "picture", ...).
	Kind string

	// ID is the entity's numeric identifier on the site.
	ID int64

	// URL is the entity's permalink.
	URL string

	// Timestamp is when this item was created.
	Timestamp time.Time
}

// NewItem creates a new empty Item for an entity.
func NewItem(kind string, id int64, permalink string) *Item {
	return &Item{
		Fields:    make(map[string]any),
		Kind:      kind,
		ID:        id,
		URL:       permalink,
		Timestamp: time.Now(),
	}
}

// Set sets a field value.
func (i *Item) Set(key string, value any) {
	i.Fields[key] = value
}

// SetIf sets a field only when value is not the zero string.
func (i *Item) SetIf(key, value string) {
	if value != "" {
		i.Fields[key] = value
	}
}

// Get retrieves a field value.
func (i *Item) Get(key string) (any, bool) {
	v, ok := i.Fields[key]
	return v, ok
}

// GetString retrieves a field value as a string.
func (i *Item) GetString(key string) string {
	v, ok := i.Fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Has returns true if the field exists.
func (i *Item) Has(key string) bool {
	_, ok := i.Fields[key]
	return ok
}

// Delete removes a field.
func (i *Item) Delete(key string) {
	delete(i.Fields, key)
}

// Keys returns all field names in sorted order.
func (i *Item) Keys() []string {
	keys := make([]string, 0, len(i.Fields))
	for k := range i.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToFlatMap returns a flat map suitable for CSV export.
func (i *Item) ToFlatMap() map[string]string {
	flat := make(map[string]string, len(i.Fields)+4)
	flat["_kind"] = i.Kind
	flat["_id"] = fmt.Sprintf("%d", i.ID)
	flat["_url"] = i.URL
	flat["_timestamp"] = i.Timestamp.Format(time.RFC3339)

	for k, v := range i.Fields {
		switch val := v.(type) {
		case string:
			flat[k] = val
		case []byte:
			flat[k] = string(val)
		default:
			b, _ := json.Marshal(val)
			flat[k] = string(b)
		}
	}
	return flat
}

