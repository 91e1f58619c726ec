// Package diff compares two parsed JSON configuration snapshots and reports
// field-level differences as flat path/old/new records.
package diff

import (
	"sort"
	"strconv"
	"strings"
)

const (
	// SecretsCategory is the category whose arrays are pre-filtered before comparison.
	SecretsCategory = "Secrets"

	// ManagedSecretPrefix marks platform-managed secrets that are never user-meaningful.
	ManagedSecretPrefix = "SUPABASE_"

	rootPath  = "root"
	nullValue = "null"
)

// Change represents a single field-level difference between two configurations
type Change struct {
	Path     string `json:"key"`
	OldValue string `json:"source_value"`
	NewValue string `json:"dest_value"`
}

// Result groups the changes found for one configuration category
type Result struct {
	Name    string   `json:"name"`
	Changes []Change `json:"diffs"`
}

// Compare compares two parsed JSON values for the given category and returns
// the differences. The boolean is false when both values are identical.
func Compare(category string, source, dest any) (*Result, bool) {
	changes := Changes(category, source, dest)
	if len(changes) == 0 {
		return nil, false
	}

	return &Result{
		Name:    category,
		Changes: changes,
	}, true
}

// Changes returns the flat list of differences between source and dest.
func Changes(category string, source, dest any) []Change {
	if category == SecretsCategory {
		src, srcOK := source.([]any)
		dst, dstOK := dest.([]any)
		if srcOK && dstOK {
			source = dropManagedSecrets(src)
			dest = dropManagedSecrets(dst)
		}
	}

	c := &comparer{}
	c.compare("", source, dest)
	return c.changes
}

func dropManagedSecrets(items []any) []any {
	kept := make([]any, 0, len(items))
	for _, item := range items {
		if isManagedSecret(item) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func isManagedSecret(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	name, ok := obj["name"].(string)
	return ok && strings.HasPrefix(name, ManagedSecretPrefix)
}

type comparer struct {
	changes []Change
}

func (c *comparer) record(path string, oldValue, newValue string) {
	c.changes = append(c.changes, Change{
		Path:     path,
		OldValue: oldValue,
		NewValue: newValue,
	})
}

func (c *comparer) removed(path string, v any) {
	c.record(path, Render(v), nullValue)
}

func (c *comparer) added(path string, v any) {
	c.record(path, nullValue, Render(v))
}

// compare recursively compares two values and records their differences
func (c *comparer) compare(path string, source, dest any) {
	srcArr, srcIsArr := source.([]any)
	dstArr, dstIsArr := dest.([]any)
	if srcIsArr && dstIsArr {
		c.compareArrays(path, srcArr, dstArr)
		return
	}

	srcObj, srcIsObj := source.(map[string]any)
	dstObj, dstIsObj := dest.(map[string]any)
	if srcIsObj && dstIsObj {
		c.compareObjects(path, srcObj, dstObj)
		return
	}

	if !Equal(source, dest) {
		if path == "" {
			path = rootPath
		}
		c.record(path, Render(source), Render(dest))
	}
}

func (c *comparer) compareObjects(path string, source, dest map[string]any) {
	for _, key := range sortedKeys(source) {
		fieldPath := joinPath(path, key)
		destValue, exists := dest[key]
		if !exists {
			c.removed(fieldPath, source[key])
			continue
		}
		c.compare(fieldPath, source[key], destValue)
	}

	for _, key := range sortedKeys(dest) {
		if _, exists := source[key]; !exists {
			c.added(joinPath(path, key), dest[key])
		}
	}
}

func (c *comparer) compareArrays(path string, source, dest []any) {
	srcIDs := identityMap(source)
	dstIDs := identityMap(dest)

	switch {
	case srcIDs != nil && dstIDs != nil:
		c.compareByID(path, srcIDs, dstIDs)
	case srcIDs != nil:
		for _, id := range sortedKeys(srcIDs) {
			c.removed(idPath(path, id), srcIDs[id])
		}
	case dstIDs != nil:
		for _, id := range sortedKeys(dstIDs) {
			c.added(idPath(path, id), dstIDs[id])
		}
	default:
		c.compareByIndex(path, source, dest)
	}
}

// identityMap indexes the elements carrying a string "id" field. It returns
// nil when no element qualifies; later duplicates replace earlier ones.
func identityMap(items []any) map[string]any {
	var ids map[string]any
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, ok := obj["id"].(string)
		if !ok {
			continue
		}
		if ids == nil {
			ids = make(map[string]any)
		}
		ids[id] = item
	}
	return ids
}

func (c *comparer) compareByID(path string, source, dest map[string]any) {
	for _, id := range sortedKeys(source) {
		itemPath := idPath(path, id)
		destItem, exists := dest[id]
		if !exists {
			c.removed(itemPath, source[id])
			continue
		}
		c.compare(itemPath, source[id], destItem)
	}

	for _, id := range sortedKeys(dest) {
		if _, exists := source[id]; !exists {
			c.added(idPath(path, id), dest[id])
		}
	}
}

// compareByIndex pairs elements by position. Mismatched objects are reported
// whole: without an identity there is no reliable per-field pairing.
func (c *comparer) compareByIndex(path string, source, dest []any) {
	for i := range max(len(source), len(dest)) {
		itemPath := path + "[" + strconv.Itoa(i) + "]"

		switch {
		case i >= len(dest):
			c.removed(itemPath, source[i])
		case i >= len(source):
			c.added(itemPath, dest[i])
		default:
			_, srcIsObj := source[i].(map[string]any)
			_, dstIsObj := dest[i].(map[string]any)
			if srcIsObj && dstIsObj {
				if !Equal(source[i], dest[i]) {
					c.record(itemPath, Render(source[i]), Render(dest[i]))
				}
				continue
			}
			c.compare(itemPath, source[i], dest[i])
		}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func idPath(path, id string) string {
	return joinPath(path, "id:"+id)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
