// Package document holds the opaque JSON values that cross the system
// boundary: mission context, task input/output, artifact metadata.
// Payloads stay schemaless; accessors cover the few keys the engine
// itself reads.
package document

import "encoding/json"

// Doc is an opaque JSON object
type Doc map[string]any

// New returns an empty document
func New() Doc {
	return Doc{}
}

// Clone returns a deep copy via a JSON round trip
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		// Doc values come from JSON decoding, so this cannot fire on
		// anything the system produced itself
		out := make(Doc, len(d))
		for k, v := range d {
			out[k] = v
		}
		return out
	}
	var out Doc
	if err := json.Unmarshal(raw, &out); err != nil {
		return Doc{}
	}
	return out
}

// String returns the string at key, empty when missing or not a string
func (d Doc) String(key string) string {
	if d == nil {
		return ""
	}
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Has reports whether key is present
func (d Doc) Has(key string) bool {
	if d == nil {
		return false
	}
	_, ok := d[key]
	return ok
}

// Merge copies every key of other into d, overwriting collisions
func (d Doc) Merge(other Doc) {
	for k, v := range other {
		d[k] = v
	}
}
