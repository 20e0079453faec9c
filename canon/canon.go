// Package canon implements the canonical-key serialization rule used for
// cache-key derivation throughout the reference caching library (spec
// §4.8): JSON encoding with sorted object keys, no insignificant
// whitespace, and stable number formatting.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Key serializes v under the canonical rule and returns the resulting
// string. Equal values (including map key order, which Go's encoding/json
// already sorts for map[string]T) always produce identical output, which
// is what lets repeated Set calls with equivalent inputs mint the same
// reference identifier.
func Key(v any) (string, error) {
	normalized, err := normalize(v)
	if err != nil {
		return "", fmt.Errorf("canon: normalize: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return "", fmt.Errorf("canon: encode: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Of is a convenience wrapper that composes zero or more values into one
// canonical key, e.g. a tool name plus its resolved arguments. It is
// equivalent to Key of a slice containing each part in order.
func Of(parts ...any) (string, error) {
	return Key(parts)
}

// normalize round-trips v through JSON once so maps with non-string-typed
// interface{} keys, structs, and other Go-native shapes all collapse to
// the same map[string]any / []any / scalar tree that encoding/json's
// default map-key sort already canonicalizes.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return sortedCopy(out), nil
}

// sortedCopy deep-copies out, rendering map[string]any values via a
// stable-ordered structure so two semantically equal maps always
// serialize identically regardless of original key order (encoding/json
// already sorts map[string]any keys on Marshal, so this mainly documents
// the invariant and handles nested slices/maps uniformly).
func sortedCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = sortedCopy(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortedCopy(e)
		}
		return out
	default:
		return v
	}
}
