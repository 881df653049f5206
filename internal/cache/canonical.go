// Package cache provides content-addressed memoization of finished
// diagram artifacts: canonical JSON keying, a byte-bounded LRU store with
// per-entry TTL, and a single-flight group that coalesces concurrent
// generations of the same key.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// CanonicalJSON renders v as canonical JSON: object keys sorted, no
// insignificant whitespace, numbers in shortest round-trip form. The
// transform is idempotent, so raw JSON already in canonical form hashes
// identically after another pass.
func CanonicalJSON(v any) ([]byte, error) {
	var raw []byte
	switch typed := v.(type) {
	case json.RawMessage:
		raw = typed
	case []byte:
		raw = typed
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonical json: %w", err)
		}
		raw = encoded
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch typed := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if typed {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case json.Number:
		buf.WriteString(canonicalNumber(typed))
	case []any:
		buf.WriteByte('[')
		for i, item := range typed {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodedKey, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(encodedKey)
			buf.WriteByte(':')
			if err := writeCanonical(buf, typed[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical json: unsupported value %T", v)
	}
	return nil
}

// canonicalNumber normalizes a JSON number literal. Integers keep exact
// precision; everything else goes through float64 shortest formatting, so
// "1.50" and "1.5" collapse to the same bytes.
func canonicalNumber(n json.Number) string {
	literal := n.String()
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return literal
}
