package pqclaimlog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Canonicalize serializes an arbitrary JSON-shaped value (as produced
// by json.Unmarshal into `any`, or passed directly as a
// map[string]any / []any / scalar) into the deterministic byte
// encoding required by spec §4.4: object keys sorted lexicographically
// at every level, arrays kept in order, numbers printed without a
// trailing zero fraction, no insignificant whitespace.
//
// Canonicalize is idempotent: canonicalizing already-canonical bytes
// reproduces them unchanged (spec §8 property 9), since re-decoding
// canonical JSON and re-encoding it deterministically is a fixed point.
func Canonicalize(payload any) ([]byte, error) {
	normalized, err := toCanonicalValue(payload)
	if err != nil {
		return nil, fmt.Errorf("pqclaimlog: canonicalize: %w", err)
	}
	var buf []byte
	buf, err = appendCanonical(buf, normalized)
	if err != nil {
		return nil, fmt.Errorf("pqclaimlog: canonicalize: %w", err)
	}
	return buf, nil
}

// toCanonicalValue round-trips payload through encoding/json so that
// Go structs, maps with non-string-any values, and raw JSON bytes are
// all reduced to the same tree of map[string]any / []any / scalars
// before canonical encoding.
func toCanonicalValue(payload any) (any, error) {
	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	}
	if raw != nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if t {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case float64:
		return appendCanonicalNumber(buf, t), nil
	case string:
		s, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return append(buf, s...), nil
	case []any:
		buf = append(buf, '[')
		for i, e := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendCanonical(buf, e)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyBytes...)
			buf = append(buf, ':')
			buf, err = appendCanonical(buf, t[k])
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, fmt.Errorf("unsupported canonical value type %T", v)
	}
}

// appendCanonicalNumber renders a float64 the way encoding/json decoded
// it, but without a trailing ".0" for integral values, matching spec
// §4.4's "numbers emitted without trailing zero fraction".
func appendCanonicalNumber(buf []byte, f float64) []byte {
	if f == float64(int64(f)) {
		return strconv.AppendInt(buf, int64(f), 10)
	}
	return strconv.AppendFloat(buf, f, 'g', -1, 64)
}
