package provenance

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Digest computes a stable SHA-256 identity for a record: canonical
// JSON (sorted keys, NFC-normalized strings, no floats) of the fields
// that define what the record reconstructs. Two captures of the same
// environment digest identically regardless of key order or Unicode
// normalization in the file; the journal stores the digest so a later
// run can detect that the provenance changed under an existing setup
// directory.
func Digest(rec *Record) (string, error) {
	deps := make([]any, len(rec.Dependencies))
	for i, d := range rec.Dependencies {
		deps[i] = map[string]any{
			"name":     d.Name,
			"version":  d.Version,
			"location": d.Location,
		}
	}
	plugins := make([]any, len(rec.Plugins))
	for i, p := range rec.Plugins {
		plugins[i] = map[string]any{
			"name":     p.LocalName,
			"location": p.Location,
			"revision": p.Revision,
		}
	}

	doc := map[string]any{
		"id":           rec.ID,
		"version":      rec.Version,
		"dependencies": deps,
		"plugins":      plugins,
	}
	if rec.Python != nil {
		python := map[string]any{
			"version":  rec.Python.Version,
			"platform": rec.Python.Platform,
		}
		if rec.Python.Executable != "" {
			python["executable"] = rec.Python.Executable
		}
		doc["python"] = python
	}
	if rec.MapClientVersion != "" {
		doc["mapclient"] = rec.MapClientVersion
	}

	canonical, err := marshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("canonicalize record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// marshalCanonical serializes a value deterministically: object keys
// sorted bytewise, strings NFC-normalized with HTML escaping disabled,
// no floats and no nulls. This is the only serialization digests are
// computed over.
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return canonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := canonicalString(k)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("value for %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// canonicalString encodes a string NFC-normalized with HTML escaping
// disabled, so "<", ">" and "&" survive verbatim.
func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
