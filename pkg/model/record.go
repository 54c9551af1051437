// Package model defines the job records read from data files and the
// immutable Job values the rest of jobwork works with.
package model

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Record is one raw job record as it appears in a data file.
//
// The typed fields are read leniently from the decoded object; a field with
// an unexpected JSON type is left at its zero value. The object itself is
// kept so that Canonical reproduces every key of the source, including keys
// the typed fields do not cover.
type Record struct {
	Data      any     `json:"data"`
	Desc      *string `json:"desc"`
	Ds        any     `json:"ds"` // consumed label container
	I         float64 `json:"i"`
	Key       any     `json:"key"`
	Priority  float64 `json:"priority"`
	Serial    bool    `json:"serial"`
	Successed bool    `json:"successed"`
	T         string  `json:"t"`
	Ts        any     `json:"ts"` // produced label container

	// fields is the decoded source object; nil for records built in code.
	fields map[string]any
}

// DecodeRecord parses a single JSON object into a Record. Numbers are kept
// as json.Number so that re-serialization is lossless.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := rec.UnmarshalJSON(data); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DecodeRecords parses a JSON array of records, as served by /api/v1/get.
func DecodeRecords(data []byte) ([]Record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	recs := make([]Record, len(raws))
	for i, raw := range raws {
		if err := recs[i].UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return recs, nil
}

// UnmarshalJSON decodes a JSON object and fills the typed fields from it.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("record is not a JSON object")
	}

	*r = Record{
		Data:   fields["data"],
		Ds:     fields["ds"],
		Key:    fields["key"],
		Ts:     fields["ts"],
		fields: fields,
	}
	if s, ok := fields["desc"].(string); ok {
		r.Desc = &s
	}
	r.T, _ = fields["t"].(string)
	r.Serial, _ = fields["serial"].(bool)
	r.Successed, _ = fields["successed"].(bool)
	if n, ok := fields["i"].(json.Number); ok {
		r.I, _ = n.Float64()
	}
	if n, ok := fields["priority"].(json.Number); ok {
		r.Priority, _ = n.Float64()
	}
	return nil
}

// MarshalJSON writes the canonical form, so records round-trip through
// JSONL, SQLite and the HTTP API unchanged.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.encode()
}

// Canonical returns the deterministic serialization of the record: object
// keys sorted at every level, no HTML escaping. A decoded record keeps
// exactly the keys of its source; a record built in code writes all the
// typed fields.
func (r Record) Canonical() string {
	b, err := r.encode()
	if err != nil {
		// Only reachable for values that did not come from JSON decoding.
		return fmt.Sprintf("%+v", r)
	}
	return string(b)
}

func (r Record) encode() ([]byte, error) {
	var v any = r.fields
	if r.fields == nil {
		type plain Record
		v = plain(r)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Description returns the record's description, or "" when absent.
func (r Record) Description() string {
	if r.Desc == nil {
		return ""
	}
	return *r.Desc
}

// FlattenLabels collects every string leaf of a label container. Containers
// may be a bare string, or arbitrarily nested arrays and objects; non-string
// leaves are discarded. The result is deduplicated, keeps first-seen order,
// and visits object keys in sorted order so it is deterministic.
func FlattenLabels(v any) []string {
	var out []string
	seen := make(map[string]struct{})
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case string:
			if _, ok := seen[x]; ok {
				return
			}
			seen[x] = struct{}{}
			out = append(out, x)
		case []any:
			for _, e := range x {
				walk(e)
			}
		case []string:
			for _, e := range x {
				walk(e)
			}
		case map[string]any:
			keys := make([]string, 0, len(x))
			for k := range x {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(x[k])
			}
		}
	}
	walk(v)
	return out
}
