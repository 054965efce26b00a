package graph

import (
	"bytes"
	"encoding/json"

	"github.com/osfiler/osfiler/pkg/apperror"
)

// DataPatch describes how a write changes a node's or relationship's data.
// The zero value leaves data untouched.
type DataPatch struct {
	values  Data
	replace bool
}

// MergeData returns a patch that overwrites the given keys and keeps the rest.
func MergeData(values Data) DataPatch {
	return DataPatch{values: values}
}

// ReplaceData returns a patch that discards the existing data.
func ReplaceData(values Data) DataPatch {
	return DataPatch{values: values, replace: true}
}

// IsZero reports whether the patch changes nothing.
func (p DataPatch) IsZero() bool {
	return !p.replace && len(p.values) == 0
}

// Apply returns the data that results from applying p to current.
// current is not modified.
func (p DataPatch) Apply(current Data) Data {
	if p.replace {
		return p.values.Clone()
	}
	out := current.Clone()
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// ParseDataPatch interprets a raw JSON data payload. An object is merged
// key by key; a string holding a JSON object replaces the data wholesale;
// null or absent leaves it alone. Anything else is Invalid.
func ParseDataPatch(raw json.RawMessage) (DataPatch, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return DataPatch{}, nil
	}

	switch raw[0] {
	case '{':
		var values Data
		if err := json.Unmarshal(raw, &values); err != nil {
			return DataPatch{}, invalidData(err)
		}
		return MergeData(values), nil
	case '"':
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return DataPatch{}, invalidData(err)
		}
		var values Data
		if err := json.Unmarshal([]byte(encoded), &values); err != nil || values == nil {
			return DataPatch{}, invalidData(err)
		}
		return ReplaceData(values), nil
	default:
		return DataPatch{}, apperror.NewInvalid("data must be a JSON object")
	}
}

// ParseData interprets the data payload of a create request. Both accepted
// forms yield the initial data.
func ParseData(raw json.RawMessage) (Data, error) {
	p, err := ParseDataPatch(raw)
	if err != nil {
		return nil, err
	}
	return p.Apply(nil), nil
}

func invalidData(err error) *apperror.Error {
	e := apperror.NewInvalid("data is not valid JSON")
	if err != nil {
		return e.WithInternal(err)
	}
	return e
}
