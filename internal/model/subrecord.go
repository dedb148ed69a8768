package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SUB-RECORD ENCODING:
// Children and the plus-one live in text columns as JSON. The canonical form
// written by this package is a JSON array for children and a JSON object (or
// SQL NULL) for the plus-one.
//
// Older rows were written in several shapes, so the decoders accept:
//   - the canonical value:            [{"name":"Ava","age":"4"}]
//   - a JSON string wrapping it:      "[{\"name\":\"Ava\",\"age\":\"4\"}]"
//   - a single object for children:   {"name":"Ava","age":4}
//   - empty text or null:             no sub-records
//
// maxNesting bounds how many string layers are unwrapped.
const maxNesting = 3

// EncodeChildren returns the canonical JSON for a children list.
// A nil or empty list encodes as "[]".
func EncodeChildren(children []Child) (string, error) {
	if len(children) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(children)
	if err != nil {
		return "", fmt.Errorf("encoding children: %w", err)
	}
	return string(b), nil
}

// EncodePlusOne returns the canonical JSON for a plus-one, or "" when absent.
func EncodePlusOne(p *PlusOne) (string, error) {
	if p == nil {
		return "", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding plus-one: %w", err)
	}
	return string(b), nil
}

// DecodeChildren parses any stored representation of a children list.
func DecodeChildren(raw []byte) ([]Child, error) {
	return decodeChildren(raw, 0)
}

func decodeChildren(raw []byte, depth int) ([]Child, error) {
	raw = bytes.TrimSpace(raw)
	if isEmptyJSON(raw) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		inner, err := unwrapString(raw, depth)
		if err != nil {
			return nil, fmt.Errorf("decoding children: %w", err)
		}
		return decodeChildren(inner, depth+1)
	case '[':
		var children []Child
		if err := json.Unmarshal(raw, &children); err != nil {
			return nil, fmt.Errorf("decoding children: %w", err)
		}
		if len(children) == 0 {
			return nil, nil
		}
		return children, nil
	case '{':
		var child Child
		if err := json.Unmarshal(raw, &child); err != nil {
			return nil, fmt.Errorf("decoding children: %w", err)
		}
		return []Child{child}, nil
	default:
		return nil, fmt.Errorf("decoding children: unexpected value %q", truncate(raw))
	}
}

// DecodePlusOne parses any stored representation of a plus-one.
// A plus-one with neither name nor dietary text decodes as nil.
func DecodePlusOne(raw []byte) (*PlusOne, error) {
	return decodePlusOne(raw, 0)
}

func decodePlusOne(raw []byte, depth int) (*PlusOne, error) {
	raw = bytes.TrimSpace(raw)
	if isEmptyJSON(raw) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		inner, err := unwrapString(raw, depth)
		if err != nil {
			return nil, fmt.Errorf("decoding plus-one: %w", err)
		}
		return decodePlusOne(inner, depth+1)
	case '{':
		var p PlusOne
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding plus-one: %w", err)
		}
		if p.Name == "" && p.Dietary == "" {
			return nil, nil
		}
		return &p, nil
	case '[':
		var list []PlusOne
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decoding plus-one: %w", err)
		}
		if len(list) == 0 || (list[0].Name == "" && list[0].Dietary == "") {
			return nil, nil
		}
		return &list[0], nil
	default:
		return nil, fmt.Errorf("decoding plus-one: unexpected value %q", truncate(raw))
	}
}

func isEmptyJSON(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`))
}

func unwrapString(raw []byte, depth int) ([]byte, error) {
	if depth >= maxNesting {
		return nil, fmt.Errorf("value nested more than %d levels", maxNesting)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func truncate(raw []byte) string {
	if len(raw) > 32 {
		return string(raw[:32]) + "..."
	}
	return string(raw)
}
