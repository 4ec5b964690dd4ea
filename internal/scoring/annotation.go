package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Annotation is one scored element of a batch response.
type Annotation struct {
	Position int // 1-based position within the batch
	Score    int
	Reason   string
	Angle    string
}

// wrapperKeys are the object keys under which models tend to nest the list.
var wrapperKeys = []string{"jobs", "companies", "results", "items"}

// ParseAnnotations normalises a batch response into a list. Accepted shapes
// are a list of annotation objects, an object wrapping such a list under one
// of wrapperKeys, or a single annotation object. Elements that are not
// objects are dropped.
func ParseAnnotations(raw json.RawMessage) ([]Annotation, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty scoring response")
	}

	var elems []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("decode annotation list: %w", err)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode annotation object: %w", err)
		}
		elems = []json.RawMessage{raw}
		for _, key := range wrapperKeys {
			v, ok := obj[key]
			if !ok {
				continue
			}
			var list []json.RawMessage
			if err := json.Unmarshal(v, &list); err == nil {
				elems = list
			}
			break
		}
	default:
		return nil, fmt.Errorf("unexpected scoring response shape: %.40s", raw)
	}

	out := make([]Annotation, 0, len(elems))
	for _, e := range elems {
		if a, ok := decodeAnnotation(e); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func decodeAnnotation(raw json.RawMessage) (Annotation, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Annotation{}, false
	}
	a := Annotation{Position: 1}
	for _, key := range []string{"index", "position"} {
		if v, ok := fields[key]; ok {
			if n, ok := flexInt(v); ok {
				a.Position = n
			}
			break
		}
	}
	if v, ok := fields["score"]; ok {
		n, _ := flexInt(v)
		a.Score = min(max(n, 0), 100)
	}
	a.Reason = flexString(fields["reason"])
	a.Angle = flexString(fields["angle"])
	return a, true
}

// flexInt accepts a JSON number or a numeric string.
func flexInt(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(math.Round(f)), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(f)), true
}

func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
