// Package resume loads the candidate's JSON Resume and adapts it per target.
package resume

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Resume is a JSON Resume document. Unknown sections are preserved.
type Resume map[string]any

// Basics holds the contact fields other components need.
type Basics struct {
	Name     string
	Label    string
	Email    string
	Phone    string
	URL      string
	Location string            // "City, Region, Country" from basics.location
	Profiles map[string]string // lower-cased network -> url
}

// Load reads and validates the base résumé.
func Load(path string) (Resume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes data and validates it against the embedded schema.
func Parse(data []byte) (Resume, error) {
	var r Resume
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode resume: %w", err)
	}
	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadContext reads the free-form candidate context. A missing file is not an error.
func LoadContext(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read context: %w", err)
	}
	return string(data), nil
}

// Validate checks r against the JSON Resume subset schema.
func Validate(r Resume) error {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(r))
	if err != nil {
		return fmt.Errorf("validate resume: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}

// Basics returns the contact fields, empty when absent.
func (r Resume) Basics() Basics {
	m, _ := r["basics"].(map[string]any)
	str := func(k string) string {
		s, _ := m[k].(string)
		return strings.TrimSpace(s)
	}
	b := Basics{
		Name:     str("name"),
		Label:    str("label"),
		Email:    str("email"),
		Phone:    str("phone"),
		URL:      str("url"),
		Profiles: map[string]string{},
	}

	if loc, ok := m["location"].(map[string]any); ok {
		var parts []string
		for _, k := range []string{"city", "region", "countryCode"} {
			if v, _ := loc[k].(string); strings.TrimSpace(v) != "" {
				parts = append(parts, strings.TrimSpace(v))
			}
		}
		b.Location = strings.Join(parts, ", ")
	}

	profiles, _ := m["profiles"].([]any)
	for _, p := range profiles {
		pm, _ := p.(map[string]any)
		network, _ := pm["network"].(string)
		u, _ := pm["url"].(string)
		if network != "" && u != "" {
			b.Profiles[strings.ToLower(strings.TrimSpace(network))] = strings.TrimSpace(u)
		}
	}
	return b
}

// Clone returns a deep copy.
func (r Resume) Clone() Resume {
	data, err := json.Marshal(r)
	if err != nil {
		return r
	}
	var out Resume
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return r
	}
	return out
}

// JSON returns the indented document used in prompts.
func (r Resume) JSON() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}
