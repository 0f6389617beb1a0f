package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	yaml "go.yaml.in/yaml/v3"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
)

// ScreensFile is the on-disk screen catalogue, in YAML or JSON.
//
//	include_defaults: true
//	screens:
//	  - name: marks
//	    endpoints: [/api/marks]
//	    interval: 2m
//	    topics: [marks]
type ScreensFile struct {
	// IncludeDefaults starts from the built-in catalogue; file entries
	// replace defaults with the same name.
	IncludeDefaults bool           `json:"include_defaults"`
	Screens         []ScreenConfig `json:"screens"`
}

// ScreenConfig is one screen entry of a ScreensFile.
type ScreenConfig struct {
	Name      string   `json:"name"`
	Endpoints []string `json:"endpoints"`
	Interval  Interval `json:"interval,omitempty"`
	Topics    []string `json:"topics,omitempty"`
}

// LoadScreens reads and validates the screen file at path. The returned hash
// identifies the file content so reloads of unchanged files can be skipped.
func LoadScreens(path string) ([]entity.ScreenDefinition, uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading screens file: %w", err)
	}
	defs, err := ParseScreens(path, b)
	if err != nil {
		return nil, 0, err
	}
	return defs, xxhash.Sum64(b), nil
}

// ParseScreens decodes data as the format implied by path's extension.
// Unknown fields and trailing documents are rejected.
func ParseScreens(path string, data []byte) ([]entity.ScreenDefinition, error) {
	jb, err := coerceToJSON(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	var file ScreensFile
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", domain.ErrInvalidConfig, filepath.Base(path), err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("%w: trailing data in %s", domain.ErrInvalidConfig, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	return file.Definitions()
}

// Definitions converts the file into validated screen definitions.
func (f ScreensFile) Definitions() ([]entity.ScreenDefinition, error) {
	var defs []entity.ScreenDefinition
	index := make(map[string]int)
	if f.IncludeDefaults {
		for _, d := range entity.DefaultScreens() {
			index[d.Name] = len(defs)
			defs = append(defs, d)
		}
	}

	seen := make(map[string]bool, len(f.Screens))
	for i, sc := range f.Screens {
		def, err := sc.definition()
		if err != nil {
			return nil, fmt.Errorf("%w: screens[%d]: %v", domain.ErrInvalidConfig, i, err)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: screens[%d]: duplicate screen %q", domain.ErrInvalidConfig, i, def.Name)
		}
		seen[def.Name] = true

		if at, ok := index[def.Name]; ok {
			defs[at] = def
			continue
		}
		index[def.Name] = len(defs)
		defs = append(defs, def)
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no screens defined", domain.ErrInvalidConfig)
	}
	return defs, nil
}

func (sc ScreenConfig) definition() (entity.ScreenDefinition, error) {
	interval := time.Duration(sc.Interval)
	if interval == 0 {
		interval = domain.DefaultScreenInterval
	}
	def := entity.ScreenDefinition{
		Name:      sc.Name,
		Endpoints: append([]string(nil), sc.Endpoints...),
		Interval:  interval,
	}
	for _, t := range sc.Topics {
		def.Topics = append(def.Topics, entity.Topic(t))
	}
	if err := def.Validate(); err != nil {
		return entity.ScreenDefinition{}, err
	}
	return def, nil
}

// Interval is a refresh cadence written as a Go duration ("5m") or as a
// number of seconds (300). Zero means the default cadence.
type Interval time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (i *Interval) UnmarshalJSON(b []byte) error {
	var secs float64
	if err := json.Unmarshal(b, &secs); err == nil {
		*i = Interval(time.Duration(secs * float64(time.Second)))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("interval must be a duration string or seconds: %s", b)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*i = 0
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		if n, nerr := strconv.Atoi(s); nerr == nil {
			d = time.Duration(n) * time.Second
		} else {
			return fmt.Errorf("invalid interval %q", s)
		}
	}
	*i = Interval(d)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(i).String())
}

// coerceToJSON converts YAML input to JSON so both formats share the strict
// JSON decoder. Files without a .yaml/.yml extension are taken as JSON.
func coerceToJSON(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
