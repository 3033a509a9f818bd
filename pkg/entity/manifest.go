package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/janitor/pkg/usage"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ManifestError reports a manifest that could not be loaded or is invalid.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Manifest lists the entities to analyze. It is usually exported from the
// host application (e.g. `php artisan route:list --json`) and kept in a
// yaml, json or toml file.
type Manifest struct {
	Routes       []RouteSpec  `koanf:"routes" json:"routes,omitempty"`
	Views        []string     `koanf:"views" json:"views,omitempty"`
	Translations []string     `koanf:"translations" json:"translations,omitempty"`
	Custom       []CustomSpec `koanf:"entities" json:"entities,omitempty"`
}

// RouteSpec is a route record of a manifest.
type RouteSpec struct {
	Methods []string          `koanf:"methods" json:"methods,omitempty"`
	URI     string            `koanf:"uri" json:"uri"`
	Name    string            `koanf:"name" json:"name,omitempty"`
	Action  string            `koanf:"action" json:"action,omitempty"`
	Pattern string            `koanf:"pattern" json:"pattern,omitempty"`
	Wheres  map[string]string `koanf:"wheres" json:"wheres,omitempty"`
}

// CustomSpec is an entity record with explicit needles.
type CustomSpec struct {
	Kind    string       `koanf:"kind" json:"kind,omitempty"`
	Name    string       `koanf:"name" json:"name"`
	ID      string       `koanf:"id" json:"id,omitempty"`
	Needles []NeedleSpec `koanf:"needles" json:"needles"`
}

// NeedleSpec is a needle record of a manifest.
type NeedleSpec struct {
	Weight float64 `koanf:"weight" json:"weight"`
	Text   string  `koanf:"text" json:"text"`
	Regex  bool    `koanf:"regex" json:"regex,omitempty"`
}

// Entities converts the manifest into entities, sorted by kind and identifier.
func (m *Manifest) Entities() []usage.Entity {
	out := make([]usage.Entity, 0, len(m.Routes)+len(m.Views)+len(m.Translations)+len(m.Custom))
	for _, r := range m.Routes {
		out = append(out, Route{
			Methods:   r.Methods,
			URI:       r.URI,
			RouteName: r.Name,
			Action:    r.Action,
			Pattern:   r.Pattern,
			Wheres:    r.Wheres,
		})
	}
	for _, v := range m.Views {
		out = append(out, View{Template: v})
	}
	for _, k := range m.Translations {
		out = append(out, TranslationKey{Key: k})
	}
	for _, c := range m.Custom {
		needles := make([]usage.Needle, len(c.Needles))
		for i, n := range c.Needles {
			needles[i] = usage.Needle{Weight: n.Weight, Text: n.Text, Regex: n.Regex}
		}
		out = append(out, Custom{EntityKind: c.Kind, EntityName: c.Name, ID: c.ID, Needles: needles})
	}
	Sort(out)
	return out
}

// LoadManifest reads and validates a manifest file. The format follows the
// extension: .yaml/.yml, .json or .toml.
func LoadManifest(path string) (*Manifest, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return loadManifest(path, file.Provider(path), parser)
}

// ParseManifest reads and validates manifest bytes in the given format
// ("yaml", "json" or "toml").
func ParseManifest(data []byte, format string) (*Manifest, error) {
	parser, err := parserFor("manifest." + strings.TrimPrefix(format, "."))
	if err != nil {
		return nil, &ManifestError{Path: "<inline>", Err: err}
	}
	return loadManifest("<inline>", bytesProvider(data), parser)
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return koanfjson.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", filepath.Ext(path))
	}
}

func loadManifest(path string, provider koanf.Provider, parser koanf.Parser) (*Manifest, error) {
	k := koanf.New(".")
	if err := k.Load(provider, parser); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}

	if err := validateManifest(k.Raw()); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}

	var m Manifest
	if err := k.Unmarshal("", &m); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return &m, nil
}

// bytesProvider serves an in-memory document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) {
	return b, nil
}

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytes provider does not support Read()")
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

const schemaURL = "https://janitor.local/manifest.schema.json"

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(manifestSchema))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// validateManifest checks the raw document against the manifest schema. The
// document goes through JSON so yaml and toml values get JSON types.
func validateManifest(raw map[string]interface{}) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
