package fields

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/toricodesthings/document-verification-service/internal/similarity"
)

//go:embed schemas.yaml
var builtinSchemas []byte

type Kind string

const (
	KindPartyName Kind = "party-name"
	KindAmount    Kind = "amount"
	KindDate      Kind = "date"
	KindLocation  Kind = "location"
)

// FieldSpec describes one field of a document type and how to find it.
type FieldSpec struct {
	Name         string   `yaml:"name"`
	InputKey     string   `yaml:"inputKey"`
	Kind         Kind     `yaml:"kind"`
	Role         string   `yaml:"role,omitempty"`
	Synonym      string   `yaml:"synonym,omitempty"`
	BetweenGroup int      `yaml:"betweenGroup,omitempty"`
	Keywords     []string `yaml:"keywords,omitempty"`
	Label        string   `yaml:"label,omitempty"`

	chain []Strategy
}

// Extract runs the field's strategy chain over text.
func (f FieldSpec) Extract(text, hint string) (string, bool) {
	return FirstMatch(text, hint, f.chain...)
}

type Schema struct {
	Type   string      `yaml:"type"`
	Fields []FieldSpec `yaml:"fields"`
}

// Field returns the field with the given display name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

type Options struct {
	// CandidateThreshold is the exclusive minimum similarity for a fuzzy
	// name candidate.
	CandidateThreshold float64
}

type Registry struct {
	defaultType string
	schemas     map[string]*Schema
}

type registryFile struct {
	Default string   `yaml:"default"`
	Schemas []Schema `yaml:"schemas"`
}

// DefaultRegistry loads the schemas compiled into the binary.
func DefaultRegistry(opts Options) (*Registry, error) {
	return LoadRegistry(builtinSchemas, opts)
}

func LoadRegistryFile(path string, opts Options) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return LoadRegistry(data, opts)
}

func LoadRegistry(data []byte, opts Options) (*Registry, error) {
	if opts.CandidateThreshold <= 0 {
		opts.CandidateThreshold = similarity.DefaultCandidateThreshold
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schemas: %w", err)
	}
	if len(file.Schemas) == 0 {
		return nil, errors.New("schemas: none defined")
	}

	r := &Registry{
		defaultType: normalizeType(file.Default),
		schemas:     make(map[string]*Schema, len(file.Schemas)),
	}
	for i := range file.Schemas {
		s := &file.Schemas[i]
		s.Type = normalizeType(s.Type)
		if s.Type == "" {
			return nil, fmt.Errorf("schemas[%d]: missing type", i)
		}
		if _, dup := r.schemas[s.Type]; dup {
			return nil, fmt.Errorf("schema %q: defined twice", s.Type)
		}
		if len(s.Fields) == 0 {
			return nil, fmt.Errorf("schema %q: no fields", s.Type)
		}
		for j := range s.Fields {
			if err := s.Fields[j].compile(opts); err != nil {
				return nil, fmt.Errorf("schema %q field %q: %w", s.Type, s.Fields[j].Name, err)
			}
		}
		r.schemas[s.Type] = s
	}

	if r.defaultType == "" {
		r.defaultType = file.Schemas[0].Type
	}
	if _, ok := r.schemas[r.defaultType]; !ok {
		return nil, fmt.Errorf("schemas: default type %q not defined", r.defaultType)
	}
	return r, nil
}

// Lookup returns the schema for docType. Unknown types resolve to the default
// schema with ok=false.
func (r *Registry) Lookup(docType string) (s *Schema, ok bool) {
	if s, ok := r.schemas[normalizeType(docType)]; ok {
		return s, true
	}
	return r.schemas[r.defaultType], false
}

func (r *Registry) DefaultType() string { return r.defaultType }

// Types lists the registered document types in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func (f *FieldSpec) compile(opts Options) error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("missing name")
	}
	if f.InputKey == "" {
		return errors.New("missing inputKey")
	}
	patterns := append([]string{f.Role, f.Synonym, f.Label}, f.Keywords...)
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("bad pattern %q: %w", p, err)
		}
	}

	switch f.Kind {
	case KindPartyName:
		if f.Role == "" {
			return errors.New("party-name needs role")
		}
		f.chain = []Strategy{LabelName(f.Role, f.Synonym)}
		if f.BetweenGroup > 0 {
			if f.BetweenGroup > 2 {
				return fmt.Errorf("betweenGroup %d out of range", f.BetweenGroup)
			}
			f.chain = append(f.chain, Between(f.BetweenGroup))
		}
		f.chain = append(f.chain, FuzzyName(opts.CandidateThreshold))
	case KindAmount:
		if f.Label == "" {
			return errors.New("amount needs label")
		}
		f.chain = []Strategy{Amount(f.Label)}
	case KindDate:
		if len(f.Keywords) == 0 && f.Label == "" {
			return errors.New("date needs keywords or label")
		}
		if len(f.Keywords) > 0 {
			f.chain = append(f.chain, DateAfter(f.Keywords))
		}
		if f.Label != "" {
			f.chain = append(f.chain, DateLabel(f.Label))
		}
	case KindLocation:
		f.chain = []Strategy{LocationLines(), LocationFallback()}
	default:
		return fmt.Errorf("unknown kind %q", f.Kind)
	}
	return nil
}
