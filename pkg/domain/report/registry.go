package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/playreport/api/pkg/domain/scope"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// catalogFile is the on-disk layout of a template catalog.
type catalogFile struct {
	Templates []TemplateSpec `yaml:"templates"`
}

// Registry is the immutable set of report templates loaded at start.
type Registry struct {
	byID    map[string]*Template
	ordered []*Template
}

// NewRegistry validates the specifications and builds a Registry.
func NewRegistry(specs []TemplateSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: catalog contains no templates", ErrInvalidTemplate)
	}

	r := &Registry{
		byID:    make(map[string]*Template, len(specs)),
		ordered: make([]*Template, 0, len(specs)),
	}
	for _, spec := range specs {
		t, err := NewTemplate(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byID[t.ID()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTemplate, t.ID())
		}
		r.byID[t.ID()] = t
		r.ordered = append(r.ordered, t)
	}

	slices.SortStableFunc(r.ordered, func(a, b *Template) int {
		if a.DisplayOrder() != b.DisplayOrder() {
			return a.DisplayOrder() - b.DisplayOrder()
		}
		if a.ID() < b.ID() {
			return -1
		}
		if a.ID() > b.ID() {
			return 1
		}
		return 0
	})
	return r, nil
}

// LoadRegistry reads a YAML catalog. Unknown keys are rejected.
func LoadRegistry(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode catalog: %v", ErrInvalidTemplate, err)
	}
	return NewRegistry(file.Templates)
}

// LoadRegistryFile reads a YAML catalog from path.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template catalog: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// DefaultRegistry returns the built-in template catalog.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(bytes.NewReader(defaultCatalog))
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (*Template, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, &UnknownTemplateError{TemplateID: id}
	}
	return t, nil
}

// GetFor returns the template if it exists and is visible to role.
// Hidden templates are reported as unknown.
func (r *Registry) GetFor(id string, role scope.Role) (*Template, error) {
	t, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !t.VisibleTo(role) {
		return nil, &UnknownTemplateError{TemplateID: id}
	}
	return t, nil
}

// List returns all templates in catalog order.
func (r *Registry) List() []*Template {
	return slices.Clone(r.ordered)
}

// ListFor returns the templates visible to role in catalog order.
func (r *Registry) ListFor(role scope.Role) []*Template {
	out := make([]*Template, 0, len(r.ordered))
	for _, t := range r.ordered {
		if t.VisibleTo(role) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	return len(r.ordered)
}
