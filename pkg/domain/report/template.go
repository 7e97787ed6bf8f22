package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/playreport/api/pkg/domain/scope"
)

// =============================================================================
// Template Specification (configuration shape)
// =============================================================================

// TemplateSpec is the configuration form of a report template.
type TemplateSpec struct {
	ID           string                  `yaml:"id"`
	Name         string                  `yaml:"name"`
	Description  string                  `yaml:"description"`
	Category     string                  `yaml:"category"`
	DisplayOrder int                     `yaml:"display_order"`
	AdminOnly    bool                    `yaml:"admin_only"`
	Source       string                  `yaml:"source"`
	Columns      []ColumnSpec            `yaml:"columns"`
	FilterFields []string                `yaml:"filter_fields"`
	GroupFields  []string                `yaml:"group_fields"`
	DefaultOrder []OrderBy               `yaml:"default_order"`
	Scope        map[scope.Target]string `yaml:"scope"`

	// CacheTTL overrides the result cache sliding window for this template.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ColumnSpec is the configuration form of a template column.
type ColumnSpec struct {
	Name      string `yaml:"name"`
	Expr      string `yaml:"expr"`
	Aggregate string `yaml:"aggregate"`
}

// =============================================================================
// Template Entity
// =============================================================================

// Column is one selectable output of a template. Expr and Aggregate are
// trusted SQL expressions taken from configuration.
type Column struct {
	Name      string
	Expr      string
	Aggregate string
}

// Template is a predeclared report shape. It has no mutators; accessors
// return copies so a loaded template cannot change at runtime.
type Template struct {
	id           string
	name         string
	description  string
	category     string
	displayOrder int
	adminOnly    bool
	source       string
	columns      []Column
	columnIndex  map[string]int
	filterFields map[string]struct{}
	groupFields  map[string]struct{}
	defaultOrder []OrderBy
	scopeColumns map[scope.Target]string
	cacheTTL     time.Duration
}

// NewTemplate validates a specification and builds an immutable Template.
func NewTemplate(spec TemplateSpec) (*Template, error) {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidTemplate)
	}
	if strings.TrimSpace(spec.Source) == "" {
		return nil, fmt.Errorf("%w: template %q has no source", ErrInvalidTemplate, id)
	}
	if spec.CacheTTL < 0 {
		return nil, fmt.Errorf("%w: template %q has a negative cache_ttl", ErrInvalidTemplate, id)
	}
	if len(spec.Columns) == 0 {
		return nil, fmt.Errorf("%w: template %q has no columns", ErrInvalidTemplate, id)
	}

	t := &Template{
		id:           id,
		name:         spec.Name,
		description:  spec.Description,
		category:     spec.Category,
		displayOrder: spec.DisplayOrder,
		adminOnly:    spec.AdminOnly,
		source:       strings.TrimSpace(spec.Source),
		columns:      make([]Column, 0, len(spec.Columns)),
		columnIndex:  make(map[string]int, len(spec.Columns)),
		filterFields: make(map[string]struct{}, len(spec.FilterFields)),
		groupFields:  make(map[string]struct{}, len(spec.GroupFields)),
		scopeColumns: make(map[scope.Target]string, len(spec.Scope)),
		cacheTTL:     spec.CacheTTL,
	}

	for _, c := range spec.Columns {
		if c.Name == "" || c.Expr == "" {
			return nil, fmt.Errorf("%w: template %q has a column without name or expr", ErrInvalidTemplate, id)
		}
		if _, dup := t.columnIndex[c.Name]; dup {
			return nil, fmt.Errorf("%w: template %q declares column %q twice", ErrInvalidTemplate, id, c.Name)
		}
		t.columnIndex[c.Name] = len(t.columns)
		t.columns = append(t.columns, Column(c))
	}

	for _, f := range spec.FilterFields {
		if !t.HasColumn(f) {
			return nil, fmt.Errorf("%w: template %q filter field %q is not a column", ErrInvalidTemplate, id, f)
		}
		t.filterFields[f] = struct{}{}
	}
	for _, f := range spec.GroupFields {
		if !t.HasColumn(f) {
			return nil, fmt.Errorf("%w: template %q group field %q is not a column", ErrInvalidTemplate, id, f)
		}
		t.groupFields[f] = struct{}{}
	}

	if len(spec.DefaultOrder) == 0 {
		return nil, fmt.Errorf("%w: template %q needs a default order", ErrInvalidTemplate, id)
	}
	for _, o := range spec.DefaultOrder {
		if !t.HasColumn(o.Field) {
			return nil, fmt.Errorf("%w: template %q default order field %q is not a column", ErrInvalidTemplate, id, o.Field)
		}
	}
	t.defaultOrder = slices.Clone(spec.DefaultOrder)

	for target, expr := range spec.Scope {
		if !target.IsValid() || strings.TrimSpace(expr) == "" {
			return nil, fmt.Errorf("%w: template %q has an invalid scope mapping for %q", ErrInvalidTemplate, id, target)
		}
		t.scopeColumns[target] = expr
	}

	return t, nil
}

// ID returns the stable template key.
func (t *Template) ID() string { return t.id }

// Name returns the display name.
func (t *Template) Name() string { return t.name }

// Description returns the template description.
func (t *Template) Description() string { return t.description }

// Category returns the catalog category.
func (t *Template) Category() string { return t.category }

// DisplayOrder returns the catalog position.
func (t *Template) DisplayOrder() int { return t.displayOrder }

// AdminOnly reports whether only admins may see and run the template.
func (t *Template) AdminOnly() bool { return t.adminOnly }

// Source returns the engine-internal base query fragment.
func (t *Template) Source() string { return t.source }

// Columns returns the template columns in declaration order.
func (t *Template) Columns() []Column { return slices.Clone(t.columns) }

// Column looks up a column by name.
func (t *Template) Column(name string) (Column, bool) {
	i, ok := t.columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// HasColumn reports whether name is an allowed column.
func (t *Template) HasColumn(name string) bool {
	_, ok := t.columnIndex[name]
	return ok
}

// AllowsFilter reports whether name may be filtered on.
func (t *Template) AllowsFilter(name string) bool {
	_, ok := t.filterFields[name]
	return ok
}

// AllowsGroup reports whether name may be grouped on.
func (t *Template) AllowsGroup(name string) bool {
	_, ok := t.groupFields[name]
	return ok
}

// FilterFields returns the filterable field names, sorted.
func (t *Template) FilterFields() []string { return sortedKeys(t.filterFields) }

// GroupFields returns the groupable field names, sorted.
func (t *Template) GroupFields() []string { return sortedKeys(t.groupFields) }

// DefaultOrder returns the ordering used when a request specifies none.
func (t *Template) DefaultOrder() []OrderBy { return slices.Clone(t.defaultOrder) }

// ScopeColumn returns the column expression a scope target maps to.
func (t *Template) ScopeColumn(target scope.Target) (string, bool) {
	expr, ok := t.scopeColumns[target]
	return expr, ok
}

// CacheTTL returns the template's cache window, or zero for the default.
func (t *Template) CacheTTL() time.Duration { return t.cacheTTL }

// VisibleTo reports whether a caller with the given role may use the template.
func (t *Template) VisibleTo(role scope.Role) bool {
	return !t.adminOnly || role == scope.RoleAdmin
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
