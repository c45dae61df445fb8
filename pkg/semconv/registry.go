// Package semconv models the resolved semantic-convention registry a live
// check evaluates against: attribute and group definitions, requirement
// levels, the attribute type union, stability and deprecation markers, and
// an indexed registry loaded from resolved YAML documents.
package semconv

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is a resolved registry indexed for live checking. Lookups return
// shared pointers into the registry; callers treat them as read-only.
type Registry struct {
	Groups []*Group `json:"groups"`

	attributesByName map[string]*Attribute
	templates        []*Attribute
	groupsByMetric   map[string]*Group
}

// NewRegistry indexes the supplied groups for sample matching.
func NewRegistry(groups []*Group) (*Registry, error) {
	r := &Registry{
		Groups:           groups,
		attributesByName: make(map[string]*Attribute),
		groupsByMetric:   make(map[string]*Group),
	}
	for _, group := range groups {
		if err := group.Validate(); err != nil {
			return nil, err
		}
		for i := range group.Attributes {
			attr := &group.Attributes[i]
			if _, seen := r.attributesByName[attr.Name]; !seen {
				r.attributesByName[attr.Name] = attr
				if attr.IsTemplate() {
					r.templates = append(r.templates, attr)
				}
			}
		}
		if group.MetricName != "" {
			if _, seen := r.groupsByMetric[group.MetricName]; !seen {
				r.groupsByMetric[group.MetricName] = group
			}
		}
	}
	return r, nil
}

// LoadRegistry reads a resolved-registry YAML document from path.
func LoadRegistry(path string) (*Registry, error) {
	//nolint:gosec // Registry path is supplied by the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	var doc struct {
		Groups []*Group `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if len(doc.Groups) == 0 {
		return nil, fmt.Errorf("registry %s declares no groups", path)
	}
	return NewRegistry(doc.Groups)
}

// FindAttribute resolves an observed attribute name to its definition: an
// exact match first, then a template match where the observed name extends a
// template attribute's name by at least one dotted segment.
func (r *Registry) FindAttribute(name string) *Attribute {
	if attr, ok := r.attributesByName[name]; ok {
		return attr
	}
	for _, tmpl := range r.templates {
		if strings.HasPrefix(name, tmpl.Name+".") {
			return tmpl
		}
	}
	return nil
}

// FindMetric resolves an observed metric name to its group definition.
func (r *Registry) FindMetric(name string) *Group {
	return r.groupsByMetric[name]
}

// AttributeCount reports the number of distinct attribute definitions.
func (r *Registry) AttributeCount() int { return len(r.attributesByName) }

// MetricCount reports the number of metric groups.
func (r *Registry) MetricCount() int { return len(r.groupsByMetric) }
