// Registry loading and indexing for semantic convention YAML files.
// Registration (Load/Merge) completes before any lookup begins, so lookups
// need no synchronisation across concurrent validation runs.
package semconv

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	semconvdata "github.com/otelconform/otelconform/third_party/semconv"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a schema identifier is unknown to the registry.
var ErrNotFound = errors.New("schema definition not found")

// modelFile is the top-level structure of one convention YAML file.
type modelFile struct {
	Groups []Group `yaml:"groups"`
}

// Registry holds indexed semantic convention groups, attributes, and the
// schema definitions derived from them. Immutable after construction.
type Registry struct {
	groups      []Group
	groupIndex  map[string]*Group
	attrIndex   map[string]*Attribute
	domainIndex map[string][]*Group
	definitions map[string]*Definition
}

// Load parses every YAML file below the given filesystem into a Registry.
// Directories named "deprecated" are pruned from the walk.
func Load(fsys fs.FS) (*Registry, error) {
	var all []Group

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == "deprecated" {
				return fs.SkipDir
			}
			return nil
		}
		if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
			return nil
		}
		groups, err := readModelFile(fsys, path)
		if err != nil {
			return err
		}
		all = append(all, groups...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking model tree: %w", err)
	}

	return newRegistry(all), nil
}

// readModelFile parses one file and tags its groups with the domain taken
// from the path's leading directory.
func readModelFile(fsys fs.FS, path string) ([]Group, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var mf modelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	domain := pathDomain(path)
	for i := range mf.Groups {
		mf.Groups[i].domain = domain
	}
	return mf.Groups, nil
}

// pathDomain extracts the domain name from a model file path. Files at the
// filesystem root belong to no domain.
func pathDomain(path string) string {
	if dir, _, ok := strings.Cut(filepath.ToSlash(path), "/"); ok {
		return dir
	}
	return ""
}

// LoadEmbedded builds the registry from the convention model compiled into
// the binary.
func LoadEmbedded() (*Registry, error) {
	model, err := fs.Sub(semconvdata.ModelFS, "model")
	if err != nil {
		return nil, fmt.Errorf("opening embedded model: %w", err)
	}
	return Load(model)
}

// Group looks up a group by ID, nil when unknown.
func (r *Registry) Group(id string) *Group {
	return r.groupIndex[id]
}

// Attribute looks up a declared attribute by ID, nil when unknown.
func (r *Registry) Attribute(id string) *Attribute {
	return r.attrIndex[id]
}

// Definition returns the schema definition for the given group ID.
// Unknown identifiers fail with ErrNotFound: a scenario referencing a
// missing schema is malformed and must surface immediately rather than
// validate vacuously.
func (r *Registry) Definition(id string) (*Definition, error) {
	def, ok := r.definitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return def, nil
}

// Domain lists the groups filed under one domain directory.
func (r *Registry) Domain(name string) []*Group {
	return r.domainIndex[name]
}

// Domains lists every domain present, sorted.
func (r *Registry) Domains() []string {
	return slices.Sorted(maps.Keys(r.domainIndex))
}

// Groups exposes the full group list in load order.
func (r *Registry) Groups() []Group {
	return r.groups
}

// Merge builds a combined registry. The receiver's groups come first and
// other's follow, so an ID declared on both sides resolves to other's
// declaration. Attribute slices are cloned before refs re-resolve, leaving
// both operands as they were.
func (r *Registry) Merge(other *Registry) *Registry {
	merged := slices.Concat(r.groups, other.groups)
	for i := range merged {
		merged[i].Attributes = slices.Clone(merged[i].Attributes)
	}
	return newRegistry(merged)
}

// newRegistry indexes the given groups, resolves attribute references, and
// derives schema definitions, in that order: refs resolve against inline
// attributes from the whole set, and definitions need resolved attributes.
func newRegistry(groups []Group) *Registry {
	r := &Registry{
		groups:      groups,
		groupIndex:  make(map[string]*Group, len(groups)),
		attrIndex:   make(map[string]*Attribute, len(groups)*4),
		domainIndex: make(map[string][]*Group),
		definitions: make(map[string]*Definition, len(groups)),
	}
	r.index()
	r.resolve()
	r.derive()
	return r
}

// index registers groups by ID and domain, and inline attributes by ID.
// Later duplicate IDs win, which gives Merge its precedence contract.
func (r *Registry) index() {
	for i := range r.groups {
		g := &r.groups[i]
		r.groupIndex[g.ID] = g
		if g.domain != "" {
			r.domainIndex[g.domain] = append(r.domainIndex[g.domain], g)
		}
		for j := range g.Attributes {
			if a := &g.Attributes[j]; a.ID != "" && a.Ref == "" {
				r.attrIndex[a.ID] = a
			}
		}
	}
}

// resolve completes every ref attribute from the inline attribute index.
func (r *Registry) resolve() {
	for i := range r.groups {
		for j := range r.groups[i].Attributes {
			if a := &r.groups[i].Attributes[j]; a.Ref != "" {
				resolveRef(a, r.attrIndex)
			}
		}
	}
}

// derive builds one schema definition per group.
func (r *Registry) derive() {
	for i := range r.groups {
		g := &r.groups[i]
		r.definitions[g.ID] = definitionFor(g)
	}
}

// resolveRef completes a ref attribute in place. The declaration supplies
// identity and typing; Brief, Note, and the requirement level keep any
// local override.
func resolveRef(attr *Attribute, index map[string]*Attribute) {
	def, ok := index[attr.Ref]
	if !ok {
		// A dangling ref keeps its target name as ID so lookups still hit.
		attr.ID = attr.Ref
		return
	}

	attr.ID = def.ID
	attr.Type = def.Type
	attr.Stability = def.Stability
	attr.Examples = def.Examples
	attr.Deprecated = def.Deprecated

	if attr.Brief == "" {
		attr.Brief = def.Brief
	}
	if attr.Note == "" {
		attr.Note = def.Note
	}
}
