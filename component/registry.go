package component

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/devops-bizzibees/activepieces/errors"
)

// Registry holds component schemas by name and version.
// It is safe for concurrent use.
type Registry struct {
	schemas map[string]map[string]Schema // name -> version -> schema
	mu      sync.RWMutex
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]map[string]Schema),
	}
}

// ParseRef splits a component reference of the form "name" or "name@version"
func ParseRef(ref string) (name, version string, err error) {
	name, version, _ = strings.Cut(strings.TrimSpace(ref), "@")
	if name == "" {
		return "", "", errors.WrapInvalid(fmt.Errorf("empty component name in %q", ref),
			"Registry", "ParseRef", "parse reference")
	}
	if strings.Contains(version, "@") {
		return "", "", errors.WrapInvalid(fmt.Errorf("malformed component reference %q", ref),
			"Registry", "ParseRef", "parse reference")
	}
	return name, version, nil
}

// Register adds a schema. Registering the same name and version twice fails.
func (r *Registry) Register(schema Schema) error {
	if err := ValidateComponentName(schema.Name); err != nil {
		return errors.Wrap(err, "Registry", "Register", "component name validation")
	}
	if schema.Version == "" {
		return errors.WrapInvalid(fmt.Errorf("component %s has no version", schema.Name),
			"Registry", "Register", "version validation")
	}
	if !schema.Kind.Valid() {
		return errors.WrapInvalid(fmt.Errorf("component %s has invalid kind %q", schema.Ref(), schema.Kind),
			"Registry", "Register", "kind validation")
	}
	for _, req := range schema.Config.Required {
		if _, ok := schema.Config.Properties[req]; !ok {
			return errors.WrapInvalid(fmt.Errorf("component %s requires undeclared property %q", schema.Ref(), req),
				"Registry", "Register", "required property validation")
		}
	}
	if err := schema.compile(); err != nil {
		return errors.WrapInvalid(err, "Registry", "Register", "json schema compilation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.schemas[schema.Name]
	if !ok {
		versions = make(map[string]Schema)
		r.schemas[schema.Name] = versions
	}
	if _, exists := versions[schema.Version]; exists {
		return errors.WrapInvalid(fmt.Errorf("component '%s' is already registered", schema.Ref()),
			"Registry", "Register", "duplicate component check")
	}
	versions[schema.Version] = schema
	return nil
}

// GetSchema resolves a component reference. A reference without a version
// resolves to the highest registered version. Unknown components yield a
// not-found error.
func (r *Registry) GetSchema(_ context.Context, ref string) (Schema, error) {
	name, version, err := ParseRef(ref)
	if err != nil {
		return Schema{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.schemas[name]
	if !ok {
		return Schema{}, errors.WrapNotFound(fmt.Errorf("component %q: %w", name, errors.ErrNotFound),
			"Registry", "GetSchema", "component lookup")
	}

	if version == "" {
		version = latestVersion(versions)
	}
	schema, ok := versions[version]
	if !ok {
		return Schema{}, errors.WrapNotFound(fmt.Errorf("component %q version %q: %w", name, version, errors.ErrNotFound),
			"Registry", "GetSchema", "version lookup")
	}
	return schema, nil
}

// ListSchemas returns every registered schema ordered by name and version
func (r *Registry) ListSchemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Schema
	for _, versions := range r.schemas {
		for _, schema := range versions {
			out = append(out, schema)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return compareVersions(out[i].Version, out[j].Version) < 0
	})
	return out
}

func latestVersion(versions map[string]Schema) string {
	var latest string
	for v := range versions {
		if latest == "" || compareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

// compareVersions orders dotted numeric versions ("1.10.0" > "1.9.2").
// Non-numeric segments compare lexically.
func compareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil:
			if xn != yn {
				if xn < yn {
					return -1
				}
				return 1
			}
		case x != y:
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ValidateComponentName checks that a component name is safe to use as a
// reference and in NATS subjects
func ValidateComponentName(name string) error {
	if name == "" {
		return errors.WrapInvalid(fmt.Errorf("component name is empty"), "Registry", "ValidateComponentName", "name validation")
	}
	if len(name) > 64 {
		return errors.WrapInvalid(fmt.Errorf("component name %q exceeds 64 characters", name),
			"Registry", "ValidateComponentName", "name validation")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return errors.WrapInvalid(fmt.Errorf("component name %q contains invalid character %q", name, r),
				"Registry", "ValidateComponentName", "name validation")
		}
	}
	return nil
}
