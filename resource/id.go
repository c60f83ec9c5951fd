package resource

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/devops-bizzibees/activepieces/errors"
)

// ID identifies a resource. IDs are opaque strings; new ones are ULIDs so
// they sort by creation time.
type ID string

// NewID returns a fresh ULID-based identifier.
func NewID() ID {
	return ID(ulid.Make().String())
}

// String returns the raw identifier
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty
func (id ID) IsZero() bool {
	return id == ""
}

// Type is the kind of a node in the resource hierarchy.
type Type string

// Resource types, outermost first.
const (
	TypeProject     Type = "PROJECT"
	TypeCollection  Type = "COLLECTION"
	TypeFlow        Type = "FLOW"
	TypeFlowVersion Type = "FLOW_VERSION"
	TypeInstance    Type = "INSTANCE"
	TypeArtifact    Type = "ARTIFACT"
)

var knownTypes = map[Type]struct{}{
	TypeProject:     {},
	TypeCollection:  {},
	TypeFlow:        {},
	TypeFlowVersion: {},
	TypeInstance:    {},
	TypeArtifact:    {},
}

// Valid reports whether t is one of the known resource types
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// ParseType converts a string into a Type. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.WrapInvalid(fmt.Errorf("unknown resource type %q", s),
			"resource", "ParseType", "parse type")
	}
	return t, nil
}

// OptionalID is an identifier that may be absent.
// The zero value is absent.
type OptionalID struct {
	id  ID
	set bool
}

// SomeID returns a present identifier
func SomeID(id ID) OptionalID {
	return OptionalID{id: id, set: true}
}

// NoID returns an absent identifier
func NoID() OptionalID {
	return OptionalID{}
}

// OptionalFromString maps the empty string to NoID.
func OptionalFromString(s string) OptionalID {
	if s == "" {
		return NoID()
	}
	return SomeID(ID(s))
}

// Get returns the identifier and whether it is present
func (o OptionalID) Get() (ID, bool) {
	return o.id, o.set
}

// IsSet reports whether the identifier is present
func (o OptionalID) IsSet() bool {
	return o.set
}

// String returns the identifier, or "<none>" when absent
func (o OptionalID) String() string {
	if !o.set {
		return "<none>"
	}
	return string(o.id)
}
