package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/natsclient"
)

// DefaultBucket is the KV bucket holding resource nodes
const DefaultBucket = "resources"

// DefaultMaxDepth bounds ancestor walks
const DefaultMaxDepth = 16

// allowedParents lists the parent types each resource type may hang under.
// A nil entry means the type is a root.
var allowedParents = map[Type][]Type{
	TypeProject:     nil,
	TypeCollection:  {TypeProject},
	TypeFlow:        {TypeCollection},
	TypeFlowVersion: {TypeFlow},
	TypeInstance:    {TypeFlow},
	TypeArtifact:    {TypeProject, TypeCollection},
}

// Node is a single resource in the containment hierarchy
type Node struct {
	ID        ID          `json:"id"`
	Type      Type        `json:"type"`
	ParentID  ID          `json:"parent_id,omitempty"`
	Members   []Principal `json:"members,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// KV is the subset of natsclient.KVStore the store needs
type KV interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
}

// Store keeps resource nodes in NATS KV and answers ancestor lookups.
// It implements Resolver.
type Store struct {
	kv       KV
	logger   *slog.Logger
	maxDepth int
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithMaxDepth bounds how many parent links a walk follows
func WithMaxDepth(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store over kv
func NewStore(kv KV, opts ...StoreOption) *Store {
	s := &Store{
		kv:       kv,
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenStore creates the resources bucket if needed and returns a store on it
func OpenStore(ctx context.Context, client *natsclient.Client, bucket string, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nats client is nil"), "resource", "OpenStore", "check client")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Resource containment hierarchy",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "resource", "OpenStore", "create KV bucket")
	}

	return NewStore(client.NewKVStore(kv), opts...), nil
}

// Put stores a node. The parent must already exist and be of a type the
// node may be contained in.
func (s *Store) Put(ctx context.Context, node Node) error {
	if node.ID.IsZero() {
		return errors.WrapInvalid(fmt.Errorf("resource ID is empty"), "resource", "Put", "validate node")
	}
	parents, ok := allowedParents[node.Type]
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("unknown resource type %q", node.Type), "resource", "Put", "validate node")
	}

	switch {
	case parents == nil && !node.ParentID.IsZero():
		return errors.WrapInvalid(fmt.Errorf("%s %s cannot have a parent", node.Type, node.ID),
			"resource", "Put", "validate parent")
	case parents != nil && node.ParentID.IsZero():
		return errors.WrapInvalid(fmt.Errorf("%s %s requires a parent", node.Type, node.ID),
			"resource", "Put", "validate parent")
	case parents != nil:
		parent, err := s.load(ctx, node.ParentID, "Put")
		if err != nil {
			return err
		}
		if !slices.Contains(parents, parent.Type) {
			return errors.WrapInvalid(
				fmt.Errorf("%s %s cannot be contained in %s %s", node.Type, node.ID, parent.Type, parent.ID),
				"resource", "Put", "validate parent")
		}
	}

	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(node)
	if err != nil {
		return errors.WrapFatal(err, "resource", "Put", "marshal node")
	}
	if _, err := s.kv.Put(ctx, string(node.ID), data); err != nil {
		return errors.WrapTransient(err, "resource", "Put", "put to KV")
	}

	s.logger.Debug("Stored resource", "id", node.ID, "type", node.Type, "parent_id", node.ParentID)
	return nil
}

// Get returns a node the caller can see
func (s *Store) Get(ctx context.Context, id ID) (*Node, error) {
	chain, err := s.chain(ctx, id, "Get")
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, chain, "Get"); err != nil {
		return nil, err
	}
	return chain[0], nil
}

// Delete removes a node. Children are left in place and become dangling.
func (s *Store) Delete(ctx context.Context, id ID) error {
	if id.IsZero() {
		return errors.WrapInvalid(fmt.Errorf("resource ID is empty"), "resource", "Delete", "validate ID")
	}
	if err := s.kv.Delete(ctx, string(id)); err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return errors.WrapNotFound(fmt.Errorf("resource %s: %w", id, errors.ErrNotFound),
				"resource", "Delete", "delete from KV")
		}
		return errors.WrapTransient(err, "resource", "Delete", "delete from KV")
	}
	return nil
}

// NearestAncestorOfType implements Resolver
func (s *Store) NearestAncestorOfType(ctx context.Context, id ID, t Type) (ID, error) {
	if !t.Valid() {
		return "", errors.WrapInvalid(fmt.Errorf("unknown resource type %q", t),
			"resource", "NearestAncestorOfType", "validate type")
	}

	chain, err := s.chain(ctx, id, "NearestAncestorOfType")
	if err != nil {
		return "", err
	}
	if err := s.checkVisible(ctx, chain, "NearestAncestorOfType"); err != nil {
		return "", err
	}

	for _, node := range chain[1:] {
		if node.Type == t {
			return node.ID, nil
		}
	}

	return "", errors.WrapNotFound(
		fmt.Errorf("resource %s has no %s ancestor: %w", id, t, errors.ErrNotFound),
		"resource", "NearestAncestorOfType", "find ancestor")
}

// chain returns the node followed by its ancestors up to the root
func (s *Store) chain(ctx context.Context, id ID, method string) ([]*Node, error) {
	if id.IsZero() {
		return nil, errors.WrapInvalid(fmt.Errorf("resource ID is empty"), "resource", method, "validate ID")
	}

	node, err := s.load(ctx, id, method)
	if err != nil {
		return nil, err
	}

	chain := []*Node{node}
	for !node.ParentID.IsZero() {
		if len(chain) > s.maxDepth {
			return nil, errors.WrapFatal(
				fmt.Errorf("resource %s: ancestor chain exceeds %d: %w", id, s.maxDepth, errors.ErrDataCorrupted),
				"resource", method, "walk ancestors")
		}
		node, err = s.load(ctx, node.ParentID, method)
		if err != nil {
			return nil, err
		}
		chain = append(chain, node)
	}
	return chain, nil
}

func (s *Store) load(ctx context.Context, id ID, method string) (*Node, error) {
	entry, err := s.kv.Get(ctx, string(id))
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.WrapNotFound(fmt.Errorf("resource %s: %w", id, errors.ErrNotFound),
				"resource", method, "load node")
		}
		return nil, errors.WrapTransient(err, "resource", method, "load node")
	}

	var node Node
	if err := json.Unmarshal(entry.Value, &node); err != nil {
		return nil, errors.WrapFatal(err, "resource", method, "unmarshal node")
	}
	return &node, nil
}

func (s *Store) checkVisible(ctx context.Context, chain []*Node, method string) error {
	principal, ok := PrincipalFrom(ctx)
	if !ok {
		return nil
	}
	for _, node := range chain {
		if slices.Contains(node.Members, principal) {
			return nil
		}
	}
	return errors.WrapPermissionDenied(
		fmt.Errorf("principal %s cannot see resource %s: %w", principal, chain[0].ID, errors.ErrPermissionDenied),
		"resource", method, "check visibility")
}
