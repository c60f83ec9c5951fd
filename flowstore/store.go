package flowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/natsclient"
	"github.com/devops-bizzibees/activepieces/resource"
)

// Default bucket names
const (
	DefaultFlowsBucket    = "flows"
	DefaultVersionsBucket = "flow_versions"
)

// KV is the subset of natsclient.KVStore the store needs
type KV interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Visibility checks that the caller in ctx may see a resource.
// resource.Store satisfies it.
type Visibility interface {
	Get(ctx context.Context, id resource.ID) (*resource.Node, error)
}

// Store persists flows in one KV bucket and every saved version in another.
type Store struct {
	flows      KV
	versions   KV
	visibility Visibility
	logger     *slog.Logger
	now        func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithVisibility makes Get check the caller's visibility of the flow first
func WithVisibility(v Visibility) StoreOption {
	return func(s *Store) {
		s.visibility = v
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

// WithClock overrides the time source used for audit timestamps
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a flow store over the given buckets
func NewStore(flows, versions KV, opts ...StoreOption) *Store {
	s := &Store{
		flows:    flows,
		versions: versions,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenStore creates the flow buckets if needed and returns a store on them
func OpenStore(ctx context.Context, client *natsclient.Client, flowsBucket, versionsBucket string, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nats client is nil"), "flowstore", "OpenStore", "check client")
	}
	if flowsBucket == "" {
		flowsBucket = DefaultFlowsBucket
	}
	if versionsBucket == "" {
		versionsBucket = DefaultVersionsBucket
	}

	flows, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      flowsBucket,
		Description: "Flows with their latest version",
		History:     10,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "flowstore", "OpenStore", "create flows bucket")
	}

	versions, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      versionsBucket,
		Description: "Saved flow versions",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "flowstore", "OpenStore", "create versions bucket")
	}

	return NewStore(client.NewKVStore(flows), client.NewKVStore(versions), opts...), nil
}

func versionKey(flowID, versionID resource.ID) string {
	return string(flowID) + "." + string(versionID)
}

// Create creates a new flow. A LastVersion, when present, is saved as the
// first version.
func (s *Store) Create(ctx context.Context, flow *Flow) error {
	if flow == nil {
		return errors.WrapInvalid(fmt.Errorf("flow cannot be nil"), "flowstore", "Create", "validate flow")
	}
	if flow.ID.IsZero() {
		flow.ID = resource.NewID()
	}
	if err := flow.Validate(); err != nil {
		return err
	}

	now := s.now()
	flow.Version = 1
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if flow.LastVersion != nil {
		s.stampVersion(flow.ID, flow.LastVersion, nil, now)
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return errors.WrapFatal(err, "flowstore", "Create", "marshal flow")
	}

	if _, err := s.flows.Create(ctx, string(flow.ID), data); err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapInvalid(err, "flowstore", "Create", "flow already exists")
		}
		return errors.WrapTransient(err, "flowstore", "Create", "create in KV")
	}

	if flow.LastVersion != nil {
		if err := s.putVersion(ctx, flow.LastVersion, "Create"); err != nil {
			return err
		}
	}

	s.logger.Debug("Created flow", "flow_id", flow.ID, "collection_id", flow.CollectionID)
	return nil
}

// Get retrieves a flow by ID
func (s *Store) Get(ctx context.Context, id resource.ID) (*Flow, error) {
	if id.IsZero() {
		return nil, errors.WrapInvalid(fmt.Errorf("flow ID cannot be empty"), "flowstore", "Get", "validate ID")
	}

	if s.visibility != nil {
		if _, err := s.visibility.Get(ctx, id); err != nil {
			return nil, errors.Wrap(err, "flowstore", "Get", "check visibility")
		}
	}

	flow, _, err := s.load(ctx, id, "Get")
	return flow, err
}

func (s *Store) load(ctx context.Context, id resource.ID, method string) (*Flow, uint64, error) {
	entry, err := s.flows.Get(ctx, string(id))
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, 0, errors.WrapNotFound(fmt.Errorf("flow %s: %w", id, errors.ErrNotFound),
				"flowstore", method, "get from KV")
		}
		return nil, 0, errors.WrapTransient(err, "flowstore", method, "get from KV")
	}

	var flow Flow
	if err := json.Unmarshal(entry.Value, &flow); err != nil {
		return nil, 0, errors.WrapFatal(err, "flowstore", method, "unmarshal flow")
	}
	return &flow, entry.Revision, nil
}

// Update replaces the flow's own fields with optimistic concurrency control.
// LastVersion is left as stored; use SaveVersion to change it.
func (s *Store) Update(ctx context.Context, flow *Flow) error {
	if flow == nil {
		return errors.WrapInvalid(fmt.Errorf("flow cannot be nil"), "flowstore", "Update", "validate flow")
	}

	current, revision, err := s.load(ctx, flow.ID, "Update")
	if err != nil {
		return err
	}

	if current.Version != flow.Version {
		return errors.WrapInvalid(
			fmt.Errorf("version mismatch: expected %d, got %d", current.Version, flow.Version),
			"flowstore", "Update", "conflict: flow was modified by another user")
	}

	flow.Version++
	flow.UpdatedAt = s.now()
	flow.CreatedAt = current.CreatedAt
	flow.LastVersion = current.LastVersion

	if err := flow.Validate(); err != nil {
		return err
	}
	return s.write(ctx, flow, revision, "Update")
}

// SaveVersion makes version the flow's latest version and returns the
// updated flow. A version with the same ID as the current draft replaces it;
// a locked latest version is never replaced.
func (s *Store) SaveVersion(ctx context.Context, flowID resource.ID, version *FlowVersion) (*Flow, error) {
	if version == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("version cannot be nil"), "flowstore", "SaveVersion", "validate version")
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}

	flow, revision, err := s.load(ctx, flowID, "SaveVersion")
	if err != nil {
		return nil, err
	}

	saved := version.Clone()
	previous := flow.LastVersion
	if previous != nil && previous.ID == saved.ID && previous.State == StateLocked {
		return nil, errors.WrapInvalid(fmt.Errorf("version %s is locked", previous.ID),
			"flowstore", "SaveVersion", "replace version")
	}

	now := s.now()
	s.stampVersion(flowID, saved, previous, now)

	if err := s.putVersion(ctx, saved, "SaveVersion"); err != nil {
		return nil, err
	}

	flow.LastVersion = saved
	flow.Version++
	flow.UpdatedAt = now
	if err := s.write(ctx, flow, revision, "SaveVersion"); err != nil {
		return nil, err
	}

	s.logger.Debug("Saved flow version", "flow_id", flowID, "version_id", saved.ID, "valid", saved.Valid)
	return flow, nil
}

// stampVersion fills the persistence-owned fields of v
func (s *Store) stampVersion(flowID resource.ID, v, previous *FlowVersion, now time.Time) {
	if v.ID.IsZero() {
		v.ID = resource.NewID()
	}
	v.FlowID = flowID
	if v.State == "" {
		v.State = StateDraft
	}
	v.CreatedAt = now
	if previous != nil && previous.ID == v.ID {
		v.CreatedAt = previous.CreatedAt
	}
	v.UpdatedAt = now
}

func (s *Store) putVersion(ctx context.Context, v *FlowVersion, method string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapFatal(err, "flowstore", method, "marshal version")
	}
	if _, err := s.versions.Put(ctx, versionKey(v.FlowID, v.ID), data); err != nil {
		return errors.WrapTransient(err, "flowstore", method, "put version to KV")
	}
	return nil
}

func (s *Store) write(ctx context.Context, flow *Flow, revision uint64, method string) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return errors.WrapFatal(err, "flowstore", method, "marshal flow")
	}
	if _, err := s.flows.Update(ctx, string(flow.ID), data, revision); err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapInvalid(err, "flowstore", method, "conflict: flow was modified by another user")
		}
		return errors.WrapTransient(err, "flowstore", method, "update in KV")
	}
	return nil
}

// GetVersion retrieves a saved version of a flow
func (s *Store) GetVersion(ctx context.Context, flowID, versionID resource.ID) (*FlowVersion, error) {
	entry, err := s.versions.Get(ctx, versionKey(flowID, versionID))
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.WrapNotFound(
				fmt.Errorf("version %s of flow %s: %w", versionID, flowID, errors.ErrNotFound),
				"flowstore", "GetVersion", "get from KV")
		}
		return nil, errors.WrapTransient(err, "flowstore", "GetVersion", "get from KV")
	}

	var v FlowVersion
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		return nil, errors.WrapFatal(err, "flowstore", "GetVersion", "unmarshal version")
	}
	return &v, nil
}

// ListVersions returns the saved versions of a flow, oldest first
func (s *Store) ListVersions(ctx context.Context, flowID resource.ID) ([]*FlowVersion, error) {
	keys, err := s.versions.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "flowstore", "ListVersions", "list KV keys")
	}

	prefix := string(flowID) + "."
	versions := []*FlowVersion{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		v, err := s.GetVersion(ctx, flowID, resource.ID(strings.TrimPrefix(key, prefix)))
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	// ULIDs sort by creation time
	sort.Slice(versions, func(i, j int) bool { return versions[i].ID < versions[j].ID })
	return versions, nil
}

// Delete removes a flow and its saved versions
func (s *Store) Delete(ctx context.Context, id resource.ID) error {
	if id.IsZero() {
		return errors.WrapInvalid(fmt.Errorf("flow ID cannot be empty"), "flowstore", "Delete", "validate ID")
	}

	versions, err := s.ListVersions(ctx, id)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := s.versions.Delete(ctx, versionKey(id, v.ID)); err != nil && !natsclient.IsKVNotFoundError(err) {
			return errors.WrapTransient(err, "flowstore", "Delete", "delete version from KV")
		}
	}

	if err := s.flows.Delete(ctx, string(id)); err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return errors.WrapNotFound(fmt.Errorf("flow %s: %w", id, errors.ErrNotFound),
				"flowstore", "Delete", "delete from KV")
		}
		return errors.WrapTransient(err, "flowstore", "Delete", "delete from KV")
	}

	return nil
}

// List retrieves all flows
func (s *Store) List(ctx context.Context) ([]*Flow, error) {
	keys, err := s.flows.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "flowstore", "List", "list KV keys")
	}

	flows := make([]*Flow, 0, len(keys))
	for _, key := range keys {
		flow, _, err := s.load(ctx, resource.ID(key), "List")
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}

	return flows, nil
}
