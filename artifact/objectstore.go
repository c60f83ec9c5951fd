package artifact

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/metric"
	"github.com/devops-bizzibees/activepieces/natsclient"
	"github.com/devops-bizzibees/activepieces/resource"
)

const (
	// DefaultBucket is the object store bucket artifacts are written to
	DefaultBucket = "artifacts"

	// URLScheme prefixes every artifact URL issued by Store
	URLScheme = "objectstore://"

	metaSHA256      = "sha256"
	metaContentType = "content_type"
	metaProject     = "project"
	metaCollection  = "collection"
)

// ObjectStore is the subset of jetstream.ObjectStore used by Store.
type ObjectStore interface {
	Put(ctx context.Context, meta jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
	GetInfo(ctx context.Context, name string, opts ...jetstream.GetObjectInfoOpt) (*jetstream.ObjectInfo, error)
	GetBytes(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) ([]byte, error)
}

// Store resolves artifacts into a JetStream object store. Objects are
// content addressed under their project and collection, so uploading the
// same bytes twice writes them once.
type Store struct {
	objects ObjectStore
	bucket  string
	logger  *slog.Logger
	metrics *storeMetrics
	now     func() time.Time
}

var _ Resolver = (*Store)(nil)

// StoreOption configures a Store
type StoreOption func(*Store) error

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics registers store metrics with the registry
func WithMetrics(registry *metric.MetricsRegistry) StoreOption {
	return func(s *Store) error {
		m, err := newStoreMetrics(registry, s.bucket)
		if err != nil {
			return err
		}
		s.metrics = m
		return nil
	}
}

// NewStore creates a store over an object store bucket
func NewStore(objects ObjectStore, bucket string, opts ...StoreOption) (*Store, error) {
	if objects == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("object store is nil"), "artifact", "NewStore", "check object store")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}

	s := &Store{
		objects: objects,
		bucket:  bucket,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "artifact", "NewStore", "apply option")
		}
	}
	return s, nil
}

// OpenStore creates the artifact bucket if needed and returns a store on it
func OpenStore(ctx context.Context, client *natsclient.Client, bucket string, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nats client is nil"), "artifact", "OpenStore", "check client")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}

	objects, err := client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Code step artifacts",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "artifact", "OpenStore", "create object store")
	}

	return NewStore(objects, bucket, opts...)
}

// Bucket returns the bucket name
func (s *Store) Bucket() string {
	return s.bucket
}

// ObjectName returns the object name a file with the given digest is
// stored under.
func ObjectName(projectID, collectionID resource.ID, hash, key string) string {
	return fmt.Sprintf("projects/%s/collections/%s/%s/%s", projectID, collectionID, hash, key)
}

// URL returns the artifact URL for an object in this store's bucket
func (s *Store) URL(name string) string {
	return URLScheme + s.bucket + "/" + name
}

// Resolve uploads the file unless an identical object already exists and
// returns its reference.
func (s *Store) Resolve(ctx context.Context, projectID, collectionID resource.ID, file File) (Ref, error) {
	if projectID.IsZero() || collectionID.IsZero() {
		return Ref{}, errors.WrapInvalid(fmt.Errorf("project and collection are required"),
			"artifact", "Resolve", "check scope")
	}
	if file.Key == "" {
		return Ref{}, errors.WrapInvalid(fmt.Errorf("artifact key is empty"), "artifact", "Resolve", "check key")
	}
	if len(file.Data) == 0 {
		return Ref{}, errors.WrapInvalid(fmt.Errorf("artifact %q is empty", file.Key), "artifact", "Resolve", "check data")
	}

	hash := Hash(file.Data)
	name := ObjectName(projectID, collectionID, hash, file.Key)
	ref := Ref{URL: s.URL(name), Hash: hash, Size: int64(len(file.Data))}

	info, err := s.objects.GetInfo(ctx, name)
	switch {
	case err == nil && !info.Deleted && info.Metadata[metaSHA256] == hash:
		s.metrics.recordDedup()
		s.logger.Debug("Artifact already stored", "name", name, "size", ref.Size)
		return ref, nil
	case err != nil && !stderrors.Is(err, jetstream.ErrObjectNotFound):
		s.metrics.recordError("get_info")
		return Ref{}, errors.WrapTransient(err, "artifact", "Resolve", "look up object")
	}

	start := s.now()
	_, err = s.objects.Put(ctx, jetstream.ObjectMeta{
		Name:        name,
		Description: file.Key,
		Metadata: map[string]string{
			metaSHA256:      hash,
			metaContentType: file.ContentType,
			metaProject:     projectID.String(),
			metaCollection:  collectionID.String(),
		},
	}, bytes.NewReader(file.Data))
	if err != nil {
		s.metrics.recordError("put")
		return Ref{}, errors.WrapTransient(err, "artifact", "Resolve", "upload object")
	}
	s.metrics.recordWrite(len(file.Data), s.now().Sub(start).Seconds())

	s.logger.Debug("Artifact stored", "name", name, "size", ref.Size, "content_type", file.ContentType)
	return ref, nil
}

// Open reads the artifact behind a URL issued by this store and checks its
// digest.
func (s *Store) Open(ctx context.Context, url string) ([]byte, error) {
	name, hash, err := s.parseURL(url)
	if err != nil {
		return nil, err
	}

	data, err := s.objects.GetBytes(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.WrapNotFound(err, "artifact", "Open", "read "+name)
		}
		s.metrics.recordError("get")
		return nil, errors.WrapTransient(err, "artifact", "Open", "read "+name)
	}
	s.metrics.recordRead()

	if Hash(data) != hash {
		s.metrics.recordError("verify")
		return nil, errors.WrapFatal(errors.ErrDataCorrupted, "artifact", "Open", "verify digest of "+name)
	}
	return data, nil
}

func (s *Store) parseURL(url string) (name, hash string, err error) {
	prefix := URLScheme + s.bucket + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", "", errors.WrapInvalid(fmt.Errorf("url %q is not in bucket %s", url, s.bucket),
			"artifact", "Open", "parse url")
	}
	name = strings.TrimPrefix(url, prefix)

	// projects/{p}/collections/{c}/{hash}/{key...}
	parts := strings.SplitN(name, "/", 6)
	if len(parts) != 6 || parts[0] != "projects" || parts[2] != "collections" || len(parts[4]) != 64 {
		return "", "", errors.WrapInvalid(fmt.Errorf("malformed artifact name %q", name),
			"artifact", "Open", "parse url")
	}
	return name, parts[4], nil
}
