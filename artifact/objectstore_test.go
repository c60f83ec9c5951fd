package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/metric"
	"github.com/devops-bizzibees/activepieces/resource"
)

// fakeObjectStore keeps objects in memory
type fakeObjectStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	infos    map[string]*jetstream.ObjectInfo
	puts     int
	failWith error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: make(map[string][]byte),
		infos:   make(map[string]*jetstream.ObjectInfo),
	}
}

func (f *fakeObjectStore) Put(_ context.Context, meta jetstream.ObjectMeta, r io.Reader) (*jetstream.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.puts++
	info := &jetstream.ObjectInfo{ObjectMeta: meta, Size: uint64(len(data))}
	f.objects[meta.Name] = data
	f.infos[meta.Name] = info
	return info, nil
}

func (f *fakeObjectStore) GetInfo(_ context.Context, name string, _ ...jetstream.GetObjectInfoOpt) (*jetstream.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	info, ok := f.infos[name]
	if !ok {
		return nil, jetstream.ErrObjectNotFound
	}
	return info, nil
}

func (f *fakeObjectStore) GetBytes(_ context.Context, name string, _ ...jetstream.GetObjectOpt) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	data, ok := f.objects[name]
	if !ok {
		return nil, jetstream.ErrObjectNotFound
	}
	return bytes.Clone(data), nil
}

var (
	project    = resource.ID("p1")
	collection = resource.ID("c1")
	script     = File{Key: "script.js", ContentType: "text/javascript", Data: []byte("export const run = () => 1")}
)

func TestHashAndFind(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(nil))

	files := []File{{Key: "other.js"}, script}
	f, ok := Find(files, "script.js")
	require.True(t, ok)
	assert.Equal(t, script.Data, f.Data)

	_, ok = Find(files, "missing.js")
	assert.False(t, ok)
}

func TestStore_Resolve(t *testing.T) {
	objects := newFakeObjectStore()
	store, err := NewStore(objects, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultBucket, store.Bucket())

	ctx := context.Background()
	ref, err := store.Resolve(ctx, project, collection, script)
	require.NoError(t, err)

	hash := Hash(script.Data)
	assert.Equal(t, hash, ref.Hash)
	assert.Equal(t, int64(len(script.Data)), ref.Size)
	assert.Equal(t, "objectstore://artifacts/projects/p1/collections/c1/"+hash+"/script.js", ref.URL)

	info := objects.infos[ObjectName(project, collection, hash, "script.js")]
	require.NotNil(t, info)
	assert.Equal(t, hash, info.Metadata["sha256"])
	assert.Equal(t, "text/javascript", info.Metadata["content_type"])

	// Same bytes again: no second upload
	again, err := store.Resolve(ctx, project, collection, script)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
	assert.Equal(t, 1, objects.puts)

	// Changed bytes: new object
	changed := script
	changed.Data = []byte("export const run = () => 2")
	other, err := store.Resolve(ctx, project, collection, changed)
	require.NoError(t, err)
	assert.NotEqual(t, ref.URL, other.URL)
	assert.Equal(t, 2, objects.puts)
}

func TestStore_ResolveInvalid(t *testing.T) {
	store, err := NewStore(newFakeObjectStore(), "artifacts")
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name       string
		project    resource.ID
		collection resource.ID
		file       File
	}{
		{"no project", "", collection, script},
		{"no collection", project, "", script},
		{"no key", project, collection, File{Data: []byte("x")}},
		{"empty data", project, collection, File{Key: "a.js"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Resolve(ctx, tt.project, tt.collection, tt.file)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestStore_ResolveStorageFailure(t *testing.T) {
	objects := newFakeObjectStore()
	objects.failWith = fmt.Errorf("nats: timeout")
	store, err := NewStore(objects, "artifacts")
	require.NoError(t, err)

	_, err = store.Resolve(context.Background(), project, collection, script)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestStore_Open(t *testing.T) {
	objects := newFakeObjectStore()
	store, err := NewStore(objects, "artifacts")
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Resolve(ctx, project, collection, script)
	require.NoError(t, err)

	data, err := store.Open(ctx, ref.URL)
	require.NoError(t, err)
	assert.Equal(t, script.Data, data)

	// Tampered object
	name := ObjectName(project, collection, ref.Hash, script.Key)
	objects.objects[name] = []byte("tampered")
	_, err = store.Open(ctx, ref.URL)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	_, err = store.Open(ctx, store.URL(ObjectName(project, collection, Hash([]byte("gone")), "gone.js")))
	assert.True(t, errors.IsNotFound(err))

	for _, url := range []string{
		"https://example.com/script.js",
		"objectstore://other/projects/p1/collections/c1/" + ref.Hash + "/script.js",
		"objectstore://artifacts/projects/p1/script.js",
	} {
		_, err = store.Open(ctx, url)
		assert.True(t, errors.IsInvalid(err), url)
	}
}

func TestStore_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	store, err := NewStore(newFakeObjectStore(), "artifacts", WithMetrics(registry))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Resolve(ctx, project, collection, script)
	require.NoError(t, err)
	_, err = store.Resolve(ctx, project, collection, script)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(store.metrics.writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(store.metrics.dedupHits))
	assert.Equal(t, float64(len(script.Data)), testutil.ToFloat64(store.metrics.bytesWritten))

	// A second store on the same bucket collides
	_, err = NewStore(newFakeObjectStore(), "artifacts", WithMetrics(registry))
	assert.True(t, errors.IsInvalid(err))
}

func TestNewStore_NilObjects(t *testing.T) {
	_, err := NewStore(nil, "artifacts")
	assert.True(t, errors.IsInvalid(err))

	_, err = OpenStore(context.Background(), nil, "")
	assert.True(t, errors.IsInvalid(err))
}
