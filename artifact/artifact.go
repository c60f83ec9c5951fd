package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/devops-bizzibees/activepieces/resource"
)

// File is an uploaded code artifact. Key is the name steps use to
// reference it in their "artifact" setting.
type File struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// Ref is a stored artifact as attached to a code step.
type Ref struct {
	URL  string `json:"url"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Resolver stores an uploaded file on behalf of a project and collection
// and returns a stable reference to it.
type Resolver interface {
	Resolve(ctx context.Context, projectID, collectionID resource.ID, file File) (Ref, error)
}

// Hash returns the hex encoded SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Find returns the first file with the given key.
func Find(files []File, key string) (File, bool) {
	for _, f := range files {
		if f.Key == key {
			return f, true
		}
	}
	return File{}, false
}
