//go:build integration

package resource_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/natsclient"
	"github.com/devops-bizzibees/activepieces/resource"
)

func TestStore_NATS(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithKV())
	ctx := context.Background()

	store, err := resource.OpenStore(ctx, tc.Client, "")
	require.NoError(t, err)

	project := resource.NewID()
	collection := resource.NewID()
	flow := resource.NewID()

	require.NoError(t, store.Put(ctx, resource.Node{ID: project, Type: resource.TypeProject, Members: []resource.Principal{"alice"}}))
	require.NoError(t, store.Put(ctx, resource.Node{ID: collection, Type: resource.TypeCollection, ParentID: project}))
	require.NoError(t, store.Put(ctx, resource.Node{ID: flow, Type: resource.TypeFlow, ParentID: collection}))

	got, err := store.NearestAncestorOfType(resource.WithPrincipal(ctx, "alice"), flow, resource.TypeProject)
	require.NoError(t, err)
	assert.Equal(t, project, got)

	_, err = store.NearestAncestorOfType(resource.WithPrincipal(ctx, "eve"), flow, resource.TypeProject)
	assert.True(t, errors.IsPermissionDenied(err))

	_, err = store.NearestAncestorOfType(ctx, resource.NewID(), resource.TypeCollection)
	assert.True(t, errors.IsNotFound(err))
}
