package validator

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/resource"
)

// MockResolver implements resource.Resolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) NearestAncestorOfType(ctx context.Context, id resource.ID, t resource.Type) (resource.ID, error) {
	args := m.Called(ctx, id, t)
	return args.Get(0).(resource.ID), args.Error(1)
}

// MockFlows implements FlowGetter
type MockFlows struct {
	mock.Mock
}

func (m *MockFlows) Get(ctx context.Context, id resource.ID) (*flowstore.Flow, error) {
	args := m.Called(ctx, id)
	if flow := args.Get(0); flow != nil {
		return flow.(*flowstore.Flow), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockArtifacts implements ArtifactResolver. The first return value may be
// a Ref or a function computing one from the call arguments.
type MockArtifacts struct {
	mock.Mock
}

func (m *MockArtifacts) Resolve(ctx context.Context, projectID, collectionID resource.ID, file artifact.File) (artifact.Ref, error) {
	args := m.Called(ctx, projectID, collectionID, file)
	if fn, ok := args.Get(0).(func(context.Context, resource.ID, resource.ID, artifact.File) artifact.Ref); ok {
		return fn(ctx, projectID, collectionID, file), args.Error(1)
	}
	return args.Get(0).(artifact.Ref), args.Error(1)
}

func refFor(file artifact.File) artifact.Ref {
	hash := artifact.Hash(file.Data)
	return artifact.Ref{
		URL:  "objectstore://artifacts/projects/p1/collections/c1/" + hash + "/" + file.Key,
		Hash: hash,
		Size: int64(len(file.Data)),
	}
}

// MockSink implements errors.Sink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) InternalError(err error) error {
	return m.Called(err).Error(0)
}

// spyStage records whether it ran and passes the version through
type spyStage struct {
	name  string
	calls int
}

func (s *spyStage) Name() string {
	return s.name
}

func (s *spyStage) Construct(_ context.Context, _ StageContext, v *flowstore.FlowVersion) (*flowstore.FlowVersion, error) {
	s.calls++
	return v, nil
}
