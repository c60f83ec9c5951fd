package validator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/component"
	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/metric"
	"github.com/devops-bizzibees/activepieces/resource"
)

// FlowGetter reads a flow with its last saved version
type FlowGetter interface {
	Get(ctx context.Context, id resource.ID) (*flowstore.Flow, error)
}

// SchemaProvider returns the schema of a component reference
// ("name" or "name@version")
type SchemaProvider interface {
	GetSchema(ctx context.Context, ref string) (component.Schema, error)
}

// ArtifactResolver stores an uploaded code file and returns its reference
type ArtifactResolver interface {
	Resolve(ctx context.Context, projectID, collectionID resource.ID, file artifact.File) (artifact.Ref, error)
}

var (
	_ FlowGetter       = (*flowstore.Store)(nil)
	_ SchemaProvider   = (*component.Registry)(nil)
	_ ArtifactResolver = (*artifact.Store)(nil)
)

// Validator turns a candidate flow version into a validated version ready
// to be saved. It is safe for concurrent use.
type Validator struct {
	resolver resource.Resolver
	drafts   draftLoader
	stages   []Stage
	logger   *slog.Logger
	metrics  *pipelineMetrics
}

type options struct {
	stages   []Stage
	logger   *slog.Logger
	sink     errors.Sink
	registry *metric.MetricsRegistry
}

// Option configures a Validator
type Option func(*options)

// WithStages replaces the default stage list
func WithStages(stages ...Stage) Option {
	return func(o *options) {
		o.stages = stages
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSink sets where hidden draft loading failures are reported.
// Defaults to errors.NewLoggingSink with the validator's logger.
func WithSink(sink errors.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithMetrics registers pipeline metrics with the registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// New creates a Validator running DefaultStages over the given collaborators
func New(
	resolver resource.Resolver,
	flows FlowGetter,
	schemas SchemaProvider,
	artifacts ArtifactResolver,
	opts ...Option,
) (*Validator, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if resolver == nil || flows == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("resolver and flow getter are required"),
			"validator", "New", "check collaborators")
	}
	if o.stages == nil {
		if schemas == nil || artifacts == nil {
			return nil, errors.WrapInvalid(fmt.Errorf("schema provider and artifact resolver are required"),
				"validator", "New", "check collaborators")
		}
		o.stages = DefaultStages(schemas, artifacts)
	}
	if o.sink == nil {
		o.sink = errors.NewLoggingSink(o.logger)
	}

	metrics, err := newPipelineMetrics(o.registry)
	if err != nil {
		o.logger.Error("Failed to initialize validator metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	return &Validator{
		resolver: resolver,
		drafts:   draftLoader{flows: flows, sink: o.sink},
		stages:   o.stages,
		logger:   o.logger,
		metrics:  metrics,
	}, nil
}

// Stages returns the names of the configured stages in order
func (v *Validator) Stages() []string {
	names := make([]string, len(v.stages))
	for i, s := range v.stages {
		names[i] = s.Name()
	}
	return names
}

// ValidateAndConstruct validates candidate and returns the version to save.
//
// The collection defaults to the nearest COLLECTION ancestor of the flow;
// at least one of collectionID and flowID must be set. The project is the
// nearest PROJECT ancestor of the collection. Errors from these lookups
// keep their class. When flowID is set, the flow's last version is loaded
// as the draft; failure to read it is reported as an internal error.
//
// The stages then run in order on the candidate. The first stage error is
// returned as is and no partial result is produced. The candidate itself is
// never modified.
func (v *Validator) ValidateAndConstruct(
	ctx context.Context,
	collectionID resource.OptionalID,
	flowID resource.OptionalID,
	candidate *flowstore.FlowVersion,
	files []artifact.File,
) (*flowstore.FlowVersion, error) {
	start := time.Now()
	status := statusError
	defer func() {
		v.metrics.recordValidation(status, time.Since(start).Seconds())
	}()

	if candidate == nil {
		status = statusRejected
		return nil, errors.WrapInvalid(fmt.Errorf("candidate version is nil"),
			"validator", "ValidateAndConstruct", "check candidate")
	}

	collection, err := v.collection(ctx, collectionID, flowID)
	if err != nil {
		return nil, err
	}

	project, err := v.resolver.NearestAncestorOfType(ctx, collection, resource.TypeProject)
	if err != nil {
		return nil, errors.Wrap(err, "validator", "ValidateAndConstruct", "resolve project of "+collection.String())
	}

	draft, err := v.drafts.load(ctx, flowID)
	if err != nil {
		return nil, errors.Wrap(err, "validator", "ValidateAndConstruct", "load draft of "+flowID.String())
	}

	v.logger.Debug("Validating flow version",
		"flow_id", flowID.String(),
		"collection_id", collection,
		"project_id", project,
		"steps", len(candidate.Steps),
		"files", len(files),
		"has_draft", draft != nil)

	sc := StageContext{
		ProjectID:    project,
		CollectionID: collection,
		Files:        files,
		Draft:        draft,
	}

	current := candidate
	for _, stage := range v.stages {
		next, err := stage.Construct(ctx, sc, current)
		if err != nil {
			v.metrics.recordRejection(stage.Name(), err)
			var ve *errors.ValidationError
			if stderrors.As(err, &ve) {
				status = statusRejected
			}
			v.logger.Debug("Stage rejected flow version",
				"flow_id", flowID.String(),
				"stage", stage.Name(),
				"error", err)
			return nil, err
		}
		if next == nil {
			return nil, errors.WrapFatal(fmt.Errorf("stage %s returned no version", stage.Name()),
				"validator", "ValidateAndConstruct", "run stage")
		}
		current = next
	}

	status = statusIncomplete
	if current.Valid {
		status = statusValid
	}
	v.logger.Debug("Flow version validated",
		"flow_id", flowID.String(),
		"valid", current.Valid,
		"duration", time.Since(start))

	return current, nil
}

// collection returns the explicit collection or the flow's nearest
// collection ancestor
func (v *Validator) collection(ctx context.Context, collectionID, flowID resource.OptionalID) (resource.ID, error) {
	if id, ok := collectionID.Get(); ok {
		return id, nil
	}

	flow, ok := flowID.Get()
	if !ok {
		return "", errors.WrapInvalid(fmt.Errorf("either a collection or a flow is required"),
			"validator", "ValidateAndConstruct", "resolve collection")
	}

	id, err := v.resolver.NearestAncestorOfType(ctx, flow, resource.TypeCollection)
	if err != nil {
		return "", errors.Wrap(err, "validator", "ValidateAndConstruct", "resolve collection of "+flow.String())
	}
	return id, nil
}
