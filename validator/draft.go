package validator

import (
	"context"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/resource"
)

// draftLoader fetches the last saved version of a flow.
//
// It is the one place where collaborator failures are hidden: a missing
// flow or a denied read at this point means the hierarchy lookup that
// just succeeded is inconsistent with the flow store, so the root cause
// goes to the sink and the caller only sees an internal error.
type draftLoader struct {
	flows FlowGetter
	sink  errors.Sink
}

func (l draftLoader) load(ctx context.Context, flowID resource.OptionalID) (*flowstore.FlowVersion, error) {
	id, ok := flowID.Get()
	if !ok {
		return nil, nil
	}

	flow, err := l.flows.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) || errors.IsPermissionDenied(err) {
			return nil, l.sink.InternalError(err)
		}
		return nil, err
	}
	if flow == nil || flow.LastVersion == nil {
		return nil, nil
	}
	return flow.LastVersion.Clone(), nil
}
