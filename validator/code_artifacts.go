package validator

import (
	"context"
	"fmt"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/flowstore"
)

// CodeArtifacts attaches a stored artifact to every CODE step.
//
// For each code step, in order of preference:
//   - an uploaded file matching the step's artifact key is resolved and
//     its URL and hash are written to the step settings;
//   - the same-named code step of the draft, with the same key, lends its
//     URL and hash.
//
// A URL or hash supplied with the candidate itself is never trusted; it is
// replaced by one of the above or the step is rejected. A step without an
// artifact key, whose key matches neither, or whose upload is empty is
// rejected with missing_artifact.
type CodeArtifacts struct {
	Artifacts ArtifactResolver
}

// Name implements Stage
func (CodeArtifacts) Name() string {
	return StageCodeArtifacts
}

// Construct implements Stage
func (s CodeArtifacts) Construct(ctx context.Context, sc StageContext, version *flowstore.FlowVersion) (*flowstore.FlowVersion, error) {
	out := version.Clone()

	for i := range out.Steps {
		step := &out.Steps[i]
		if step.Type != flowstore.StepCode {
			continue
		}

		key, ok := step.SettingString(flowstore.SettingArtifact)
		if !ok {
			return nil, errors.NewValidationError(StageCodeArtifacts, errors.KindMissingArtifact,
				step.Name, i, flowstore.SettingArtifact, "code step does not reference an artifact")
		}

		if file, ok := artifact.Find(sc.Files, key); ok {
			if len(file.Data) == 0 {
				return nil, errors.NewValidationError(StageCodeArtifacts, errors.KindMissingArtifact,
					step.Name, i, flowstore.SettingArtifact, fmt.Sprintf("artifact %q is empty", key))
			}
			ref, err := s.Artifacts.Resolve(ctx, sc.ProjectID, sc.CollectionID, file)
			if err != nil {
				return nil, errors.Wrap(err, "validator", "CodeArtifacts", "resolve artifact "+key)
			}
			step.SetSetting(flowstore.SettingArtifactURL, ref.URL)
			step.SetSetting(flowstore.SettingArtifactHash, ref.Hash)
			continue
		}

		if url, hash, ok := draftArtifact(sc.Draft, step.Name, key); ok {
			step.SetSetting(flowstore.SettingArtifactURL, url)
			step.SetSetting(flowstore.SettingArtifactHash, hash)
			continue
		}

		return nil, errors.NewValidationError(StageCodeArtifacts, errors.KindMissingArtifact,
			step.Name, i, flowstore.SettingArtifact, fmt.Sprintf("artifact %q was not uploaded", key))
	}

	return out, nil
}

func hasResolvedArtifact(step flowstore.Step) bool {
	_, hasURL := step.SettingString(flowstore.SettingArtifactURL)
	_, hasHash := step.SettingString(flowstore.SettingArtifactHash)
	return hasURL && hasHash
}

// draftArtifact returns the resolved artifact of the draft's code step
// with the given name, if it references the same key.
func draftArtifact(draft *flowstore.FlowVersion, name, key string) (url, hash string, ok bool) {
	if draft == nil {
		return "", "", false
	}
	step, _, found := draft.StepByName(name)
	if !found || step.Type != flowstore.StepCode {
		return "", "", false
	}
	if draftKey, _ := step.SettingString(flowstore.SettingArtifact); draftKey != key {
		return "", "", false
	}
	if !hasResolvedArtifact(*step) {
		return "", "", false
	}
	url, _ = step.SettingString(flowstore.SettingArtifactURL)
	hash, _ = step.SettingString(flowstore.SettingArtifactHash)
	return url, hash, true
}
