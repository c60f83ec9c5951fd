package flowstore

// StepType is the role a step plays in the sequence
type StepType string

// Step types
const (
	StepTrigger StepType = "TRIGGER"
	StepAction  StepType = "ACTION"
	StepCode    StepType = "CODE"
	StepBranch  StepType = "BRANCH"
	StepLoop    StepType = "LOOP"
)

// Valid reports whether t is a known step type
func (t StepType) Valid() bool {
	switch t {
	case StepTrigger, StepAction, StepCode, StepBranch, StepLoop:
		return true
	}
	return false
}

// Settings keys carried by CODE steps
const (
	SettingArtifact     = "artifact"
	SettingArtifactURL  = "artifact_url"
	SettingArtifactHash = "artifact_hash"
)

// Step is a single unit of work in a flow version
type Step struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name,omitempty"`
	Type        StepType       `json:"type"`
	Component   string         `json:"component,omitempty"` // "name" or "name@version"
	Settings    map[string]any `json:"settings,omitempty"`
	Valid       bool           `json:"valid"`
}

// Clone returns a deep copy of the step
func (s Step) Clone() Step {
	out := s
	if s.Settings != nil {
		out.Settings = cloneMap(s.Settings)
	}
	return out
}

// SettingString returns a string setting, if present and non-empty
func (s Step) SettingString(key string) (string, bool) {
	v, ok := s.Settings[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// SetSetting stores a setting, allocating the map when needed
func (s *Step) SetSetting(key string, value any) {
	if s.Settings == nil {
		s.Settings = make(map[string]any)
	}
	s.Settings[key] = value
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
