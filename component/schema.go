package component

import (
	"fmt"
	"sort"
)

// ValidationError reports a single settings field that failed validation.
//
// Error codes:
//   - "required": field is required but missing
//   - "min": numeric value below minimum threshold
//   - "max": numeric value above maximum threshold
//   - "enum": value not in allowed enum values
//   - "type": value doesn't match expected type
//   - "schema": JSON Schema constraint failed
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// IsMissing reports whether the error only says a required field is absent
func (e ValidationError) IsMissing() bool {
	return e.Code == "required"
}

// ValidateConfig validates a settings map against a ConfigSchema.
// It checks required fields, type constraints, min/max bounds, and enum values.
//
// The validation is lenient: unknown fields are allowed so templates and
// UI-only keys survive. Errors are sorted by field for stable output.
//
// Example usage:
//
//	schema := component.ConfigSchema{
//	    Properties: map[string]component.PropertySchema{
//	        "timeout_seconds": {Type: "int", Minimum: ptrInt(1), Maximum: ptrInt(300)},
//	    },
//	    Required: []string{"url"},
//	}
//
//	errs := component.ValidateConfig(map[string]any{"timeout_seconds": 900}, schema)
//	// errs: url required, timeout_seconds max
func ValidateConfig(config map[string]any, schema ConfigSchema) []ValidationError {
	var errs []ValidationError

	for _, requiredField := range schema.Required {
		if value, exists := config[requiredField]; !exists || value == nil {
			errs = append(errs, ValidationError{
				Field:   requiredField,
				Message: fmt.Sprintf("Field %q is required", requiredField),
				Code:    "required",
			})
		}
	}

	for fieldName, value := range config {
		propSchema, exists := schema.Properties[fieldName]
		if !exists || value == nil {
			continue
		}

		if err := validateType(fieldName, value, propSchema); err != nil {
			errs = append(errs, *err)
			continue // Skip further validation if type is wrong
		}

		if len(propSchema.Enum) > 0 {
			if err := validateEnum(fieldName, value, propSchema.Enum); err != nil {
				errs = append(errs, *err)
			}
		}

		if propSchema.Type == "int" || propSchema.Type == "float" {
			num, _ := toFloat(value)
			if propSchema.Minimum != nil && num < float64(*propSchema.Minimum) {
				errs = append(errs, ValidationError{
					Field:   fieldName,
					Message: fmt.Sprintf("Field %q must be >= %d", fieldName, *propSchema.Minimum),
					Code:    "min",
				})
			}
			if propSchema.Maximum != nil && num > float64(*propSchema.Maximum) {
				errs = append(errs, ValidationError{
					Field:   fieldName,
					Message: fmt.Sprintf("Field %q must be <= %d", fieldName, *propSchema.Maximum),
					Code:    "max",
				})
			}
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func typeError(fieldName, what string) *ValidationError {
	return &ValidationError{
		Field:   fieldName,
		Message: fmt.Sprintf("Field %q must be %s", fieldName, what),
		Code:    "type",
	}
}

// validateType checks if the value matches the expected type
func validateType(fieldName string, value any, propSchema PropertySchema) *ValidationError {
	switch propSchema.Type {
	case "string", "enum":
		if _, ok := value.(string); !ok {
			return typeError(fieldName, "a string")
		}
	case "int":
		// JSON numbers decode as float64; accept them when integral
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return typeError(fieldName, "an integer")
			}
		default:
			return typeError(fieldName, "an integer")
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return typeError(fieldName, "a boolean")
		}
	case "float":
		if _, ok := toFloat(value); !ok {
			return typeError(fieldName, "a number")
		}
	case "array":
		switch value.(type) {
		case []any, []string:
		default:
			return typeError(fieldName, "an array")
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return typeError(fieldName, "an object")
		}
	}
	return nil
}

// validateEnum checks if the value is in the allowed enum values
func validateEnum(fieldName string, value any, enumValues []string) *ValidationError {
	strValue, ok := value.(string)
	if !ok {
		return typeError(fieldName, "a string for enum validation")
	}

	for _, allowed := range enumValues {
		if strValue == allowed {
			return nil
		}
	}

	return &ValidationError{
		Field:   fieldName,
		Message: fmt.Sprintf("Field %q must be one of: %v", fieldName, enumValues),
		Code:    "enum",
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// SortedPropertyNames returns property names with "basic" properties first,
// then alphabetically. Properties without a Category count as "advanced".
func SortedPropertyNames(schema ConfigSchema) []string {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		bi := schema.Properties[names[i]].Category == "basic"
		bj := schema.Properties[names[j]].Category == "basic"
		if bi != bj {
			return bi
		}
		return names[i] < names[j]
	})
	return names
}
