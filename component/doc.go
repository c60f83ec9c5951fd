// Package component describes the building blocks a flow step can use and
// validates step settings against them.
//
// # Overview
//
// Every component is registered as a Schema: a name, a version, the Kind of
// step it may appear in (TRIGGER, ACTION, CODE, BRANCH, LOOP) and a
// ConfigSchema listing its settings. A Schema may also carry a JSON Schema
// document for constraints the property list cannot express; it is compiled
// once at registration with gojsonschema.
//
// Steps refer to components by reference, "name" or "name@version". A
// reference without a version resolves to the highest registered version.
//
// # Registration
//
// Components are registered explicitly rather than through init():
//
//	registry := component.NewRegistry()
//	if err := componentregistry.Register(registry); err != nil {
//		return err
//	}
//
// Additional components can be loaded from a YAML catalog:
//
//	schemas, err := component.LoadCatalogFile("components.yaml")
//	if err != nil {
//		return err
//	}
//	err = registry.RegisterAll(schemas)
//
// # Validation
//
// Schema.Validate returns every failing field with a machine readable code
// ("required", "type", "enum", "min", "max", "schema"). Validation is lenient
// about unknown settings. Callers decide how to treat missing required
// fields; ValidationError.IsMissing tells them apart.
package component
