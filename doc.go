// Package activepieces validates flow versions before they are stored.
//
// A flow is an ordered list of steps inside a collection, which belongs to
// a project. A candidate version is first placed in the resource tree,
// checking the caller may see its project, then passes four stages:
//
//  1. Step names must be unique.
//  2. CODE steps get their code artifact from an upload, or reuse the one
//     the stored draft already references.
//  3. Each step's settings are checked against its component schema.
//  4. The version is marked valid or invalid as a whole.
//
// A structural failure rejects the version with a ValidationError. Missing
// required settings do not; they only clear the Valid flags, so the editor
// can keep saving the draft.
//
// # Packages
//
//	validator/          the pipeline and its stages
//	resource/           project, collection and flow hierarchy in NATS KV
//	flowstore/          flows and saved versions in NATS KV
//	artifact/           code files in a NATS object store
//	component/          component schemas, catalog loading
//	componentregistry/  built-in component schemas
//	service/            HTTP API
//	config/             layered JSON configuration
//	health/             health probes
//	metric/             Prometheus registry and server
//	natsclient/         NATS connection management
//	errors/             error classification
//	pkg/retry/          retry of transient startup failures
//	cmd/flowvalidator/  service and one-shot CLI
//	cmd/schema-exporter/ component JSON Schemas and OpenAPI document
//
// # Running
//
//	flowvalidator -config config.json -serve
//	flowvalidator -file version.json -flow 01HX... -artifact transform.py
package activepieces
