// Package resource models the containment hierarchy flows live in
// (project > collection > flow > version) and answers ancestor lookups on it.
//
// Store keeps one JSON node per resource in a NATS KV bucket. A caller
// principal attached with WithPrincipal sees a node when it is a member of the
// node or of any ancestor; a context without a principal sees everything.
package resource
