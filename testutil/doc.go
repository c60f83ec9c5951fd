// Package testutil provides fixtures and in-memory fakes shared by the
// package tests.
//
// MockKVStore is an in-memory stand-in for natsclient.KVStore. It keeps
// bucket-wide revisions, supports compare-and-set updates, and returns the
// natsclient error sentinels, so the resource and flowstore stores run
// against it unchanged:
//
//	kv := testutil.NewMockKVStore()
//	store := resource.NewStore(kv)
//
// Set FailWith to make every operation fail with a given error.
//
// Flow fixtures:
//
//	v := testutil.ValidVersion()  // trigger -> code (script.js) -> http
//	files := []artifact.File{testutil.ScriptFile()}
//
//	custom := testutil.NewVersionBuilder("Custom").
//	    Trigger("start", "schedule", map[string]any{"cron": "0 * * * *"}).
//	    Code("run", "job.py", nil).
//	    Build()
//
// Every fixture function returns a fresh value, so tests may mutate them.
//
// Tests in packages that testutil itself imports (natsclient, flowstore,
// resource, artifact) use the external _test package form to avoid import
// cycles.
package testutil
