// Package plan brings seed work into the system and writes run artifacts
// back out.
//
// The loader reads a seed file, JSON or YAML by extension, each entry a
// unit of work as the planning collaborator describes it:
//
//	- id: auth-tokens
//	  description: rotate signing keys for session tokens
//	  priority: P1
//	  suggested_creates: [internal/auth/rotation.go]
//	  suggested_modifies: [internal/auth/keys.go]
//	  depends_on: [auth-config]
//
// Validation happens here, before anything is scheduled: malformed or
// ambiguous seeds fail the load with a PlanningError naming the seed, so
// a bad plan never costs a wave.
//
// The [Writer] produces the run's artifacts: one JSON plan per item
// (files, dependencies, tier, failure note) and a coordination document
// holding the wave diagram and the conflict-resolution table. Writes are
// atomic, temp file then rename, under the run directory's file lock.
package plan
