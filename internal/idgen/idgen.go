// Package idgen names the transient containers the materialization step
// creates (spec.md §4.3); it does not name groups. It does so the way the teacher names
// tenant and job rows with google/uuid rather than hand-rolled counters.
package idgen

import "github.com/google/uuid"

// NewContainerName returns a fresh name for a transient core-backed
// container created by Materialize, prefixed for log readability.
func NewContainerName() string {
	return "view-" + uuid.NewString()
}
