package acquire

import (
	"fmt"

	"storyreel-pipeline/types"
)

// InvalidCandidateError marks downloaded content that failed validation;
// the cascade recovers by trying the next ranked candidate
type InvalidCandidateError struct {
	URL    string
	Reason string
}

func (e *InvalidCandidateError) Error() string {
	return fmt.Sprintf("invalid candidate %s: %s", e.URL, e.Reason)
}

// NoCandidatesError marks a tier that produced nothing usable; the cascade
// recovers by advancing to the next tier
type NoCandidatesError struct {
	Tier  types.Tier
	Query string
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("tier %s: no usable candidates for %q", e.Tier, e.Query)
}
