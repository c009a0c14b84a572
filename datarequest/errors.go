package datarequest

import "fmt"

// ConfigError means a directory relationship the request depends on is
// missing: the fixed project, a provider, an endpoint or a service account.
// It is never retried.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("data request: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SubmissionError carries the upstream status of a rejected session submission.
type SubmissionError struct {
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("data request submission failed: %v", e.Err)
	}
	return fmt.Sprintf("data request submission failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
