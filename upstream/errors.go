package upstream

import "fmt"

// AuthError means the provider's credential exchange failed. It is fatal
// for the current run; the next scheduled trigger retries from scratch.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: credential exchange failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError is a network failure or server-side 5xx; callers retry it
// with backoff up to a cap.
type TransientError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: upstream error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError is a 4xx client error: never retried, treated as "no data".
type RejectedError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: upstream rejected request (%d): %s", e.Provider, e.StatusCode, e.Body)
}

// JobTimeoutError means a bulk export job did not complete within the poll
// budget.
type JobTimeoutError struct {
	Provider string
	JobId    string
	Attempts int
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("%s: export job %s not completed after %d polls", e.Provider, e.JobId, e.Attempts)
}

// JobFailedError carries the provider's own failure description for a bulk
// export job.
type JobFailedError struct {
	Provider string
	JobId    string
	Reason   string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s: export job %s failed: %s", e.Provider, e.JobId, e.Reason)
}
