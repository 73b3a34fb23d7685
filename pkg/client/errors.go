package client

import "fmt"

// AuthError indicates that credentials are missing, inconsistent, or
// could not be exchanged for a token. Never retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// NotFoundError indicates that a watched resource disappeared or was
// never seen before its stream ended. Wait wrappers treat it as
// retryable; see WaitForBuildToFinish.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q was not found while waiting", e.Resource, e.Name)
}

// WaitError is the fatal outcome of a wait whose not-found retries
// were exhausted.
type WaitError struct {
	Name     string
	Attempts int
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("failed to wait for build %q after %d attempts", e.Name, e.Attempts)
}
