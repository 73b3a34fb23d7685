package transport

import "fmt"

// ConfigError indicates a request that is invalid before it ever
// reaches the network: an unsupported method, a client certificate
// without its key, or an authentication scheme this build lacks.
// It is never retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// NetworkError indicates a connection-level failure or retry
// exhaustion. Status carries the last HTTP status observed, or zero
// when the connection never got that far.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request to %s failed (last status %d): %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ResponseError indicates a completed request whose status code was
// not a success. The body is kept for diagnostics.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}
