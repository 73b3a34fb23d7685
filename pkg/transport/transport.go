// Package transport issues single HTTP requests against the cluster
// API with retry on transient server errors, TLS and client
// certificate wiring, and optional streaming of chunked response
// bodies.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// maxRetries is the number of retries after the initial attempt.
	maxRetries = 3
	// retryWaitMin seeds the exponential backoff between attempts.
	retryWaitMin = 2 * time.Second
	retryWaitMax = 30 * time.Second
)

// retryStatusCodes are the server-side statuses worth retrying.
// Everything else is returned to the caller as-is.
var retryStatusCodes = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Options configures a single request.
type Options struct {
	// Body is sent as the request body when non-nil.
	Body []byte
	// JSON sets the Content-Type header to application/json.
	JSON bool
	// Headers are merged into the request headers.
	Headers http.Header

	// BearerToken, when set, is sent as an Authorization header.
	BearerToken string
	// Username and Password enable HTTP basic authentication.
	Username string
	Password string
	// KerberosAuth requests negotiated authentication. This build
	// does not carry a negotiate implementation, so setting it
	// fails fast with a ConfigError.
	KerberosAuth bool

	// ClientCert and ClientKey are PEM file paths; both must be
	// given together.
	ClientCert string
	ClientKey  string
	// CAFile points at a PEM bundle used to verify the server.
	CAFile string
	// InsecureSkipTLSVerify disables server certificate checks.
	InsecureSkipTLSVerify bool

	// DisableRedirects stops the client from following redirects,
	// leaving the 3xx response for the caller to inspect.
	DisableRedirects bool
	// Stream returns as soon as response headers arrive, leaving
	// the body unread for incremental consumption.
	Stream bool
	// DisableRetries turns off the retry policy for this request.
	DisableRetries bool
}

// Session performs HTTP requests. It is cheap and safe to share; the
// underlying client is rebuilt per request because TLS and redirect
// behaviour vary with the request options.
type Session struct {
	logger *slog.Logger

	// shrunk by tests
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

func NewSession() *Session {
	return &Session{
		logger:       slog.Default(),
		retryWaitMin: retryWaitMin,
		retryWaitMax: retryWaitMax,
	}
}

func (s *Session) Get(ctx context.Context, url string, opt Options) (*Response, error) {
	return s.Do(ctx, http.MethodGet, url, opt)
}

func (s *Session) Post(ctx context.Context, url string, opt Options) (*Response, error) {
	return s.Do(ctx, http.MethodPost, url, opt)
}

func (s *Session) Put(ctx context.Context, url string, opt Options) (*Response, error) {
	return s.Do(ctx, http.MethodPut, url, opt)
}

func (s *Session) Delete(ctx context.Context, url string, opt Options) (*Response, error) {
	return s.Do(ctx, http.MethodDelete, url, opt)
}

// Do performs one request. In stream mode the returned Response owns
// the live body and must be closed by the caller; otherwise the body
// is fully buffered before returning.
func (s *Session) Do(ctx context.Context, method, url string, opt Options) (*Response, error) {
	method = strings.ToUpper(method)
	if !allowedMethods[method] {
		return nil, &ConfigError{Message: fmt.Sprintf("unsupported method %q", method)}
	}
	if opt.KerberosAuth {
		return nil, &ConfigError{Message: "kerberos authentication support is not available"}
	}
	if (opt.ClientCert == "") != (opt.ClientKey == "") {
		return nil, &ConfigError{Message: "client certificate and key must be provided together"}
	}

	client, err := s.newClient(opt)
	if err != nil {
		return nil, err
	}

	var body any
	if opt.Body != nil {
		body = opt.Body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("invalid request: %v", err)}
	}
	for k, vs := range opt.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if opt.JSON {
		req.Header.Set("Content-Type", "application/json")
	}
	if opt.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+opt.BearerToken)
	} else if opt.Username != "" && opt.Password != "" {
		req.SetBasicAuth(opt.Username, opt.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			_ = resp.Body.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{URL: url, Status: status, Err: err}
	}

	if opt.Stream {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, stream: resp.Body}, nil
	}

	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Status: resp.StatusCode, Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: buf}, nil
}

func (s *Session) newClient(opt Options) (*retryablehttp.Client, error) {
	tlsConf := &tls.Config{InsecureSkipVerify: opt.InsecureSkipTLSVerify} //nolint:gosec // caller opted out explicitly
	if opt.CAFile != "" {
		pem, err := os.ReadFile(opt.CAFile)
		if err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("failed to read CA file: %v", err)}
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, &ConfigError{Message: fmt.Sprintf("no certificates found in %s", opt.CAFile)}
		}
		tlsConf.RootCAs = pool
	}
	if opt.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(opt.ClientCert, opt.ClientKey)
		if err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("failed to load client certificate: %v", err)}
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	httpClient := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConf},
	}
	if opt.DisableRedirects {
		httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = httpClient
	client.RetryWaitMin = s.retryWaitMin
	client.RetryWaitMax = s.retryWaitMax
	client.RetryMax = maxRetries
	client.Logger = nil
	client.CheckRetry = s.checkRetry
	if opt.DisableRetries {
		client.RetryMax = 0
		client.CheckRetry = func(ctx context.Context, _ *http.Response, _ error) (bool, error) {
			return false, ctx.Err()
		}
	}
	// Exhaustion on a forcelist status reaches the handler with a
	// nil error; turn it into one so Do wraps it with the last
	// status instead of handing the 5xx back as a success.
	client.ErrorHandler = func(resp *http.Response, err error, attempts int) (*http.Response, error) {
		if err == nil {
			err = fmt.Errorf("giving up after %d attempts", attempts)
		}
		return resp, err
	}
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			s.logger.Warn("retrying request", "url", req.URL.String(), "attempt", attempt)
		}
	}
	return client, nil
}

// checkRetry retries connection-level failures and the configured
// status forcelist only. Client errors (4xx) are final.
func (s *Session) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if retryStatusCodes[resp.StatusCode] {
		s.logger.Warn("server returned retryable status", "status", resp.StatusCode)
		return true, nil
	}
	return false, nil
}
