// Package client is the OpenShift build API client: resource CRUD,
// blocking waits over the streaming watch API, and resilient build
// log tailing.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/projectatomic/osbs-go/pkg/transport"
)

// Auth carries the credentials the client may use. Zero values mean
// "not provided"; when nothing is provided the constructor looks for
// ambient credentials (in-cluster service account, kubeconfig).
type Auth struct {
	Token      string
	Username   string
	Password   string
	ClientCert string
	ClientKey  string
	// UseKerberos requests negotiated authentication, which this
	// build does not carry; requests fail fast when it is set.
	UseKerberos bool
	// Enable forces authentication on or off. Nil auto-detects
	// from the credentials above and the environment.
	Enable *bool

	CAFile                string
	InsecureSkipTLSVerify bool
}

// Options lifts the client's timing and retry constants into
// configuration so callers and tests can adjust them. The defaults
// match long-standing production behaviour.
type Options struct {
	// ReconnectDelay is the pause before reopening a closed watch
	// stream.
	ReconnectDelay time.Duration
	// LogIdleThreshold separates a genuinely finished log stream
	// from one dropped by an idle timeout.
	LogIdleThreshold time.Duration
	// NotFoundRetries bounds the retry loop around spurious
	// not-found results while waiting for a build to finish.
	NotFoundRetries int
}

func DefaultOptions() Options {
	return Options{
		ReconnectDelay:   30 * time.Second,
		LogIdleThreshold: 60 * time.Second,
		NotFoundRetries:  9,
	}
}

// Config assembles an Openshift client.
type Config struct {
	// APIURL is the OpenShift API root, e.g.
	// https://host:8443/oapi/v1/.
	APIURL string
	// K8sAPIURL is the Kubernetes API root for the resources that
	// live there (pods, resource quotas).
	K8sAPIURL string
	// OAuthURL is the authorize endpoint used to exchange basic
	// credentials for a bearer token.
	OAuthURL string
	// APIVersion is stamped into request documents.
	APIVersion string
	Namespace  string
	Auth       Auth
	Options    Options
}

// Openshift talks to one cluster within one namespace. All blocking
// operations take a context and stop promptly when it is cancelled.
type Openshift struct {
	apiURL     string
	k8sAPIURL  string
	oauthURL   string
	apiVersion string
	namespace  string
	useAuth    bool

	// tokenMu guards auth.Token; everything else in auth is fixed
	// after construction.
	tokenMu sync.Mutex
	auth    Auth

	session *transport.Session
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func New(cfg Config) *Openshift {
	opts := cfg.Options
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultOptions().ReconnectDelay
	}
	if opts.LogIdleThreshold <= 0 {
		opts.LogIdleThreshold = DefaultOptions().LogIdleThreshold
	}
	if opts.NotFoundRetries <= 0 {
		opts.NotFoundRetries = DefaultOptions().NotFoundRetries
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "v1"
	}

	o := &Openshift{
		apiURL:     cfg.APIURL,
		k8sAPIURL:  cfg.K8sAPIURL,
		oauthURL:   cfg.OAuthURL,
		apiVersion: apiVersion,
		namespace:  cfg.Namespace,
		auth:       cfg.Auth,
		session:    transport.NewSession(),
		opts:       opts,
		logger:     slog.Default(),
		now:        time.Now,
	}

	provided := o.auth.UseKerberos ||
		(o.auth.Username != "" && o.auth.Password != "") ||
		o.auth.Token != ""
	if o.auth.Enable == nil {
		o.useAuth = provided || o.loadAmbientCredentials()
	} else {
		o.useAuth = *o.auth.Enable
		if o.useAuth && !provided {
			o.loadAmbientCredentials()
		}
	}
	return o
}

// Namespace returns the namespace this client operates in.
func (o *Openshift) Namespace() string {
	return o.namespace
}

// ---------------------------------------------------------------------------
// URL and request plumbing
// ---------------------------------------------------------------------------

func joinURL(base, path string, query url.Values) string {
	u := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// buildURL joins a namespace-scoped path onto the OpenShift API root.
func (o *Openshift) buildURL(path string, query url.Values) string {
	return joinURL(o.apiURL, fmt.Sprintf("namespaces/%s/%s", o.namespace, path), query)
}

// buildRootURL joins a cluster-scoped path onto the OpenShift API root.
func (o *Openshift) buildRootURL(path string, query url.Values) string {
	return joinURL(o.apiURL, path, query)
}

// buildK8sURL joins a namespace-scoped path onto the Kubernetes API root.
func (o *Openshift) buildK8sURL(path string, query url.Values) string {
	return joinURL(o.k8sAPIURL, fmt.Sprintf("namespaces/%s/%s", o.namespace, path), query)
}

// requestOptions fills in the auth and TLS parts of a request. When
// authentication is enabled and no token is at hand yet, one is
// fetched from the OAuth endpoint first.
func (o *Openshift) requestOptions(ctx context.Context, withAuth bool, opt transport.Options) (transport.Options, error) {
	if (o.auth.ClientCert == "") != (o.auth.ClientKey == "") {
		return opt, &AuthError{Message: "you need to provide both client certificate and key"}
	}
	opt.ClientCert = o.auth.ClientCert
	opt.ClientKey = o.auth.ClientKey
	opt.CAFile = o.auth.CAFile
	opt.InsecureSkipTLSVerify = o.auth.InsecureSkipTLSVerify

	if withAuth && o.useAuth {
		token, err := o.ensureToken(ctx)
		if err != nil {
			return opt, err
		}
		opt.BearerToken = token
	}
	return opt, nil
}

// ensureToken returns the bearer token, exchanging credentials for
// one on first use. The lock is held across the exchange so that
// concurrent requests starting with an empty token share a single
// fetch.
func (o *Openshift) ensureToken(ctx context.Context) (string, error) {
	o.tokenMu.Lock()
	defer o.tokenMu.Unlock()
	if o.auth.Token == "" {
		token, err := o.fetchOAuthToken(ctx)
		if err != nil {
			return "", err
		}
		o.auth.Token = token
	}
	if o.auth.Token == "" {
		return "", &AuthError{Message: "please check your credentials, token was not retrieved successfully"}
	}
	return o.auth.Token, nil
}

func (o *Openshift) get(ctx context.Context, url string, opt transport.Options) (*transport.Response, error) {
	opt, err := o.requestOptions(ctx, true, opt)
	if err != nil {
		return nil, err
	}
	return o.session.Get(ctx, url, opt)
}

func (o *Openshift) post(ctx context.Context, url string, opt transport.Options) (*transport.Response, error) {
	opt, err := o.requestOptions(ctx, true, opt)
	if err != nil {
		return nil, err
	}
	return o.session.Post(ctx, url, opt)
}

func (o *Openshift) put(ctx context.Context, url string, opt transport.Options) (*transport.Response, error) {
	opt, err := o.requestOptions(ctx, true, opt)
	if err != nil {
		return nil, err
	}
	return o.session.Put(ctx, url, opt)
}

func (o *Openshift) delete(ctx context.Context, url string, opt transport.Options) (*transport.Response, error) {
	opt, err := o.requestOptions(ctx, true, opt)
	if err != nil {
		return nil, err
	}
	return o.session.Delete(ctx, url, opt)
}

// checkResponse rejects non-success statuses with a ResponseError
// carrying the body.
func checkResponse(resp *transport.Response) error {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	return &transport.ResponseError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
}

// decodeObject strictly decodes a response into an unstructured
// document.
func decodeObject(resp *transport.Response) (*unstructured.Unstructured, error) {
	obj := map[string]any{}
	if err := resp.JSON(true, &obj); err != nil {
		return nil, err
	}
	return &unstructured.Unstructured{Object: obj}, nil
}

// ---------------------------------------------------------------------------
// Builds
// ---------------------------------------------------------------------------

// GetBuild returns the build document.
func (o *Openshift) GetBuild(ctx context.Context, buildID string) (*unstructured.Unstructured, error) {
	resp, err := o.get(ctx, o.buildURL(fmt.Sprintf("builds/%s/", buildID), nil), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// ListBuilds lists builds, optionally restricted by the BuildConfig
// that created them and by a field selector.
func (o *Openshift) ListBuilds(ctx context.Context, buildConfigID, fieldSelector string) (*unstructured.Unstructured, error) {
	query := url.Values{}
	if buildConfigID != "" {
		query.Set("labelSelector", "buildconfig="+buildConfigID)
	}
	if fieldSelector != "" {
		query.Set("fieldSelector", fieldSelector)
	}
	resp, err := o.get(ctx, o.buildURL("builds/", query), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// CreateBuild submits a build document.
func (o *Openshift) CreateBuild(ctx context.Context, buildJSON map[string]any) (*unstructured.Unstructured, error) {
	body, err := json.Marshal(buildJSON)
	if err != nil {
		return nil, err
	}
	resp, err := o.post(ctx, o.buildURL("builds/", nil), transport.Options{Body: body, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// CancelBuild marks the build cancelled and writes it back.
func (o *Openshift) CancelBuild(ctx context.Context, buildID string) (*unstructured.Unstructured, error) {
	obj, err := o.GetBuild(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if err := unstructured.SetNestedField(obj.Object, true, "status", "cancelled"); err != nil {
		return nil, err
	}
	body, err := json.Marshal(obj.Object)
	if err != nil {
		return nil, err
	}
	resp, err := o.put(ctx, o.buildURL(fmt.Sprintf("builds/%s/", buildID), nil), transport.Options{Body: body, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// GetBuildLogs returns the full log of a (finished or running) build.
func (o *Openshift) GetBuildLogs(ctx context.Context, buildID string) ([]byte, error) {
	resp, err := o.get(ctx, o.buildURL(fmt.Sprintf("builds/%s/log/", buildID), nil), transport.Options{})
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ---------------------------------------------------------------------------
// BuildConfigs
// ---------------------------------------------------------------------------

// GetBuildConfig returns the build config document.
func (o *Openshift) GetBuildConfig(ctx context.Context, buildConfigID string) (*unstructured.Unstructured, error) {
	resp, err := o.get(ctx, o.buildURL(fmt.Sprintf("buildconfigs/%s/", buildConfigID), nil), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// CreateBuildConfig submits a new build config document.
func (o *Openshift) CreateBuildConfig(ctx context.Context, buildConfigJSON map[string]any) (*unstructured.Unstructured, error) {
	body, err := json.Marshal(buildConfigJSON)
	if err != nil {
		return nil, err
	}
	resp, err := o.post(ctx, o.buildURL("buildconfigs/", nil), transport.Options{Body: body, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// UpdateBuildConfig replaces an existing build config document.
func (o *Openshift) UpdateBuildConfig(ctx context.Context, buildConfigID string, buildConfigJSON map[string]any) (*unstructured.Unstructured, error) {
	body, err := json.Marshal(buildConfigJSON)
	if err != nil {
		return nil, err
	}
	resp, err := o.put(ctx, o.buildURL(fmt.Sprintf("buildconfigs/%s", buildConfigID), nil), transport.Options{Body: body, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// InstantiateBuildConfig asks the server to start a new build from
// the named build config and returns the created build document.
func (o *Openshift) InstantiateBuildConfig(ctx context.Context, buildConfigID string) (*unstructured.Unstructured, error) {
	body, err := json.Marshal(map[string]any{
		"kind":       "BuildRequest",
		"apiVersion": o.apiVersion,
		"metadata": map[string]any{
			"name": buildConfigID,
		},
	})
	if err != nil {
		return nil, err
	}
	resp, err := o.post(ctx, o.buildURL(fmt.Sprintf("buildconfigs/%s/instantiate", buildConfigID), nil), transport.Options{Body: body, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// StartBuild is InstantiateBuildConfig under its caller-facing name.
func (o *Openshift) StartBuild(ctx context.Context, buildConfigID string) (*unstructured.Unstructured, error) {
	return o.InstantiateBuildConfig(ctx, buildConfigID)
}

// ---------------------------------------------------------------------------
// Image streams
// ---------------------------------------------------------------------------

// GetImageStream returns the image stream document.
func (o *Openshift) GetImageStream(ctx context.Context, streamID string) (*unstructured.Unstructured, error) {
	resp, err := o.get(ctx, o.buildURL(fmt.Sprintf("imagestreams/%s", streamID), nil), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// CreateImageStream submits a new image stream document.
func (o *Openshift) CreateImageStream(ctx context.Context, streamJSON map[string]any) (*unstructured.Unstructured, error) {
	body, err := json.Marshal(streamJSON)
	if err != nil {
		return nil, err
	}
	resp, err := o.post(ctx, o.buildURL("imagestreams/", nil), transport.Options{Body: body, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// ---------------------------------------------------------------------------
// Kubernetes-side resources
// ---------------------------------------------------------------------------

// ListPods lists pods in the namespace, optionally filtered by a
// label selector.
func (o *Openshift) ListPods(ctx context.Context, labelSelector string) (*unstructured.Unstructured, error) {
	query := url.Values{}
	if labelSelector != "" {
		query.Set("labelSelector", labelSelector)
	}
	resp, err := o.get(ctx, o.buildK8sURL("pods/", query), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// ListResourceQuotas lists the namespace's resource quotas.
func (o *Openshift) ListResourceQuotas(ctx context.Context) (*unstructured.Unstructured, error) {
	resp, err := o.get(ctx, o.buildK8sURL("resourcequotas/", nil), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// GetResourceQuota returns one resource quota document.
func (o *Openshift) GetResourceQuota(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	resp, err := o.get(ctx, o.buildK8sURL(fmt.Sprintf("resourcequotas/%s", name), nil), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// CreateResourceQuota creates the quota, or replaces it when one by
// that name already exists.
func (o *Openshift) CreateResourceQuota(ctx context.Context, name string, quotaJSON map[string]any) error {
	body, err := json.Marshal(quotaJSON)
	if err != nil {
		return err
	}
	resp, err := o.post(ctx, o.buildK8sURL("resourcequotas/", nil), transport.Options{Body: body, JSON: true})
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusConflict {
		resp, err = o.put(ctx, o.buildK8sURL(fmt.Sprintf("resourcequotas/%s", name), nil), transport.Options{Body: body, JSON: true})
		if err != nil {
			return err
		}
	}
	return checkResponse(resp)
}

// DeleteResourceQuota removes the quota. A missing quota is not an
// error.
func (o *Openshift) DeleteResourceQuota(ctx context.Context, name string) error {
	resp, err := o.delete(ctx, o.buildK8sURL(fmt.Sprintf("resourcequotas/%s", name), nil), transport.Options{})
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkResponse(resp)
}

// GetUser returns info about a user; the default "~" means the user
// the credentials belong to.
func (o *Openshift) GetUser(ctx context.Context, username string) (*unstructured.Unstructured, error) {
	if username == "" {
		username = "~"
	}
	resp, err := o.get(ctx, o.buildRootURL(fmt.Sprintf("users/%s/", username), nil), transport.Options{})
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}
